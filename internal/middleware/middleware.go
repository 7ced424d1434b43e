package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ClientIDKey is the gin context key under which RequireClientID stores the
// caller's identity.
const ClientIDKey = "client_id"

// RequireClientID extracts the pre-validated caller identity from the
// X-Client-ID header. Identity verification itself is an upstream concern;
// the engine only needs an opaque owner id.
func RequireClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-ID")
		if clientID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Client-ID header required"})
			return
		}
		c.Set(ClientIDKey, clientID)
		c.Next()
	}
}

// RateLimiter allows one request per client per interval.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]time.Time
	limit   time.Duration
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]time.Time),
		limit:   limit,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString(ClientIDKey)
		if clientID == "" {
			c.Next()
			return
		}
		r.mu.Lock()
		last, seen := r.clients[clientID]
		now := time.Now()
		if seen && now.Sub(last) < r.limit {
			r.mu.Unlock()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		r.clients[clientID] = now
		r.mu.Unlock()
		c.Next()
	}
}

package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
	"go.uber.org/zap"
)

var _ port.Notifier = (*Hub)(nil)

// Hub maintains the active WebSocket connections and fans market-data
// events out to clients subscribed to the matching channel. It doubles as a
// Notifier so the engine stays agnostic of the transport.
type Hub struct {
	log *zap.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

type envelope struct {
	channel string
	payload []byte
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		clients:    make(map[*Client]struct{}),
	}
}

// Run owns the client set. Call it once, in its own goroutine; it returns
// when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client connected", zap.Int("total", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client disconnected", zap.Int("total", n))

		case ev := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.subscribed(ev.channel) {
					continue
				}
				select {
				case c.send <- ev.payload:
				default:
					// slow client, drop the message
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishTrade broadcasts to the trades:<symbol> channel.
func (h *Hub) PublishTrade(ctx context.Context, t *domain.Trade) error {
	return h.send(ctx, "trades:"+t.Symbol, map[string]any{"type": "trade", "trade": t})
}

// PublishOrderUpdate broadcasts to the orders:<symbol> channel.
func (h *Hub) PublishOrderUpdate(ctx context.Context, o *domain.Order) error {
	return h.send(ctx, "orders:"+o.Symbol, map[string]any{"type": "order", "order": o})
}

func (h *Hub) send(ctx context.Context, channel string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- envelope{channel: channel, payload: payload}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

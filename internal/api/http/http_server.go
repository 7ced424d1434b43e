package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/truecex/exchange/internal/api/dto"
	"github.com/truecex/exchange/internal/api/ws"
	"github.com/truecex/exchange/internal/core"
	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/middleware"
	"go.uber.org/zap"
)

const defaultDepth = 20

// Server is the gin front of the matching engine. It maps transport
// concerns (JSON binding, status codes, caller identity) onto the engine's
// domain types and errors.
type Server struct {
	eng *core.Engine
	hub *ws.Hub
	log *zap.Logger

	rateLimit      time.Duration
	allowedOrigins []string
}

func NewServer(eng *core.Engine, hub *ws.Hub, log *zap.Logger, rateLimit time.Duration, allowedOrigins []string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		eng:            eng,
		hub:            hub,
		log:            log,
		rateLimit:      rateLimit,
		allowedOrigins: allowedOrigins,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(s.allowedOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = s.allowedOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "X-Client-ID")
		r.Use(cors.New(cfg))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			s.hub.Serve(c.Writer, c.Request)
		})
	}

	api := r.Group("/api")

	market := api.Group("/market")
	market.GET("/orderbook/:symbol", s.getOrderbook)
	market.GET("/ticker/:symbol", s.getTicker)

	trading := api.Group("/trading")
	trading.Use(middleware.RequireClientID())
	if s.rateLimit > 0 {
		trading.Use(middleware.NewRateLimiter(s.rateLimit).Middleware())
	}
	trading.POST("/orders", s.submitOrder)
	trading.GET("/orders", s.listOrders)
	trading.GET("/orders/:id", s.getOrder)
	trading.GET("/orders/:id/trades", s.getTrades)
	trading.DELETE("/orders/:id", s.cancelOrder)

	return r
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) submitOrder(c *gin.Context) {
	var req dto.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o := &domain.Order{
		OwnerID:  c.GetString(middleware.ClientIDKey),
		Symbol:   req.Symbol,
		Side:     domain.Side(req.Side),
		Type:     domain.OrderType(req.Type),
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	trades, err := s.eng.Submit(c.Request.Context(), o)
	if err != nil {
		// a self-trade rejection may still carry trades executed before the
		// collision; they are persisted and queryable per order
		s.fail(c, err)
		return
	}
	resp := dto.SubmitOrderResponse{
		Order:  convertOrder(o),
		Trades: convertTrades(trades),
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) cancelOrder(c *gin.Context) {
	id := c.Param("id")
	owner := c.GetString(middleware.ClientIDKey)
	if err := s.eng.Cancel(c.Request.Context(), id, owner); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CancelOrderResponse{OrderID: id, Cancelled: true})
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.eng.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if o.OwnerID != c.GetString(middleware.ClientIDKey) {
		c.JSON(http.StatusForbidden, gin.H{"error": "order does not belong to requester"})
		return
	}
	c.JSON(http.StatusOK, dto.GetOrderResponse{Order: convertOrder(o)})
}

func (s *Server) listOrders(c *gin.Context) {
	owner := c.GetString(middleware.ClientIDKey)
	symbol := c.Query("symbol")
	status := domain.OrderStatus(c.Query("status"))
	orders, err := s.eng.ListOrders(c.Request.Context(), owner, symbol, status)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := dto.ListOrdersResponse{Orders: make([]dto.Order, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, convertOrder(o))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getTrades(c *gin.Context) {
	id := c.Param("id")
	o, err := s.eng.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if o.OwnerID != c.GetString(middleware.ClientIDKey) {
		c.JSON(http.StatusForbidden, gin.H{"error": "order does not belong to requester"})
		return
	}
	trades, err := s.eng.TradesForOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetTradesResponse{Trades: convertTrades(trades)})
}

func (s *Server) getOrderbook(c *gin.Context) {
	symbol := c.Param("symbol")
	depth := defaultDepth
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depth"})
			return
		}
		depth = d
	}
	view, err := s.eng.BookView(c.Request.Context(), symbol, depth)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, convertView(view))
}

func (s *Server) getTicker(c *gin.Context) {
	t, err := s.eng.Ticker(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TickerResponse{
		Symbol:    t.Symbol,
		LastPrice: t.LastPrice,
		Bid:       t.Bid,
		Ask:       t.Ask,
	})
}

// fail maps domain errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrUnknownSymbol):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyTerminal), errors.Is(err, domain.ErrSelfTrade):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func convertOrder(o *domain.Order) dto.Order {
	return dto.Order{
		ID:             o.ID,
		OwnerID:        o.OwnerID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Price:          o.Price,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Remaining:      o.Remaining(),
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func convertTrades(trades []*domain.Trade) []dto.Trade {
	res := make([]dto.Trade, len(trades))
	for i, t := range trades {
		res[i] = dto.Trade{
			ID:           t.ID,
			Symbol:       t.Symbol,
			Price:        t.Price,
			Quantity:     t.Quantity,
			MakerOrderID: t.MakerOrderID,
			TakerOrderID: t.TakerOrderID,
			TakerSide:    string(t.TakerSide),
			ExecutedAt:   t.ExecutedAt,
		}
	}
	return res
}

func convertView(v *domain.BookView) dto.OrderbookResponse {
	resp := dto.OrderbookResponse{
		Symbol:    v.Symbol,
		Bids:      make([]dto.PriceLevel, len(v.Bids)),
		Asks:      make([]dto.PriceLevel, len(v.Asks)),
		Spread:    v.Spread,
		Timestamp: v.Timestamp,
	}
	for i, l := range v.Bids {
		resp.Bids[i] = dto.PriceLevel{Price: l.Price, Quantity: l.Quantity}
	}
	for i, l := range v.Asks {
		resp.Asks[i] = dto.PriceLevel{Price: l.Price, Quantity: l.Quantity}
	}
	return resp
}

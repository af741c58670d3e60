package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pos-terminal/internal/catalog"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/network"
	"pos-terminal/internal/queue"
	"pos-terminal/internal/services/order/internal/validation"
	"pos-terminal/internal/services/pricing"
	"pos-terminal/internal/services/syncer"
)

const requestIDKey = "request_id"

// Handler serves the operator API for one terminal
type Handler struct {
	service     *Service
	coordinator *syncer.Coordinator
	queue       *queue.Queue
	network     network.Source
	hub         *Hub
	currency    models.Currency
	origins     []string
	logger      *logger.Logger
}

// HandlerDeps are the collaborators of a Handler. Hub is optional.
type HandlerDeps struct {
	Service      *Service
	Coordinator  *syncer.Coordinator
	Queue        *queue.Queue
	Network      network.Source
	Hub          *Hub
	Currency     models.Currency
	AllowOrigins []string
	Logger       *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		service:     deps.Service,
		coordinator: deps.Coordinator,
		queue:       deps.Queue,
		network:     deps.Network,
		hub:         deps.Hub,
		currency:    deps.Currency,
		origins:     deps.AllowOrigins,
		logger:      deps.Logger,
	}
}

// SetupRoutes builds the gin engine
func (h *Handler) SetupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.withLogging())
	if len(h.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  h.origins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/health", h.HealthCheck)

	cart := r.Group("/cart")
	cart.GET("", h.GetCart)
	cart.DELETE("", h.ClearCart)
	cart.POST("/lines", h.AddLine)
	cart.PATCH("/lines/:id", h.SetQuantity)
	cart.DELETE("/lines/:id", h.RemoveLine)
	cart.POST("/lines/:id/increment", h.Increment)
	cart.POST("/lines/:id/decrement", h.Decrement)
	cart.PUT("/discount", h.SetDiscount)
	cart.DELETE("/discount", h.ClearDiscount)

	r.POST("/checkout", h.Checkout)
	r.GET("/queue", h.ListQueue)
	r.POST("/sync", h.SyncNow)
	r.POST("/network", h.SetNetwork)

	if h.hub != nil {
		r.GET("/ws", h.hub.ServeWS)
	}
	return r
}

// HealthCheck reports local state. The terminal stays usable while offline,
// so it always answers 200.
func (h *Handler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "pos-terminal",
		"online":     h.network.Online(),
		"pending":    h.queue.Len(),
		"sync_state": h.coordinator.State(),
	}
	if last, ok := h.coordinator.LastPass(); ok {
		response["last_pass"] = last
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Preview())
}

func (h *Handler) ClearCart(c *gin.Context) {
	h.service.ClearCart()
	c.Status(http.StatusNoContent)
}

// AddLine handles POST /cart/lines
func (h *Handler) AddLine(c *gin.Context) {
	var req validation.AddLineRequest
	if !h.decode(c, &req) {
		return
	}

	line, err := h.service.AddItem(req.ItemID, pricing.Input{
		Quantity: req.QuantityOrDefault(),
		Variant:  req.Variant,
		WeightKg: req.WeightKg,
		Price:    req.Price,
	})
	if err != nil {
		h.fail(c, "add_line_failed", err)
		return
	}

	h.logger.Debug("line_added", "Line added to cart", requestID(c), map[string]interface{}{
		"item_id":    line.ItemID,
		"quantity":   line.Quantity,
		"line_total": line.LineTotal.StringFixed(models.MoneyPlaces),
	})
	c.JSON(http.StatusCreated, gin.H{"line": line, "cart": h.service.Preview()})
}

// SetQuantity handles PATCH /cart/lines/:id
func (h *Handler) SetQuantity(c *gin.Context) {
	var req validation.SetQuantityRequest
	if !h.decode(c, &req) {
		return
	}
	h.lineResult(c, func(id string) (models.CartLine, error) {
		return h.service.SetQuantity(id, *req.Quantity)
	})
}

func (h *Handler) Increment(c *gin.Context) {
	h.lineResult(c, h.service.Increment)
}

func (h *Handler) Decrement(c *gin.Context) {
	h.lineResult(c, h.service.Decrement)
}

func (h *Handler) lineResult(c *gin.Context, fn func(lineID string) (models.CartLine, error)) {
	line, err := fn(c.Param("id"))
	if err != nil {
		h.fail(c, "update_line_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"line": line, "cart": h.service.Preview()})
}

func (h *Handler) RemoveLine(c *gin.Context) {
	if err := h.service.RemoveLine(c.Param("id")); err != nil {
		h.fail(c, "remove_line_failed", err)
		return
	}
	c.JSON(http.StatusOK, h.service.Preview())
}

// SetDiscount handles PUT /cart/discount
func (h *Handler) SetDiscount(c *gin.Context) {
	var req validation.DiscountRequest
	if !h.decode(c, &req) {
		return
	}

	if _, err := h.service.SetDiscount(models.DiscountType(req.Type), req.TotalPax, req.EligibleCount); err != nil {
		h.fail(c, "discount_rejected", err)
		return
	}
	c.JSON(http.StatusOK, h.service.Preview())
}

func (h *Handler) ClearDiscount(c *gin.Context) {
	h.service.ClearDiscount()
	c.JSON(http.StatusOK, h.service.Preview())
}

// Checkout handles POST /checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req validation.CheckoutRequest
	if !h.decode(c, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.service.Checkout(ctx, CheckoutRequest{
		Payment: models.Payment{
			Method:    models.PaymentMethod(req.PaymentMethod),
			Tendered:  req.Tendered,
			Reference: req.Reference,
		},
		Fulfillment: models.Fulfillment{
			Type:            models.OrderType(req.OrderType),
			TableNumber:     req.TableNumber,
			DeliveryAddress: req.DeliveryAddress,
			DeliveryTime:    req.DeliveryTime,
			ContactNumber:   req.ContactNumber,
		},
		ServerID:  req.ServerID,
		RequestID: requestID(c),
	})
	if err != nil {
		h.fail(c, "checkout_failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":   result.Order,
		"status":  result.Status,
		"message": result.Message,
		"display": gin.H{
			"total":  h.currency.Format(result.Order.Total),
			"change": h.currency.Format(result.Order.Change),
		},
	})
}

type queueItem struct {
	LocalID       string            `json:"local_id"`
	OrderNumber   string            `json:"order_number"`
	State         models.QueueState `json:"state"`
	RetryCount    int               `json:"retry_count"`
	LastErrorKind models.ErrorKind  `json:"last_error_kind,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	NeedsReview   bool              `json:"needs_review"`
	Total         string            `json:"total"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// ListQueue handles GET /queue
func (h *Handler) ListQueue(c *gin.Context) {
	entries := h.queue.ListPending()
	items := make([]queueItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, queueItem{
			LocalID:       e.Order.LocalID,
			OrderNumber:   e.Order.Number,
			State:         e.State,
			RetryCount:    e.RetryCount,
			LastErrorKind: e.LastErrorKind,
			LastError:     e.LastError,
			NeedsReview:   e.NeedsReview(),
			Total:         h.currency.Format(e.Order.Total),
			SubmittedAt:   e.SubmittedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"pending": len(items), "entries": items})
}

// SyncNow handles POST /sync. The pass runs in the request.
func (h *Handler) SyncNow(c *gin.Context) {
	result, started := h.coordinator.SyncNow(c.Request.Context())
	if !started {
		h.writeErrorResponse(c, http.StatusConflict, "sync already running", "", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"message": fmt.Sprintf("%d synced, %d failed, %d pending", result.Synced, result.Failed, result.Pending),
	})
}

// SetNetwork handles POST /network when connectivity is operator-controlled
func (h *Handler) SetNetwork(c *gin.Context) {
	manual, ok := h.network.(*network.Manual)
	if !ok {
		h.writeErrorResponse(c, http.StatusConflict, "network state is probed automatically", "", "")
		return
	}

	var req validation.NetworkRequest
	if !h.decode(c, &req) {
		return
	}

	changed := manual.Set(*req.Online)
	h.logger.Info("network_override", "Operator set network state", requestID(c), map[string]interface{}{
		"online":  *req.Online,
		"changed": changed,
	})
	c.JSON(http.StatusOK, gin.H{"online": manual.Online(), "changed": changed})
}

// decode parses and validates a JSON body, writing the error response itself
func (h *Handler) decode(c *gin.Context, req interface{}) bool {
	if c.ContentType() != "application/json" {
		h.writeErrorResponse(c, http.StatusBadRequest, "Content-Type must be application/json", "", "")
		return false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID(c), err, nil)
		h.writeErrorResponse(c, http.StatusBadRequest, "Invalid JSON format", "", "")
		return false
	}
	if err := validation.Struct(req); err != nil {
		h.fail(c, "validation_failed", err)
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, action string, err error) {
	status := statusFor(err)
	fields := map[string]interface{}{"path": c.FullPath(), "status_code": status}
	if status >= http.StatusInternalServerError {
		h.logger.Error(action, "Request failed", requestID(c), err, fields)
	} else {
		h.logger.Debug(action, err.Error(), requestID(c), fields)
	}

	var e *models.Error
	if errors.As(err, &e) {
		h.writeErrorResponse(c, status, e.Message, e.Kind, e.Field)
		return
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	h.writeErrorResponse(c, status, message, "", "")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrLineNotFound), errors.Is(err, catalog.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable
	}
	switch models.KindOf(err) {
	case models.KindInvalidInput, models.KindMissingReference:
		return http.StatusBadRequest
	case models.KindPaymentInsufficient:
		return http.StatusPaymentRequired
	case models.KindEmptyOrder:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(c *gin.Context, statusCode int, message string, kind models.ErrorKind, field string) {
	body := gin.H{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID(c),
	}
	if kind != "" {
		body["kind"] = kind
	}
	if field != "" {
		body["field"] = field
	}
	c.AbortWithStatusJSON(statusCode, body)
}

// withLogging assigns a request id and logs each request
func (h *Handler) withLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = logger.GenerateRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		h.logger.Debug("request_started", fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path), id, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})

		c.Next()

		h.logger.Debug("request_completed", fmt.Sprintf("%s %s - %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status()), id, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

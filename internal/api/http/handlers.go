package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/session"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/utils"
)

// Service identity reported by / and /health.
var (
	ServiceName = "nova-relay"
	Version     = "0.3.0"
)

// Dispatcher relays one request to the backends.
type Dispatcher interface {
	Dispatch(ctx context.Context, req types.RelayRequest) (*types.RelayResult, error)
}

// ModelLister lists the models the backends offer.
type ModelLister interface {
	ListChatModels(ctx context.Context) ([]string, error)
	ListImageModels(ctx context.Context) ([]string, error)
}

// SessionReader reads sessions without changing them.
type SessionReader interface {
	Get(ctx context.Context, id string) (session.Session, bool)
	Len() int
}

// Deps are the collaborators of the handlers. Breakers and Metrics may be
// nil.
type Deps struct {
	Dispatcher Dispatcher
	Models     ModelLister
	Sessions   SessionReader
	Breakers   func() map[string]string
	Metrics    *monitoring.Metrics
	Logger     *logging.Logger
	// InspectSessions mounts GET /sessions/:id.
	InspectSessions bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	dispatcher Dispatcher
	models     ModelLister
	sessions   SessionReader
	breakers   func() map[string]string
	metrics    *monitoring.Metrics
	logger     *logging.Logger
	inspect    bool
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		dispatcher: deps.Dispatcher,
		models:     deps.Models,
		sessions:   deps.Sessions,
		breakers:   deps.Breakers,
		metrics:    deps.Metrics,
		logger:     logger.Named("api"),
		inspect:    deps.InspectSessions,
	}
}

// Register mounts the relay routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/relay", h.Relay)
	r.POST("/heartbeat", h.Heartbeat)
	r.GET("/models/chat", h.ChatModels)
	r.GET("/models/image", h.ImageModels)

	// Session IDs are bearer-style and client-supplied: whoever holds one
	// can read that conversation. The route stays off unless enabled.
	if h.inspect {
		r.GET("/sessions/:id", h.GetSession)
	}
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": ServiceName,
		"version": Version,
	})
}

// Health reports session count, breaker states and request counters
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"service":  ServiceName,
		"version":  Version,
		"sessions": h.sessions.Len(),
	}

	if h.breakers != nil {
		states := h.breakers()
		body["breakers"] = states
		for _, state := range states {
			if state == "open" {
				body["status"] = "degraded"
			}
		}
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}

	c.JSON(http.StatusOK, body)
}

// Relay is the multiplexed entry point for chat, image generation and
// vision requests. It accepts JSON or multipart form bodies.
func (h *Handlers) Relay(c *gin.Context) {
	req, err := bindRelay(c)
	if err != nil {
		h.logger.FromContext(c.Request.Context()).Info("Rejected relay request", zap.Error(err))
		fail(c, err)
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, newRelayData(result))
}

// Heartbeat is a no-op the UI polls to keep its connection warm.
func (h *Handlers) Heartbeat(c *gin.Context) {
	c.JSON(http.StatusOK, Envelope{Success: true})
}

// ChatModels lists the chat backend's models
func (h *Handlers) ChatModels(c *gin.Context) {
	h.listModels(c, h.models.ListChatModels)
}

// ImageModels lists the image backend's models
func (h *Handlers) ImageModels(c *gin.Context) {
	h.listModels(c, h.models.ListImageModels)
}

func (h *Handlers) listModels(c *gin.Context, list func(context.Context) ([]string, error)) {
	models, err := list(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"models": models})
}

// SessionView is the read-only view of a session's context window.
type SessionView struct {
	SessionID    string       `json:"session_id"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	Turns        []types.Turn `json:"turns"`
}

// GetSession returns a session's current context window. It performs no
// ownership check; see Register.
func (h *Handlers) GetSession(c *gin.Context) {
	id := c.Param("id")

	if err := utils.ValidateSessionID(id); err != nil {
		failWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	sess, found := h.sessions.Get(c.Request.Context(), id)
	if !found {
		failWith(c, http.StatusNotFound, "not_found", "session not found")
		return
	}

	ok(c, SessionView{
		SessionID:    sess.ID,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
		Turns:        sess.Turns,
	})
}

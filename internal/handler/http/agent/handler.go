package agent

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"supportdesk-backend/internal/domain"
	"supportdesk-backend/internal/service/assignment"
	"supportdesk-backend/pkg/metrics"
	"supportdesk-backend/pkg/response"
)

// PresenceStore is the presence surface the handler consumes
type PresenceStore interface {
	SetAgentOnline(ctx context.Context, agent *domain.Agent) error
	SetAgentOffline(ctx context.Context, csrUID uuid.UUID) error
	RefreshPresence(ctx context.Context, csrUID uuid.UUID) error
	OnlineCount(ctx context.Context) (int64, error)
}

// Handler handles CSR agent presence HTTP requests
type Handler struct {
	presenceStore     PresenceStore
	assignmentService *assignment.Service
	metrics           *metrics.Metrics
}

// NewHandler creates a new agent handler
func NewHandler(presenceStore PresenceStore, assignmentService *assignment.Service, m *metrics.Metrics) *Handler {
	return &Handler{
		presenceStore:     presenceStore,
		assignmentService: assignmentService,
		metrics:           m,
	}
}

// csrFromContext reads the authenticated agent identity set by the auth middleware
func csrFromContext(c *gin.Context) (uuid.UUID, string, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, "", false
	}
	csrUID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	return csrUID, c.GetString("name"), true
}

// GoOnlineRequest represents the optional profile payload on go-online
type GoOnlineRequest struct {
	ProfilePicture string `json:"profile_picture"`
}

// GoOnline marks the authenticated agent as available for hand-off
// POST /v1/agents/online
func (h *Handler) GoOnline(c *gin.Context) {
	csrUID, name, ok := csrFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	var req GoOnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.ValidationError(c, err.Error())
		return
	}

	err := h.presenceStore.SetAgentOnline(c.Request.Context(), &domain.Agent{
		CSRUID:         csrUID,
		Name:           name,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.updateOnlineGauge(c)
	response.Success(c, http.StatusOK, gin.H{"online": true})
}

// GoOffline removes the authenticated agent from the available pool
// POST /v1/agents/offline
func (h *Handler) GoOffline(c *gin.Context) {
	csrUID, _, ok := csrFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.presenceStore.SetAgentOffline(c.Request.Context(), csrUID); err != nil {
		response.FromError(c, err)
		return
	}

	h.updateOnlineGauge(c)
	response.Success(c, http.StatusOK, gin.H{"online": false})
}

// Heartbeat extends the authenticated agent's presence TTL
// POST /v1/agents/heartbeat
func (h *Handler) Heartbeat(c *gin.Context) {
	csrUID, _, ok := csrFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.presenceStore.RefreshPresence(c.Request.Context(), csrUID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"online": true})
}

// ListOnline lists online agents with their current assignment loads
// GET /v1/agents/online
func (h *Handler) ListOnline(c *gin.Context) {
	candidates, err := h.assignmentService.Candidates(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"agents": candidates,
		"count":  len(candidates),
	})
}

func (h *Handler) updateOnlineGauge(c *gin.Context) {
	count, err := h.presenceStore.OnlineCount(c.Request.Context())
	if err != nil {
		return
	}
	h.metrics.SetAgentsOnline(int(count))
}

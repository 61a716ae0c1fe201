package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"supportdesk-backend/internal/domain"
	"supportdesk-backend/internal/service/assignment"
	"supportdesk-backend/internal/service/conversation"
	"supportdesk-backend/pkg/metrics"
	"supportdesk-backend/pkg/response"
)

// Handler handles conversation HTTP requests
type Handler struct {
	conversationService *conversation.Service
	assignmentService   *assignment.Service
	metrics             *metrics.Metrics
}

// NewHandler creates a new conversation handler
func NewHandler(
	conversationService *conversation.Service,
	assignmentService *assignment.Service,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		conversationService: conversationService,
		assignmentService:   assignmentService,
		metrics:             m,
	}
}

// CreateConversationRequest represents create conversation request
type CreateConversationRequest struct {
	ConversationUUID string `json:"conversation_uuid"`
	ApplicationUUID  string `json:"application_uuid" binding:"required"`
	CustomerUUID     string `json:"customer_uuid" binding:"required"`
	UserName         string `json:"user_name"`
	UserProfilePic   string `json:"user_profile_picture"`
	ExternalUserID   string `json:"external_user_id"`
}

// CreateConversation creates a new live conversation
// POST /v1/conversations
func (h *Handler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	applicationUUID, err := uuid.Parse(req.ApplicationUUID)
	if err != nil {
		response.ValidationError(c, "Invalid application UUID")
		return
	}

	customerUUID, err := uuid.Parse(req.CustomerUUID)
	if err != nil {
		response.ValidationError(c, "Invalid customer UUID")
		return
	}

	var conversationUUID uuid.UUID
	if req.ConversationUUID != "" {
		conversationUUID, err = uuid.Parse(req.ConversationUUID)
		if err != nil {
			response.ValidationError(c, "Invalid conversation UUID")
			return
		}
	}

	doc, err := h.conversationService.CreateConversation(c.Request.Context(), &conversation.CreateConversationInput{
		ConversationUUID: conversationUUID,
		ApplicationUUID:  applicationUUID,
		CustomerUUID:     customerUUID,
		UserDetails: domain.UserDetails{
			Name:           req.UserName,
			ProfilePicture: req.UserProfilePic,
			ExternalUserID: req.ExternalUserID,
		},
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, doc)
}

// GetConversation retrieves a conversation from whichever store holds it
// GET /v1/conversations/:id
func (h *Handler) GetConversation(c *gin.Context) {
	conversationUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation ID")
		return
	}

	doc, err := h.conversationService.GetConversation(c.Request.Context(), conversationUUID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, doc)
}

// AppendMessageRequest represents an append message request
type AppendMessageRequest struct {
	Source      string `json:"source" binding:"required,oneof=user bot csr"`
	MessageText string `json:"message_text"`
	MediaURL    string `json:"media_url"`
	Marker      string `json:"marker"`
}

// AppendMessage appends a message to a live conversation
// POST /v1/conversations/:id/messages
func (h *Handler) AppendMessage(c *gin.Context) {
	conversationUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation ID")
		return
	}

	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	msg, err := h.conversationService.AppendMessage(c.Request.Context(), conversationUUID, &conversation.AppendMessageInput{
		Source:      domain.MessageSource(req.Source),
		MessageText: req.MessageText,
		MediaURL:    req.MediaURL,
		Marker:      req.Marker,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.metrics.RecordMessage(req.Source)
	response.Success(c, http.StatusCreated, msg)
}

// HandOffRequest represents a hand-off request. When CSRUID is empty the
// least-loaded online agent is picked automatically.
type HandOffRequest struct {
	CSRUID         string `json:"csr_uid"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
}

// HandOff assigns a conversation to a CSR agent
// POST /v1/conversations/:id/handoff
func (h *Handler) HandOff(c *gin.Context) {
	conversationUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation ID")
		return
	}

	var req HandOffRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.ValidationError(c, err.Error())
		return
	}

	var agent *domain.Agent
	if req.CSRUID != "" {
		csrUID, err := uuid.Parse(req.CSRUID)
		if err != nil {
			response.ValidationError(c, "Invalid CSR UID")
			return
		}
		agent = &domain.Agent{
			CSRUID:         csrUID,
			Name:           req.Name,
			ProfilePicture: req.ProfilePicture,
		}
	} else {
		chosen, err := h.assignmentService.Assign(c.Request.Context())
		if err != nil {
			h.metrics.RecordHandOffFailure("no_agents_online")
			response.FromError(c, err)
			return
		}
		agent = &domain.Agent{
			CSRUID:         chosen.CSRUID,
			Name:           chosen.Name,
			ProfilePicture: chosen.ProfilePicture,
		}
	}

	doc, err := h.conversationService.HandOff(c.Request.Context(), conversationUUID, agent)
	if err != nil {
		h.metrics.RecordHandOffFailure("store_error")
		response.FromError(c, err)
		return
	}

	kind := "initial"
	if len(doc.CSRInfo) > 1 {
		kind = "reassignment"
	}
	h.metrics.RecordHandOff(kind)

	response.Success(c, http.StatusOK, doc)
}

// ChangeStatusRequest represents a status change request
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChangeStatus transitions a conversation's status
// PATCH /v1/conversations/:id/status
func (h *Handler) ChangeStatus(c *gin.Context) {
	conversationUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation ID")
		return
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	doc, err := h.conversationService.ChangeStatus(c.Request.Context(), conversationUUID, domain.ConversationStatus(req.Status))
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.metrics.RecordStatusChange(req.Status)
	response.Success(c, http.StatusOK, doc)
}

// FeedbackRequest represents a post-resolution feedback submission
type FeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// SubmitFeedback attaches satisfaction feedback to a conversation
// POST /v1/conversations/:id/feedback
func (h *Handler) SubmitFeedback(c *gin.Context) {
	conversationUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation ID")
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	doc, err := h.conversationService.AttachFeedback(c.Request.Context(), conversationUUID, &domain.Feedback{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.metrics.RecordFeedback()
	response.Success(c, http.StatusOK, doc)
}

// Flush forces an immediate archive of a live conversation
// POST /v1/conversations/:id/flush
func (h *Handler) Flush(c *gin.Context) {
	conversationUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation ID")
		return
	}

	if err := h.conversationService.Flush(c.Request.Context(), conversationUUID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"flushed": true})
}

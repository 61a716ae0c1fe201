package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	"supportdesk-backend/pkg/constants"
	apperrors "supportdesk-backend/pkg/errors"
)

// LiveStore is the fast-store surface the service consumes
type LiveStore interface {
	Exists(ctx context.Context, conversationUUID uuid.UUID) (bool, error)
	Get(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error)
	Put(ctx context.Context, doc *domain.ConversationDocument) error
	Delete(ctx context.Context, conversationUUID uuid.UUID) error
}

// ArchiveStore is the durable-store surface the service consumes
type ArchiveStore interface {
	Save(ctx context.Context, doc *domain.ConversationDocument) error
	Load(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error)
	Exists(ctx context.Context, conversationUUID uuid.UUID) (bool, error)
}

// Service owns conversation lifecycle: status transitions, CSR hand-off,
// message append, and the explicit flush-on-disconnect path.
//
// Mutations are read-modify-write over the whole document. The service does
// not provide atomicity on top of the stores; correctness relies on each
// conversation having a single writer.
type Service struct {
	liveStore    LiveStore
	archiveStore ArchiveStore
	logger       *zap.Logger
}

// NewService creates a new conversation service
func NewService(liveStore LiveStore, archiveStore ArchiveStore, logger *zap.Logger) *Service {
	return &Service{
		liveStore:    liveStore,
		archiveStore: archiveStore,
		logger:       logger,
	}
}

// CreateConversationInput contains conversation creation data
type CreateConversationInput struct {
	ConversationUUID uuid.UUID
	ApplicationUUID  uuid.UUID
	CustomerUUID     uuid.UUID
	UserDetails      domain.UserDetails
}

// CreateConversation writes a fresh document into the live store.
// Called by the chat transport when the first user message arrives.
func (s *Service) CreateConversation(ctx context.Context, input *CreateConversationInput) (*domain.ConversationDocument, error) {
	conversationUUID := input.ConversationUUID
	if conversationUUID == uuid.Nil {
		conversationUUID = uuid.New()
	} else {
		// A caller-supplied id may belong to an already-flushed conversation;
		// writing it live again would put the document in both stores
		archived, err := s.archiveStore.Exists(ctx, conversationUUID)
		if err != nil {
			return nil, err
		}
		if archived {
			return nil, apperrors.ErrConversationExists
		}
	}

	doc := &domain.ConversationDocument{
		ConversationUUID:   conversationUUID,
		ConversationStatus: domain.StatusBotOngoing,
		CSRHandOff:         false,
		CSRInfo:            []domain.CSRInfo{},
		UserDetails:        input.UserDetails,
		MessageDetails:     []domain.MessageDetail{},
		ConversationStats: []domain.SessionStat{
			{StartTime: time.Now().UTC()},
		},
		ApplicationUUID: input.ApplicationUUID,
		CustomerUUID:    input.CustomerUUID,
	}

	if err := s.liveStore.Put(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		zap.String("conversation_uuid", doc.ConversationUUID.String()),
		zap.String("application_uuid", doc.ApplicationUUID.String()))

	return doc, nil
}

// GetConversation retrieves a document from whichever store holds it
func (s *Service) GetConversation(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error) {
	doc, err := s.liveStore.Get(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	doc, err = s.archiveStore.Load(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.ErrConversationNotFound
	}

	return doc, nil
}

// AppendMessageInput contains message data
type AppendMessageInput struct {
	Source      domain.MessageSource
	MessageText string
	MediaURL    string
	Marker      string
}

// AppendMessage appends a message to a live conversation.
// Messages only flow while the document is live; an archived conversation
// no longer accepts messages.
func (s *Service) AppendMessage(ctx context.Context, conversationUUID uuid.UUID, input *AppendMessageInput) (*domain.MessageDetail, error) {
	if !input.Source.IsValid() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid message source")
	}
	if len(input.MessageText) > constants.MaxMessageLength {
		return nil, apperrors.NewWithStatus(apperrors.ErrCodeInvalidInput, "message text too long", 400)
	}

	doc, err := s.liveStore.Get(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.ErrConversationNotFound
	}

	msg := domain.MessageDetail{
		ID:          uuid.New(),
		Source:      input.Source,
		MessageText: input.MessageText,
		MediaURL:    input.MediaURL,
		CreatedAt:   time.Now().UTC(),
		Marker:      input.Marker,
	}

	doc.AppendMessage(msg)

	if err := s.liveStore.Put(ctx, doc); err != nil {
		return nil, err
	}

	return &msg, nil
}

// HandOff assigns a conversation to a CSR agent.
// A different agent taking over deactivates the prior Assigned entry first,
// so at most one entry is ever Assigned. Handing off to the agent already
// assigned is a no-op.
func (s *Service) HandOff(ctx context.Context, conversationUUID uuid.UUID, agent *domain.Agent) (*domain.ConversationDocument, error) {
	return s.mutate(ctx, conversationUUID, func(doc *domain.ConversationDocument) {
		if active := doc.ActiveCSR(); active != nil && active.CSRUID == agent.CSRUID {
			return
		}

		doc.DeactivateCSRs()
		doc.CSRInfo = append(doc.CSRInfo, domain.CSRInfo{
			CSRUID:         agent.CSRUID,
			Name:           agent.Name,
			ProfilePicture: agent.ProfilePicture,
			Status:         domain.CSRAssigned,
			AssignedTime:   time.Now().UTC(),
		})
		doc.CSRHandOff = true
		doc.ConversationStatus = domain.StatusCSROngoing
	})
}

// ChangeStatus transitions a conversation's status wherever the document lives
func (s *Service) ChangeStatus(ctx context.Context, conversationUUID uuid.UUID, status domain.ConversationStatus) (*domain.ConversationDocument, error) {
	if !status.IsValid() {
		return nil, apperrors.NewWithStatus(apperrors.ErrCodeInvalidStatus, "invalid conversation status", 400)
	}

	return s.mutate(ctx, conversationUUID, func(doc *domain.ConversationDocument) {
		doc.ConversationStatus = status
	})
}

// AttachFeedback attaches the post-resolution satisfaction payload
func (s *Service) AttachFeedback(ctx context.Context, conversationUUID uuid.UUID, feedback *domain.Feedback) (*domain.ConversationDocument, error) {
	fb := *feedback
	if fb.SubmittedAt.IsZero() {
		fb.SubmittedAt = time.Now().UTC()
	}

	return s.mutate(ctx, conversationUUID, func(doc *domain.ConversationDocument) {
		doc.Feedback = &fb
	})
}

// StartSession appends a session-boundary record on transport connect
func (s *Service) StartSession(ctx context.Context, conversationUUID uuid.UUID) error {
	doc, err := s.liveStore.Get(ctx, conversationUUID)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperrors.ErrConversationNotFound
	}

	doc.ConversationStats = append(doc.ConversationStats, domain.SessionStat{
		StartTime: time.Now().UTC(),
	})

	return s.liveStore.Put(ctx, doc)
}

// EndSession closes the most recent open session-boundary record
func (s *Service) EndSession(ctx context.Context, conversationUUID uuid.UUID) error {
	doc, err := s.liveStore.Get(ctx, conversationUUID)
	if err != nil {
		return err
	}
	if doc == nil {
		// Already flushed; nothing to close
		return nil
	}

	for i := len(doc.ConversationStats) - 1; i >= 0; i-- {
		if doc.ConversationStats[i].EndTime == nil {
			now := time.Now().UTC()
			doc.ConversationStats[i].EndTime = &now
			break
		}
	}

	return s.liveStore.Put(ctx, doc)
}

// Flush moves a live conversation into the archive and removes it from the
// live store. The archive write must succeed before the delete; on write
// failure the live copy is kept for a later pass.
func (s *Service) Flush(ctx context.Context, conversationUUID uuid.UUID) error {
	doc, err := s.liveStore.Get(ctx, conversationUUID)
	if err != nil {
		return err
	}
	if doc == nil {
		// Nothing live to flush
		return nil
	}

	if err := s.archiveStore.Save(ctx, doc); err != nil {
		return err
	}

	if err := s.liveStore.Delete(ctx, conversationUUID); err != nil {
		// The document is now duplicated across both stores; the next flush
		// pass re-evaluates it and the archive upsert absorbs the repeat.
		s.logger.Warn("failed to delete flushed conversation from live store",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
		return err
	}

	s.logger.Info("conversation flushed",
		zap.String("conversation_uuid", conversationUUID.String()),
		zap.String("status", string(doc.ConversationStatus)))

	return nil
}

// mutate applies fn to the document in whichever store holds it and writes
// it back to the same store. Live store is checked first; a conversation
// absent from both fails with ErrConversationNotFound.
func (s *Service) mutate(ctx context.Context, conversationUUID uuid.UUID, fn func(*domain.ConversationDocument)) (*domain.ConversationDocument, error) {
	exists, err := s.liveStore.Exists(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}

	if exists {
		doc, err := s.liveStore.Get(ctx, conversationUUID)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			fn(doc)
			if err := s.liveStore.Put(ctx, doc); err != nil {
				return nil, err
			}
			return doc, nil
		}
		// Deleted between exists and get; fall through to the archive
	}

	doc, err := s.archiveStore.Load(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.ErrConversationNotFound
	}

	fn(doc)
	if err := s.archiveStore.Save(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

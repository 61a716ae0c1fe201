package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	"supportdesk-backend/pkg/constants"
	apperrors "supportdesk-backend/pkg/errors"
)

// Mocks
type MockLiveStore struct {
	mock.Mock
}

func (m *MockLiveStore) Exists(ctx context.Context, conversationUUID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationUUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLiveStore) Get(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error) {
	args := m.Called(ctx, conversationUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationDocument), args.Error(1)
}

func (m *MockLiveStore) Put(ctx context.Context, doc *domain.ConversationDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockLiveStore) Delete(ctx context.Context, conversationUUID uuid.UUID) error {
	args := m.Called(ctx, conversationUUID)
	return args.Error(0)
}

type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) Save(ctx context.Context, doc *domain.ConversationDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockArchiveStore) Load(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error) {
	args := m.Called(ctx, conversationUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationDocument), args.Error(1)
}

func (m *MockArchiveStore) Exists(ctx context.Context, conversationUUID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationUUID)
	return args.Bool(0), args.Error(1)
}

func newLiveDoc() *domain.ConversationDocument {
	return &domain.ConversationDocument{
		ConversationUUID:   uuid.New(),
		ConversationStatus: domain.StatusBotOngoing,
		CSRInfo:            []domain.CSRInfo{},
		MessageDetails:     []domain.MessageDetail{},
	}
}

func countAssigned(doc *domain.ConversationDocument) int {
	n := 0
	for _, entry := range doc.CSRInfo {
		if entry.Status == domain.CSRAssigned {
			n++
		}
	}
	return n
}

func TestCreateConversation_GeneratedUUIDSkipsArchiveCheck(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	ctx := context.Background()
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	doc, err := service.CreateConversation(ctx, &CreateConversationInput{
		ApplicationUUID: uuid.New(),
		CustomerUUID:    uuid.New(),
	})

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ConversationUUID)
	assert.Equal(t, domain.StatusBotOngoing, doc.ConversationStatus)
	mockArchive.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestCreateConversation_RejectsArchivedUUID(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	conversationUUID := uuid.New()

	ctx := context.Background()
	mockArchive.On("Exists", ctx, conversationUUID).Return(true, nil)

	doc, err := service.CreateConversation(ctx, &CreateConversationInput{
		ConversationUUID: conversationUUID,
		ApplicationUUID:  uuid.New(),
		CustomerUUID:     uuid.New(),
	})

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, apperrors.ErrConversationExists)
	mockLive.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestHandOff_SetsHandOffAndStatus(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()
	agent := &domain.Agent{CSRUID: uuid.New(), Name: "Agent One"}

	ctx := context.Background()
	mockLive.On("Exists", ctx, doc.ConversationUUID).Return(true, nil)
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	updated, err := service.HandOff(ctx, doc.ConversationUUID, agent)

	assert.NoError(t, err)
	assert.True(t, updated.CSRHandOff)
	assert.Equal(t, domain.StatusCSROngoing, updated.ConversationStatus)
	assert.Len(t, updated.CSRInfo, 1)
	assert.Equal(t, domain.CSRAssigned, updated.CSRInfo[0].Status)
	mockLive.AssertExpectations(t)
}

func TestHandOff_AtMostOneAssigned(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()
	first := &domain.Agent{CSRUID: uuid.New(), Name: "First"}
	second := &domain.Agent{CSRUID: uuid.New(), Name: "Second"}
	third := &domain.Agent{CSRUID: uuid.New(), Name: "Third"}

	ctx := context.Background()
	mockLive.On("Exists", ctx, doc.ConversationUUID).Return(true, nil)
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	for _, agent := range []*domain.Agent{first, second, third} {
		_, err := service.HandOff(ctx, doc.ConversationUUID, agent)
		assert.NoError(t, err)
	}

	assert.Len(t, doc.CSRInfo, 3)
	assert.Equal(t, 1, countAssigned(doc))
	assert.Equal(t, third.CSRUID, doc.ActiveCSR().CSRUID)
}

func TestHandOff_SameAgentIsNoOp(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()
	agent := &domain.Agent{CSRUID: uuid.New(), Name: "Agent One"}

	ctx := context.Background()
	mockLive.On("Exists", ctx, doc.ConversationUUID).Return(true, nil)
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	_, err := service.HandOff(ctx, doc.ConversationUUID, agent)
	assert.NoError(t, err)
	_, err = service.HandOff(ctx, doc.ConversationUUID, agent)
	assert.NoError(t, err)

	assert.Len(t, doc.CSRInfo, 1)
	assert.Equal(t, 1, countAssigned(doc))
}

func TestChangeStatus_FallsBackToArchive(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()
	doc.ConversationStatus = domain.StatusCSROngoing

	ctx := context.Background()
	mockLive.On("Exists", ctx, doc.ConversationUUID).Return(false, nil)
	mockArchive.On("Load", ctx, doc.ConversationUUID).Return(doc, nil)
	mockArchive.On("Save", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	updated, err := service.ChangeStatus(ctx, doc.ConversationUUID, domain.StatusResolved)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, updated.ConversationStatus)
	mockLive.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	mockArchive.AssertExpectations(t)
}

func TestChangeStatus_NotFoundInEitherStore(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	conversationUUID := uuid.New()

	ctx := context.Background()
	mockLive.On("Exists", ctx, conversationUUID).Return(false, nil)
	mockArchive.On("Load", ctx, conversationUUID).Return(nil, nil)

	updated, err := service.ChangeStatus(ctx, conversationUUID, domain.StatusResolved)

	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)
}

func TestChangeStatus_RejectsUnknownStatus(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	updated, err := service.ChangeStatus(context.Background(), uuid.New(), "HALF_OPEN")

	assert.Nil(t, updated)
	assert.Error(t, err)
	mockLive.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestAppendMessage_PreservesInsertionOrder(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()

	ctx := context.Background()
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	first, err := service.AppendMessage(ctx, doc.ConversationUUID, &AppendMessageInput{
		Source:      domain.SourceUser,
		MessageText: "hello",
	})
	assert.NoError(t, err)

	second, err := service.AppendMessage(ctx, doc.ConversationUUID, &AppendMessageInput{
		Source:      domain.SourceBot,
		MessageText: "hi there",
	})
	assert.NoError(t, err)

	assert.Len(t, doc.MessageDetails, 2)
	assert.Equal(t, first.ID, doc.MessageDetails[0].ID)
	assert.Equal(t, second.ID, doc.MessageDetails[1].ID)
	assert.False(t, doc.MessageDetails[1].CreatedAt.Before(doc.MessageDetails[0].CreatedAt))
}

func TestAppendMessage_ArchivedConversationRejects(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	conversationUUID := uuid.New()

	ctx := context.Background()
	mockLive.On("Get", ctx, conversationUUID).Return(nil, nil)

	msg, err := service.AppendMessage(ctx, conversationUUID, &AppendMessageInput{
		Source:      domain.SourceUser,
		MessageText: "hello",
	})

	assert.Nil(t, msg)
	assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)
}

func TestAppendMessage_RejectsOversizedText(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	msg, err := service.AppendMessage(context.Background(), uuid.New(), &AppendMessageInput{
		Source:      domain.SourceUser,
		MessageText: strings.Repeat("a", constants.MaxMessageLength+1),
	})

	assert.Nil(t, msg)
	assert.Error(t, err)
	mockLive.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestFlush_ArchiveWriteFailureKeepsLiveCopy(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()

	ctx := context.Background()
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockArchive.On("Save", ctx, doc).Return(apperrors.ArchiveWriteFailed(errors.New("connection refused")))

	err := service.Flush(ctx, doc.ConversationUUID)

	assert.ErrorIs(t, err, apperrors.ErrArchiveWriteFailed)
	mockLive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFlush_DeletesAfterArchiveWrite(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()

	ctx := context.Background()
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockArchive.On("Save", ctx, doc).Return(nil)
	mockLive.On("Delete", ctx, doc.ConversationUUID).Return(nil)

	err := service.Flush(ctx, doc.ConversationUUID)

	assert.NoError(t, err)
	mockArchive.AssertExpectations(t)
	mockLive.AssertExpectations(t)
}

func TestFlush_NothingLiveIsNoOp(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	conversationUUID := uuid.New()

	ctx := context.Background()
	mockLive.On("Get", ctx, conversationUUID).Return(nil, nil)

	err := service.Flush(ctx, conversationUUID)

	assert.NoError(t, err)
	mockArchive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAttachFeedback(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()
	doc.ConversationStatus = domain.StatusResolved

	ctx := context.Background()
	mockLive.On("Exists", ctx, doc.ConversationUUID).Return(true, nil)
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	updated, err := service.AttachFeedback(ctx, doc.ConversationUUID, &domain.Feedback{
		Rating:  5,
		Comment: "solved my issue",
	})

	assert.NoError(t, err)
	assert.NotNil(t, updated.Feedback)
	assert.Equal(t, 5, updated.Feedback.Rating)
	assert.False(t, updated.Feedback.SubmittedAt.IsZero())
}

func TestEndSession_ClosesOpenBoundary(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	service := NewService(mockLive, mockArchive, zap.NewNop())

	doc := newLiveDoc()
	doc.ConversationStats = []domain.SessionStat{{StartTime: time.Now().UTC().Add(-time.Hour)}}

	ctx := context.Background()
	mockLive.On("Get", ctx, doc.ConversationUUID).Return(doc, nil)
	mockLive.On("Put", ctx, mock.AnythingOfType("*domain.ConversationDocument")).Return(nil)

	err := service.EndSession(ctx, doc.ConversationUUID)

	assert.NoError(t, err)
	assert.NotNil(t, doc.ConversationStats[0].EndTime)
}

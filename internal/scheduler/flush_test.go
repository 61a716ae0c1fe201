package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	apperrors "supportdesk-backend/pkg/errors"
)

// Mocks
type MockLiveStore struct {
	mock.Mock
}

func (m *MockLiveStore) Keys(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockLiveStore) Get(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error) {
	args := m.Called(ctx, conversationUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationDocument), args.Error(1)
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

func newTestScheduler(live *MockLiveStore, archive *MockArchiveStore, now time.Time) *Scheduler {
	s := NewScheduler(live, archive, 30*time.Minute, 10*time.Minute, nil, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func docWithLastMessage(conversationUUID uuid.UUID, lastMessageAt time.Time) *domain.ConversationDocument {
	return &domain.ConversationDocument{
		ConversationUUID:   conversationUUID,
		ConversationStatus: domain.StatusBotOngoing,
		MessageDetails: []domain.MessageDetail{
			{
				ID:          uuid.New(),
				Source:      domain.SourceUser,
				MessageText: "hello",
				CreatedAt:   lastMessageAt,
			},
		},
	}
}

func TestRun_FlushesIdleConversation(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler := newTestScheduler(mockLive, mockArchive, now)

	conversationUUID := uuid.New()
	doc := docWithLastMessage(conversationUUID, now.Add(-30*time.Minute-time.Second))

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{conversationUUID}, nil)
	mockLive.On("Get", ctx, conversationUUID).Return(doc, nil)
	mockArchive.On("Save", ctx, doc).Return(nil)
	mockLive.On("Delete", ctx, conversationUUID).Return(nil)

	scheduler.Run(ctx)

	mockLive.AssertExpectations(t)
	mockArchive.AssertExpectations(t)
}

func TestRun_KeepsConversationAtThreshold(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler := newTestScheduler(mockLive, mockArchive, now)

	conversationUUID := uuid.New()
	doc := docWithLastMessage(conversationUUID, now.Add(-30*time.Minute))

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{conversationUUID}, nil)
	mockLive.On("Get", ctx, conversationUUID).Return(doc, nil)

	scheduler.Run(ctx)

	mockArchive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	mockLive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRun_KeepsActiveConversation(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler := newTestScheduler(mockLive, mockArchive, now)

	conversationUUID := uuid.New()
	doc := docWithLastMessage(conversationUUID, now.Add(-5*time.Minute))

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{conversationUUID}, nil)
	mockLive.On("Get", ctx, conversationUUID).Return(doc, nil)

	scheduler.Run(ctx)

	mockArchive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	mockLive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRun_SkipsConversationWithoutMessages(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler := newTestScheduler(mockLive, mockArchive, now)

	conversationUUID := uuid.New()
	doc := &domain.ConversationDocument{
		ConversationUUID:   conversationUUID,
		ConversationStatus: domain.StatusBotOngoing,
	}

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{conversationUUID}, nil)
	mockLive.On("Get", ctx, conversationUUID).Return(doc, nil)

	scheduler.Run(ctx)

	mockArchive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	mockLive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRun_ArchiveWriteFailureKeepsLiveCopy(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler := newTestScheduler(mockLive, mockArchive, now)

	conversationUUID := uuid.New()
	doc := docWithLastMessage(conversationUUID, now.Add(-time.Hour))

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{conversationUUID}, nil)
	mockLive.On("Get", ctx, conversationUUID).Return(doc, nil)
	mockArchive.On("Save", ctx, doc).Return(apperrors.ArchiveWriteFailed(assert.AnError))

	scheduler.Run(ctx)

	mockLive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRun_PerKeyFailureDoesNotAbortPass(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler := newTestScheduler(mockLive, mockArchive, now)

	first := uuid.New()
	broken := uuid.New()
	third := uuid.New()

	firstDoc := docWithLastMessage(first, now.Add(-time.Hour))
	thirdDoc := docWithLastMessage(third, now.Add(-2*time.Hour))

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{first, broken, third}, nil)
	mockLive.On("Get", ctx, first).Return(firstDoc, nil)
	mockLive.On("Get", ctx, broken).Return(nil, apperrors.MalformedDocument(assert.AnError))
	mockLive.On("Get", ctx, third).Return(thirdDoc, nil)
	mockArchive.On("Save", ctx, firstDoc).Return(nil)
	mockArchive.On("Save", ctx, thirdDoc).Return(nil)
	mockLive.On("Delete", ctx, first).Return(nil)
	mockLive.On("Delete", ctx, third).Return(nil)

	scheduler.Run(ctx)

	mockLive.AssertExpectations(t)
	mockArchive.AssertExpectations(t)
}

func TestRun_EnumerationFailureAbortsPass(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	scheduler := newTestScheduler(mockLive, mockArchive, time.Now().UTC())

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return(nil, apperrors.StoreUnavailable(assert.AnError))

	scheduler.Run(ctx)

	mockLive.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	mockArchive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRun_MissingDocumentSkipped(t *testing.T) {
	mockLive := new(MockLiveStore)
	mockArchive := new(MockArchiveStore)
	scheduler := newTestScheduler(mockLive, mockArchive, time.Now().UTC())

	conversationUUID := uuid.New()

	ctx := context.Background()
	mockLive.On("Keys", ctx).Return([]uuid.UUID{conversationUUID}, nil)
	mockLive.On("Get", ctx, conversationUUID).Return(nil, nil)

	scheduler.Run(ctx)

	mockArchive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	mockLive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

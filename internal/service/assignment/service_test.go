package assignment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	apperrors "supportdesk-backend/pkg/errors"
)

// Mocks
type MockPresenceRepository struct {
	mock.Mock
}

func (m *MockPresenceRepository) OnlineAgents(ctx context.Context) ([]*domain.Agent, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Agent), args.Error(1)
}

func (m *MockPresenceRepository) Loads(ctx context.Context) (map[uuid.UUID]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

func (m *MockPresenceRepository) IncrementLoad(ctx context.Context, csrUID uuid.UUID, delta int) error {
	args := m.Called(ctx, csrUID, delta)
	return args.Error(0)
}

func candidate(name string, load int) domain.AssignmentCandidate {
	return domain.AssignmentCandidate{
		CSRUID:      uuid.New(),
		Name:        name,
		CurrentLoad: load,
	}
}

func TestPickLeastLoaded(t *testing.T) {
	a := candidate("A", 2)
	b := candidate("B", 0)
	c := candidate("C", 1)

	chosen, err := PickLeastLoaded([]domain.AssignmentCandidate{a, b, c})

	assert.NoError(t, err)
	assert.Equal(t, b.CSRUID, chosen.CSRUID)
}

func TestPickLeastLoaded_TieBreaksInInputOrder(t *testing.T) {
	a := candidate("A", 1)
	b := candidate("B", 1)

	chosen, err := PickLeastLoaded([]domain.AssignmentCandidate{a, b})

	assert.NoError(t, err)
	assert.Equal(t, a.CSRUID, chosen.CSRUID)
}

func TestPickLeastLoaded_Empty(t *testing.T) {
	chosen, err := PickLeastLoaded(nil)

	assert.Nil(t, chosen)
	assert.ErrorIs(t, err, apperrors.ErrNoAgentsOnline)
}

func TestAssign_IncrementsChosenLoad(t *testing.T) {
	mockRepo := new(MockPresenceRepository)
	service := NewService(mockRepo, zap.NewNop())

	busy := &domain.Agent{CSRUID: uuid.New(), Name: "Busy"}
	idle := &domain.Agent{CSRUID: uuid.New(), Name: "Idle"}

	ctx := context.Background()
	mockRepo.On("OnlineAgents", ctx).Return([]*domain.Agent{busy, idle}, nil)
	mockRepo.On("Loads", ctx).Return(map[uuid.UUID]int{busy.CSRUID: 3}, nil)
	mockRepo.On("IncrementLoad", ctx, idle.CSRUID, 1).Return(nil)

	chosen, err := service.Assign(ctx)

	assert.NoError(t, err)
	assert.Equal(t, idle.CSRUID, chosen.CSRUID)
	mockRepo.AssertExpectations(t)
}

func TestAssign_NoAgentsOnline(t *testing.T) {
	mockRepo := new(MockPresenceRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	mockRepo.On("OnlineAgents", ctx).Return([]*domain.Agent{}, nil)
	mockRepo.On("Loads", ctx).Return(map[uuid.UUID]int{}, nil)

	chosen, err := service.Assign(ctx)

	assert.Nil(t, chosen)
	assert.ErrorIs(t, err, apperrors.ErrNoAgentsOnline)
	mockRepo.AssertNotCalled(t, "IncrementLoad", mock.Anything, mock.Anything, mock.Anything)
}

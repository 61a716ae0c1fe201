package assignment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	apperrors "supportdesk-backend/pkg/errors"
)

// PresenceRepository is the agent presence/load surface the service consumes
type PresenceRepository interface {
	OnlineAgents(ctx context.Context) ([]*domain.Agent, error)
	Loads(ctx context.Context) (map[uuid.UUID]int, error)
	IncrementLoad(ctx context.Context, csrUID uuid.UUID, delta int) error
}

// Service selects CSR agents for conversation hand-off
type Service struct {
	presenceRepo PresenceRepository
	logger       *zap.Logger
}

// NewService creates a new assignment service
func NewService(presenceRepo PresenceRepository, logger *zap.Logger) *Service {
	return &Service{
		presenceRepo: presenceRepo,
		logger:       logger,
	}
}

// Candidates lists online agents with their current assigned-conversation counts.
// Order follows the presence set enumeration; an agent with no load entry
// counts as zero.
func (s *Service) Candidates(ctx context.Context) ([]domain.AssignmentCandidate, error) {
	agents, err := s.presenceRepo.OnlineAgents(ctx)
	if err != nil {
		return nil, err
	}

	loads, err := s.presenceRepo.Loads(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.AssignmentCandidate, 0, len(agents))
	for _, agent := range agents {
		candidates = append(candidates, domain.AssignmentCandidate{
			CSRUID:         agent.CSRUID,
			Name:           agent.Name,
			ProfilePicture: agent.ProfilePicture,
			CurrentLoad:    loads[agent.CSRUID],
		})
	}

	return candidates, nil
}

// PickLeastLoaded selects the candidate with the minimum current load.
// Ties break in input order: the first minimum encountered wins.
// Returns ErrNoAgentsOnline for an empty candidate list; callers must not
// proceed to the hand-off mutation in that case.
func PickLeastLoaded(candidates []domain.AssignmentCandidate) (*domain.AssignmentCandidate, error) {
	if len(candidates) == 0 {
		return nil, apperrors.ErrNoAgentsOnline
	}

	chosen := &candidates[0]
	for i := 1; i < len(candidates); i++ {
		if candidates[i].CurrentLoad < chosen.CurrentLoad {
			chosen = &candidates[i]
		}
	}

	return chosen, nil
}

// Assign picks the least-loaded online agent and bumps its load count.
// The load increment is the caller-side bookkeeping that keeps subsequent
// picks within the same pass away from the agent just chosen.
func (s *Service) Assign(ctx context.Context) (*domain.AssignmentCandidate, error) {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	chosen, err := PickLeastLoaded(candidates)
	if err != nil {
		return nil, err
	}

	if err := s.presenceRepo.IncrementLoad(ctx, chosen.CSRUID, 1); err != nil {
		// The assignment itself stands; a missed increment only skews the
		// next pick, and loads are rebuilt as conversations resolve.
		s.logger.Warn("failed to increment agent load",
			zap.String("csr_uid", chosen.CSRUID.String()),
			zap.Error(err))
	}

	return chosen, nil
}

// Release decrements an agent's load when a conversation leaves its queue
func (s *Service) Release(ctx context.Context, csrUID uuid.UUID) error {
	return s.presenceRepo.IncrementLoad(ctx, csrUID, -1)
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"supportdesk-backend/internal/database"
	"supportdesk-backend/internal/domain"
	"supportdesk-backend/pkg/constants"
)

// AgentPresenceRepository tracks CSR agent online status and assignment load in Redis
type AgentPresenceRepository struct {
	client *database.RedisClient
}

// NewAgentPresenceRepository creates a new AgentPresenceRepository
func NewAgentPresenceRepository(client *database.RedisClient) *AgentPresenceRepository {
	return &AgentPresenceRepository{client: client}
}

func presenceKey(csrUID uuid.UUID) string {
	return fmt.Sprintf("%s%s", constants.AgentPresenceKeyPrefix, csrUID)
}

// SetAgentOnline marks an agent as online and stores its profile
func (r *AgentPresenceRepository) SetAgentOnline(ctx context.Context, agent *domain.Agent) error {
	profile, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to marshal agent profile: %w", err)
	}

	// Heartbeat key with TTL (auto-expire if not refreshed)
	if err := r.client.SafeSet(ctx, presenceKey(agent.CSRUID), "online", constants.AgentPresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set agent online: %w", err)
	}

	if err := r.client.SafeSAdd(ctx, constants.AgentOnlineSetKey, agent.CSRUID.String()).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}

	if err := r.client.SafeHSet(ctx, constants.AgentProfileHashKey, agent.CSRUID.String(), profile).Err(); err != nil {
		return fmt.Errorf("failed to store agent profile: %w", err)
	}

	return nil
}

// SetAgentOffline marks an agent as offline and clears its load
func (r *AgentPresenceRepository) SetAgentOffline(ctx context.Context, csrUID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, presenceKey(csrUID)).Err(); err != nil {
		return fmt.Errorf("failed to delete agent presence: %w", err)
	}

	if err := r.client.SafeSRem(ctx, constants.AgentOnlineSetKey, csrUID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}

	// An offline agent carries no assignments
	r.client.SafeHDel(ctx, constants.AgentLoadHashKey, csrUID.String())
	r.client.SafeHDel(ctx, constants.AgentProfileHashKey, csrUID.String())

	return nil
}

// RefreshPresence keeps an agent online (heartbeat)
func (r *AgentPresenceRepository) RefreshPresence(ctx context.Context, csrUID uuid.UUID) error {
	if err := r.client.SafeExpire(ctx, presenceKey(csrUID), constants.AgentPresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh agent presence: %w", err)
	}
	return nil
}

// IsAgentOnline checks if an agent is currently online
func (r *AgentPresenceRepository) IsAgentOnline(ctx context.Context, csrUID uuid.UUID) (bool, error) {
	exists, err := r.client.SafeExists(ctx, presenceKey(csrUID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check agent presence: %w", err)
	}
	return exists > 0, nil
}

// OnlineAgents retrieves the profiles of all online agents.
// Agents whose heartbeat key has expired are pruned from the online set.
func (r *AgentPresenceRepository) OnlineAgents(ctx context.Context) ([]*domain.Agent, error) {
	uidStrs, err := r.client.SafeSMembers(ctx, constants.AgentOnlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online agents: %w", err)
	}

	agents := make([]*domain.Agent, 0, len(uidStrs))
	for _, uidStr := range uidStrs {
		csrUID, err := uuid.Parse(uidStr)
		if err != nil {
			continue // Skip invalid UUIDs
		}

		alive, err := r.IsAgentOnline(ctx, csrUID)
		if err != nil {
			return nil, err
		}
		if !alive {
			// Heartbeat lapsed; drop stale membership
			r.client.SafeSRem(ctx, constants.AgentOnlineSetKey, uidStr)
			continue
		}

		data, err := r.client.SafeHGet(ctx, constants.AgentProfileHashKey, uidStr).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("failed to get agent profile: %w", err)
		}

		var agent domain.Agent
		if err := json.Unmarshal([]byte(data), &agent); err != nil {
			continue
		}
		agents = append(agents, &agent)
	}

	return agents, nil
}

// Loads returns the assigned-conversation count per agent
func (r *AgentPresenceRepository) Loads(ctx context.Context) (map[uuid.UUID]int, error) {
	entries, err := r.client.SafeHGetAll(ctx, constants.AgentLoadHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get agent loads: %w", err)
	}

	loads := make(map[uuid.UUID]int, len(entries))
	for uidStr, countStr := range entries {
		csrUID, err := uuid.Parse(uidStr)
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			continue
		}
		loads[csrUID] = count
	}

	return loads, nil
}

// IncrementLoad adjusts an agent's assigned-conversation count by delta
func (r *AgentPresenceRepository) IncrementLoad(ctx context.Context, csrUID uuid.UUID, delta int) error {
	if err := r.client.SafeHIncrBy(ctx, constants.AgentLoadHashKey, csrUID.String(), int64(delta)).Err(); err != nil {
		return fmt.Errorf("failed to adjust agent load: %w", err)
	}
	return nil
}

// OnlineCount returns the number of online agents
func (r *AgentPresenceRepository) OnlineCount(ctx context.Context) (int64, error) {
	count, err := r.client.SafeSCard(ctx, constants.AgentOnlineSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online agents: %w", err)
	}
	return count, nil
}

// IsDegraded returns true if Redis is in degraded mode
func (r *AgentPresenceRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"supportdesk-backend/internal/database"
	"supportdesk-backend/internal/domain"
	"supportdesk-backend/pkg/constants"
	apperrors "supportdesk-backend/pkg/errors"
)

// LiveConversationRepository holds live conversation documents in Redis,
// one JSON document per conversation under conversation:{uuid}.
//
// Every write is a whole-document replace: two concurrent writers to the
// same conversation race and the later put wins silently. Callers rely on
// each conversation being pinned to a single websocket connection.
type LiveConversationRepository struct {
	client *database.RedisClient
}

// NewLiveConversationRepository creates a new LiveConversationRepository
func NewLiveConversationRepository(client *database.RedisClient) *LiveConversationRepository {
	return &LiveConversationRepository{client: client}
}

func conversationKey(conversationUUID uuid.UUID) string {
	return fmt.Sprintf("%s%s", constants.ConversationKeyPrefix, conversationUUID)
}

// Exists reports whether a live document exists for the conversation
func (r *LiveConversationRepository) Exists(ctx context.Context, conversationUUID uuid.UUID) (bool, error) {
	count, err := r.client.SafeExists(ctx, conversationKey(conversationUUID)).Result()
	if err != nil {
		return false, apperrors.StoreUnavailable(err)
	}
	return count > 0, nil
}

// Get retrieves a live conversation document.
// Returns (nil, nil) when the key is absent.
func (r *LiveConversationRepository) Get(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error) {
	data, err := r.client.SafeGet(ctx, conversationKey(conversationUUID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apperrors.StoreUnavailable(err)
	}

	var doc domain.ConversationDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, apperrors.MalformedDocument(err)
	}

	return &doc, nil
}

// Put stores a conversation document, replacing any previous value.
// Last writer wins; no concurrency token. Documents carry no TTL because
// eviction is owned by the flush scheduler.
func (r *LiveConversationRepository) Put(ctx context.Context, doc *domain.ConversationDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation document: %w", err)
	}

	if err := r.client.SafeSet(ctx, conversationKey(doc.ConversationUUID), data, 0).Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}

	return nil
}

// Keys enumerates the UUIDs of all live conversations via SCAN.
// Keys that do not parse as conversation:{uuid} are skipped.
func (r *LiveConversationRepository) Keys(ctx context.Context) ([]uuid.UUID, error) {
	var conversationUUIDs []uuid.UUID
	var cursor uint64

	for {
		keys, next, err := r.client.SafeScan(ctx, cursor, constants.ConversationKeyPattern, 100).Result()
		if err != nil {
			return nil, apperrors.StoreUnavailable(err)
		}

		for _, key := range keys {
			idStr := key[len(constants.ConversationKeyPrefix):]
			id, err := uuid.Parse(idStr)
			if err != nil {
				continue // Skip invalid UUIDs
			}
			conversationUUIDs = append(conversationUUIDs, id)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return conversationUUIDs, nil
}

// Delete removes a live conversation document. Idempotent: deleting an
// absent key is not an error.
func (r *LiveConversationRepository) Delete(ctx context.Context, conversationUUID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, conversationKey(conversationUUID)).Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// Count returns the number of live conversation documents
func (r *LiveConversationRepository) Count(ctx context.Context) (int, error) {
	ids, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk-backend/internal/domain"
	apperrors "supportdesk-backend/pkg/errors"
)

// ConversationArchiveRepository is the durable store for flushed conversations.
//
// Writes are upserts keyed on conversation_uuid, so a duplicate flush (two
// overlapping passes, or a crash between archive write and live delete) is a
// harmless repeated write rather than a constraint violation.
type ConversationArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewConversationArchiveRepository creates a new ConversationArchiveRepository
func NewConversationArchiveRepository(pool *pgxpool.Pool) *ConversationArchiveRepository {
	return &ConversationArchiveRepository{pool: pool}
}

// Save upserts a conversation document into the archive
func (r *ConversationArchiveRepository) Save(ctx context.Context, doc *domain.ConversationDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.ArchiveWriteFailed(err)
	}

	query := `
		INSERT INTO conversation_archive (
			conversation_uuid, application_uuid, customer_uuid, status, document, archived_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_uuid) DO UPDATE SET
			status = EXCLUDED.status,
			document = EXCLUDED.document,
			archived_at = EXCLUDED.archived_at
	`

	_, err = r.pool.Exec(ctx, query,
		doc.ConversationUUID,
		doc.ApplicationUUID,
		doc.CustomerUUID,
		string(doc.ConversationStatus),
		data,
		time.Now().UTC(),
	)

	if err != nil {
		return apperrors.ArchiveWriteFailed(err)
	}

	return nil
}

// Load retrieves an archived conversation document.
// Returns (nil, nil) when no row exists.
func (r *ConversationArchiveRepository) Load(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error) {
	query := `
		SELECT document
		FROM conversation_archive
		WHERE conversation_uuid = $1
	`

	var data []byte
	err := r.pool.QueryRow(ctx, query, conversationUUID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to load archived conversation", err)
	}

	var doc domain.ConversationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.MalformedDocument(err)
	}

	return &doc, nil
}

// Exists reports whether a conversation has been archived
func (r *ConversationArchiveRepository) Exists(ctx context.Context, conversationUUID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_archive WHERE conversation_uuid = $1
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, conversationUUID).Scan(&exists); err != nil {
		return false, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to check archived conversation", err)
	}

	return exists, nil
}

// DeleteOlderThan prunes archived conversations past the retention window.
// Returns the number of rows removed.
func (r *ConversationArchiveRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM conversation_archive
		WHERE archived_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to prune archive", err)
	}

	return tag.RowsAffected(), nil
}

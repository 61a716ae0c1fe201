// Package scheduler moves idle conversations from the live Redis store into
// the durable archive.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	apperrors "supportdesk-backend/pkg/errors"
	"supportdesk-backend/pkg/metrics"
)

// LiveStore is the fast-store surface the scheduler consumes
type LiveStore interface {
	Keys(ctx context.Context) ([]uuid.UUID, error)
	Get(ctx context.Context, conversationUUID uuid.UUID) (*domain.ConversationDocument, error)
	Delete(ctx context.Context, conversationUUID uuid.UUID) error
}

// ArchiveStore is the durable-store surface the scheduler consumes
type ArchiveStore interface {
	Save(ctx context.Context, doc *domain.ConversationDocument) error
}

// Scheduler periodically sweeps the live store and flushes conversations
// whose last message is older than the idle threshold.
//
// The sweep is best-effort and at-least-once: a crash between the archive
// write and the live delete leaves the document in both stores until the
// next pass, which the archive upsert absorbs. Overlapping passes are not
// guarded against for the same reason.
type Scheduler struct {
	liveStore     LiveStore
	archiveStore  ArchiveStore
	idleThreshold time.Duration
	interval      time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger

	now func() time.Time
}

// NewScheduler creates a new flush scheduler
func NewScheduler(
	liveStore LiveStore,
	archiveStore ArchiveStore,
	idleThreshold time.Duration,
	interval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		liveStore:     liveStore,
		archiveStore:  archiveStore,
		idleThreshold: idleThreshold,
		interval:      interval,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// Run executes one flush pass. Side effects only.
//
// Per-conversation errors are logged and skipped so one bad document never
// aborts the sweep; a failure enumerating keys aborts the whole pass, to be
// retried on the next invocation.
func (s *Scheduler) Run(ctx context.Context) {
	start := time.Now()

	keys, err := s.liveStore.Keys(ctx)
	if err != nil {
		s.logger.Error("flush pass aborted, failed to enumerate live conversations",
			zap.Error(err))
		s.recordPass("aborted", time.Since(start))
		return
	}

	if len(keys) == 0 {
		s.recordPass("empty", time.Since(start))
		return
	}

	flushed := 0
	for _, conversationUUID := range keys {
		if s.evaluate(ctx, conversationUUID) {
			flushed++
		}
	}

	if s.metrics != nil {
		s.metrics.SetLiveConversations(len(keys) - flushed)
	}
	s.recordPass("completed", time.Since(start))

	s.logger.Info("flush pass completed",
		zap.Int("scanned", len(keys)),
		zap.Int("flushed", flushed),
		zap.Duration("duration", time.Since(start)))
}

// evaluate inspects one conversation and flushes it when idle past the
// threshold. Returns true when the conversation was flushed.
func (s *Scheduler) evaluate(ctx context.Context, conversationUUID uuid.UUID) bool {
	doc, err := s.liveStore.Get(ctx, conversationUUID)
	if err != nil {
		stage := "read"
		if errors.Is(err, apperrors.ErrMalformedDocument) {
			stage = "decode"
		}
		s.recordError(stage)
		s.logger.Warn("skipping conversation, read failed",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
		return false
	}
	if doc == nil {
		// Raced with a concurrent delete
		s.recordSkip("missing")
		return false
	}

	last := doc.LastMessage()
	if last == nil {
		// No activity timestamp to judge idleness; never flushed by a sweep
		s.recordSkip("no_messages")
		return false
	}

	idle := s.now().UTC().Sub(last.CreatedAt)
	if idle <= s.idleThreshold {
		s.recordSkip("active")
		return false
	}

	// Archive write must succeed before the live delete; on failure the
	// live copy stays for the next pass.
	if err := s.archiveStore.Save(ctx, doc); err != nil {
		s.recordError("archive_write")
		s.logger.Warn("skipping conversation, archive write failed",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
		return false
	}

	if err := s.liveStore.Delete(ctx, conversationUUID); err != nil {
		// Duplicated across both stores until the next pass; the archive
		// upsert absorbs the repeat.
		s.recordError("delete")
		s.logger.Warn("failed to delete flushed conversation from live store",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
		return true
	}

	if s.metrics != nil {
		s.metrics.RecordFlushed()
	}
	s.logger.Info("conversation flushed",
		zap.String("conversation_uuid", conversationUUID.String()),
		zap.Duration("idle", idle))

	return true
}

// Start runs the sweep on a fixed cadence until the context is cancelled.
// Used when the service hosts its own timer instead of an external cron.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("flush scheduler started",
			zap.Duration("interval", s.interval),
			zap.Duration("idle_threshold", s.idleThreshold))

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("flush scheduler stopped")
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	}()
}

func (s *Scheduler) recordPass(result string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordFlushPass(result, duration)
	}
}

func (s *Scheduler) recordSkip(reason string) {
	if s.metrics != nil {
		s.metrics.RecordFlushSkipped(reason)
	}
}

func (s *Scheduler) recordError(stage string) {
	if s.metrics != nil {
		s.metrics.RecordFlushError(stage)
	}
}

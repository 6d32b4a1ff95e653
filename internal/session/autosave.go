package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/testservice"
)

const (
	savedStatusWindow = 2 * time.Second
	errorStatusWindow = 5 * time.Second
)

// FlushFunc performs the actual network write of a batch of answers.
type FlushFunc func(ctx context.Context, entries []testservice.AnswerEntry) error

// AutosaveBuffer decouples per-click answer edits from network writes. It
// keeps at most one pending entry per question (a new edit replaces the old
// pending value), flushes automatically once `threshold` distinct questions
// are dirty, and is cleared only by a successful flush; a failed flush keeps
// every entry for the next automatic or manual trigger.
type AutosaveBuffer struct {
	mu        sync.Mutex
	flushDone *sync.Cond
	pending   map[string]models.AnswerEntry
	threshold int

	status      models.SaveStatus
	revertTimer *time.Timer
	savedWindow time.Duration
	errorWindow time.Duration

	flushing bool
	logger   *slog.Logger
}

func NewAutosaveBuffer(threshold int, logger *slog.Logger) *AutosaveBuffer {
	if threshold < 1 {
		threshold = 2
	}
	b := &AutosaveBuffer{
		pending:     make(map[string]models.AnswerEntry),
		threshold:   threshold,
		status:      models.SaveIdle,
		savedWindow: savedStatusWindow,
		errorWindow: errorStatusWindow,
		logger:      logger,
	}
	b.flushDone = sync.NewCond(&b.mu)
	return b
}

// Upsert records a dirty answer and reports whether the caller should trigger
// an automatic flush. The trigger is suppressed while a flush is in flight;
// the entry stays pending and rides along with the next one.
func (b *AutosaveBuffer) Upsert(questionID string, entry models.AnswerEntry) (shouldFlush bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[questionID] = entry
	return len(b.pending) >= b.threshold && !b.flushing
}

func (b *AutosaveBuffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *AutosaveBuffer) Status() models.SaveStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// FlushPending sends the currently pending entries.
func (b *AutosaveBuffer) FlushPending(ctx context.Context, fn FlushFunc) error {
	b.mu.Lock()
	if b.flushing || len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	snapshot := b.snapshotPendingLocked()
	b.beginFlushLocked()
	b.mu.Unlock()

	err := fn(ctx, entriesOf(snapshot))
	b.finishFlush(snapshot, err)
	return err
}

// FlushAll sends the entire current answer state, not just the pending
// buffer. This is the manual-save recovery path: it converges the server to
// the client's truth even when earlier automatic flushes failed. Unlike the
// automatic trigger it is never suppressed; an explicit save queues behind an
// in-flight flush and runs once it completes.
func (b *AutosaveBuffer) FlushAll(ctx context.Context, full map[string]models.AnswerEntry, fn FlushFunc) error {
	if len(full) == 0 {
		return nil
	}

	b.mu.Lock()
	for b.flushing {
		b.flushDone.Wait()
	}
	snapshot := b.snapshotPendingLocked()
	b.beginFlushLocked()
	b.mu.Unlock()

	err := fn(ctx, entriesOf(full))
	b.finishFlush(snapshot, err)
	return err
}

func (b *AutosaveBuffer) snapshotPendingLocked() map[string]models.AnswerEntry {
	snapshot := make(map[string]models.AnswerEntry, len(b.pending))
	for id, e := range b.pending {
		snapshot[id] = e
	}
	return snapshot
}

func (b *AutosaveBuffer) beginFlushLocked() {
	b.flushing = true
	b.setStatusLocked(models.SaveSaving, 0)
}

// finishFlush clears flushed entries on success. An entry re-edited while the
// flush was in flight differs from its snapshot value and is kept, so the
// latest value is never lost.
func (b *AutosaveBuffer) finishFlush(snapshot map[string]models.AnswerEntry, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flushing = false
	b.flushDone.Broadcast()
	if err != nil {
		b.logger.Warn("autosave flush failed", "pending", len(b.pending), "error", err)
		b.setStatusLocked(models.SaveError, b.errorWindow)
		return
	}

	for id, sent := range snapshot {
		if current, ok := b.pending[id]; ok && current == sent {
			delete(b.pending, id)
		}
	}
	b.setStatusLocked(models.SaveSaved, b.savedWindow)
}

// setStatusLocked transitions the UI save indicator; saved/error revert to
// idle after their display window unless another transition supersedes them.
func (b *AutosaveBuffer) setStatusLocked(status models.SaveStatus, revertAfter time.Duration) {
	if b.revertTimer != nil {
		b.revertTimer.Stop()
		b.revertTimer = nil
	}

	b.status = status
	if revertAfter <= 0 {
		return
	}
	b.revertTimer = time.AfterFunc(revertAfter, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.status == status {
			b.status = models.SaveIdle
		}
	})
}

func entriesOf(m map[string]models.AnswerEntry) []testservice.AnswerEntry {
	out := make([]testservice.AnswerEntry, 0, len(m))
	for id, e := range m {
		out = append(out, testservice.AnswerEntry{
			QuestionID: id,
			Selected:   e.Selected,
			TimeSpent:  e.TimeSpent,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

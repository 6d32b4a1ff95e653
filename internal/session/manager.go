package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// sessionSlot is the registry entry for one attempt. It is inserted before
// the load I/O starts, so concurrent opens of the same attempt find the slot
// and wait on done instead of loading twice.
type sessionSlot struct {
	done chan struct{}
	sess *Session
	err  error
}

// Manager holds at most one live Session per attempt. It is the process-wide
// analogue of the load guard: the first open wins and loads, later opens of
// the same attempt share the result.
type Manager struct {
	mu     sync.Mutex
	slots  map[string]*sessionSlot
	loader *Loader
	logger *slog.Logger
}

func NewManager(loader *Loader, logger *slog.Logger) *Manager {
	return &Manager{
		slots:  make(map[string]*sessionSlot),
		loader: loader,
		logger: logger,
	}
}

// Open returns the live session for the attempt, loading it on first open.
// A failed load removes the slot so the next open retries from scratch.
func (m *Manager) Open(ctx context.Context, attemptID, ownerID string) (*Session, error) {
	m.mu.Lock()
	if slot, ok := m.slots[attemptID]; ok {
		m.mu.Unlock()
		return m.await(ctx, slot, ownerID)
	}

	slot := &sessionSlot{done: make(chan struct{})}
	m.slots[attemptID] = slot
	m.mu.Unlock()

	sess, err := m.loader.Load(ctx, attemptID, ownerID)
	slot.sess, slot.err = sess, err
	close(slot.done)

	if err != nil {
		m.mu.Lock()
		delete(m.slots, attemptID)
		m.mu.Unlock()
		return nil, err
	}
	return sess, nil
}

func (m *Manager) await(ctx context.Context, slot *sessionSlot, ownerID string) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-slot.done:
	}
	if slot.err != nil {
		return nil, slot.err
	}
	if slot.sess.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return slot.sess, nil
}

// Get returns the live session without loading.
func (m *Manager) Get(attemptID, ownerID string) (*Session, error) {
	m.mu.Lock()
	slot, ok := m.slots[attemptID]
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	select {
	case <-slot.done:
	default:
		return nil, ErrSessionNotFound
	}
	if slot.err != nil {
		return nil, slot.err
	}
	if slot.sess.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return slot.sess, nil
}

// Unmount stops the session's countdown and drops it from the registry. The
// attempt itself is untouched; a later open cold-fetches it again.
func (m *Manager) Unmount(attemptID, ownerID string) error {
	sess, err := m.Get(attemptID, ownerID)
	if err != nil {
		return err
	}

	sess.Close()

	m.mu.Lock()
	delete(m.slots, attemptID)
	m.mu.Unlock()

	m.logger.Info("session unmounted", "attempt_id", attemptID)
	return nil
}

// Shutdown stops every live countdown. Called on process exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	slots := make([]*sessionSlot, 0, len(m.slots))
	for _, slot := range m.slots {
		slots = append(slots, slot)
	}
	m.slots = make(map[string]*sessionSlot)
	m.mu.Unlock()

	for _, slot := range slots {
		select {
		case <-ctx.Done():
			return fmt.Errorf("session manager shutdown interrupted: %w", ctx.Err())
		case <-slot.done:
		}
		if slot.sess != nil {
			slot.sess.Close()
		}
	}

	m.logger.Info("session manager stopped", "sessions", len(slots))
	return nil
}

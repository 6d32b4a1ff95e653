package session

import "github.com/prepdesk/attempt-engine/internal/models"

// AnswerStore is the single source of truth for what the user has chosen.
// Entries are only ever upserted; clearing an answer is not part of the
// attempt flow. Not safe for concurrent use on its own: the owning Session
// serializes access.
type AnswerStore struct {
	entries map[string]models.AnswerEntry
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{entries: make(map[string]models.AnswerEntry)}
}

// Upsert replaces any previous selection for the question.
func (s *AnswerStore) Upsert(questionID string, entry models.AnswerEntry) {
	s.entries[questionID] = entry
}

func (s *AnswerStore) Get(questionID string) (models.AnswerEntry, bool) {
	e, ok := s.entries[questionID]
	return e, ok
}

func (s *AnswerStore) Has(questionID string) bool {
	_, ok := s.entries[questionID]
	return ok
}

func (s *AnswerStore) Len() int {
	return len(s.entries)
}

// Snapshot returns a copy safe to read outside the session lock.
func (s *AnswerStore) Snapshot() map[string]models.AnswerEntry {
	out := make(map[string]models.AnswerEntry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

// ReviewMarkStore holds the set of questions flagged "revisit before
// submitting". Membership is orthogonal to answer presence.
type ReviewMarkStore struct {
	marked map[string]struct{}
}

func NewReviewMarkStore() *ReviewMarkStore {
	return &ReviewMarkStore{marked: make(map[string]struct{})}
}

// Toggle flips membership and reports the new state.
func (s *ReviewMarkStore) Toggle(questionID string) bool {
	if _, ok := s.marked[questionID]; ok {
		delete(s.marked, questionID)
		return false
	}
	s.marked[questionID] = struct{}{}
	return true
}

func (s *ReviewMarkStore) Set(questionID string) {
	s.marked[questionID] = struct{}{}
}

func (s *ReviewMarkStore) Has(questionID string) bool {
	_, ok := s.marked[questionID]
	return ok
}

func (s *ReviewMarkStore) Len() int {
	return len(s.marked)
}

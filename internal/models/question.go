package models

import "encoding/json"

// Option is one selectable answer choice.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is read-only to the engine after load. Identity is stable and
// unique within one attempt.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`

	// Present only on questions coming from a resumed attempt.
	SavedAnswer     string `json:"saved_answer,omitempty"`
	MarkedForReview bool   `json:"is_marked_for_review,omitempty"`
}

// questionWire accepts the two identity spellings upstream payloads use.
type questionWire struct {
	ID            string   `json:"id"`
	QuestionID    string   `json:"question_id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`

	SavedAnswer     string `json:"saved_answer"`
	MarkedForReview bool   `json:"is_marked_for_review"`
}

// UnmarshalJSON canonicalizes the question identity: some Test Service
// endpoints send "id", others "question_id". Whichever is present wins, with
// "id" taking precedence when both are set.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := w.ID
	if id == "" {
		id = w.QuestionID
	}

	*q = Question{
		ID:              id,
		Text:            w.Text,
		Options:         w.Options,
		Marks:           w.Marks,
		NegativeMarks:   w.NegativeMarks,
		SavedAnswer:     w.SavedAnswer,
		MarkedForReview: w.MarkedForReview,
	}
	return nil
}

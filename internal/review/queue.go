// Package review aggregates unreviewed writing answers across a
// doctor's patients and applies verdicts back onto the owning record.
package review

import (
	"context"
	"errors"
)

var (
	ErrAnswerNotFound  = errors.New("answer not found")
	ErrAlreadyReviewed = errors.New("answer already reviewed")
)

// Item is one pending (or judged) writing answer joined with what the
// doctor needs to see. Derived view, not separately persisted.
type Item struct {
	AnswerID        string  `json:"answer_id"`
	RecordID        string  `json:"record_id"`
	PatientID       string  `json:"patient_id"`
	PatientName     string  `json:"patient_name"`
	AssignmentID    int64   `json:"assignment_id"`
	AssignmentTitle string  `json:"assignment_title"`
	Prompt          *string `json:"prompt,omitempty"`
	AnswerText      string  `json:"answer_text"`
	Reviewed        bool    `json:"reviewed"`
	Correct         *bool   `json:"correct,omitempty"`
}

// Queue lists pending answers for a doctor and records verdicts.
//
// ListPending ordering is stable: grouped by record, then original item
// order within the record. MarkVerdict is one-way; there is no undo
// surface, and it never recomputes the owning record's score.
type Queue interface {
	ListPending(ctx context.Context, doctorID string) ([]Item, error)
	MarkVerdict(ctx context.Context, answerID string, correct bool) error
}

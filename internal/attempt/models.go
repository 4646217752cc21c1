package attempt

import (
	"context"
	"time"
)

// Record is one patient run through one assignment. History is
// append-only: a retry creates a new record, it never reuses an old id.
type Record struct {
	ID             string          `json:"id"`
	AssignmentID   int64           `json:"assignment_id"`
	PatientID      string          `json:"patient_id"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	Score          *int            `json:"score,omitempty"`
	MCQAnswers     []MCQAnswer     `json:"mcq_answers"`
	WritingAnswers []WritingAnswer `json:"writing_answers"`
}

func (r Record) Finished() bool { return r.FinishedAt != nil }

// MCQAnswer is persisted immediately on selection; correctness is
// computed by the caller at write time, the server does not re-derive it.
type MCQAnswer struct {
	ID          string `json:"id"`
	RecordID    string `json:"record_id"`
	ItemID      int64  `json:"item_id"`
	ChoiceIndex int    `json:"choice_index"`
	IsCorrect   bool   `json:"is_correct"`
}

// WritingAnswer is flushed at submit time and later judged by a doctor.
// Reviewed=false implies Correct==nil.
type WritingAnswer struct {
	ID         string `json:"id"`
	RecordID   string `json:"record_id"`
	ItemID     int64  `json:"item_id"`
	AnswerText string `json:"answer_text"`
	Reviewed   bool   `json:"reviewed"`
	Correct    *bool  `json:"correct,omitempty"`
}

// Store is the record persistence collaborator. Start is idempotent at
// this layer: it returns the open record for the pair if one exists,
// otherwise creates a fresh one.
type Store interface {
	Start(ctx context.Context, assignmentID int64, patientID string) (Record, error)
	SaveMCQ(ctx context.Context, assignmentID int64, patientID string, itemID int64, choiceIndex int, isCorrect bool) error
	UpsertWriting(ctx context.Context, assignmentID int64, patientID string, itemID int64, text string) error
	Finish(ctx context.Context, assignmentID int64, patientID string, score *int) error
	ListByPatient(ctx context.Context, patientID string) ([]Record, error)
	History(ctx context.Context, assignmentID int64, patientID string) ([]Record, error)
	Detail(ctx context.Context, recordID, patientID string) (Record, error)
}

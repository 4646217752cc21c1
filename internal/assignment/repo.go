package assignment

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("assignment not found")

// ItemInput is one authored item. AnswerKey is raw because the editor
// sends an integer index for multiple-choice and a string for writing.
type ItemInput struct {
	Prompt    *string         `json:"prompt"`
	ImagePath *string         `json:"image_path"`
	Choices   []Choice        `json:"choices"`
	AnswerKey json.RawMessage `json:"answer_key"`
}

// CreateInput is the authoring payload for create and full update.
type CreateInput struct {
	Topic      int            `json:"topic" validate:"required,min=1,max=9"`
	Title      string         `json:"title" validate:"required,max=256"`
	Qtype      string         `json:"qtype" validate:"required,oneof=multiple_choice writing"`
	Properties map[string]any `json:"properties"`
	Items      []ItemInput    `json:"items" validate:"required,min=1,dive"`
}

// Store persists assignments in both representations and serves both
// wire shapes; it is the Source the normalizer loads from.
type Store interface {
	Source

	Create(ctx context.Context, in CreateInput, createdBy string) (int64, error)
	Update(ctx context.Context, id int64, in CreateInput) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, topic int) ([]Summary, error)

	ListAssigned(ctx context.Context, patientID string, topic int) ([]Summary, error)
	Assign(ctx context.Context, assignmentID int64, patientID string) error
	IsAssigned(ctx context.Context, assignmentID int64, patientID string) (bool, error)

	// PutLegacyItems backfills the legacy JSON representation for
	// assignments imported from the pre-typed schema.
	PutLegacyItems(ctx context.Context, id int64, items []LegacyItem) error
}

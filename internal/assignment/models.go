package assignment

import (
	"bytes"
	"encoding/json"
)

type ItemType string

const (
	TypeMCQ     ItemType = "mcq"
	TypeWriting ItemType = "writing"
)

// Assignment-level qtype values carried by the legacy schema.
const (
	QtypeMultipleChoice = "multiple_choice"
	QtypeWriting        = "writing"
	QtypeDragDrop       = "drag_drop" // present in stored data, never delivered
)

type ChoiceKind int

const (
	ChoiceText ChoiceKind = iota
	ChoiceImage
	ChoiceBoth
)

// Choice is one selectable option of an MCQ item. Legacy payloads may
// encode a choice as a bare string; newer payloads use {text,image}.
// Either field may be empty, never both unless authored empty.
type Choice struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

func (c Choice) Kind() ChoiceKind {
	switch {
	case c.Text != "" && c.Image != "":
		return ChoiceBoth
	case c.Image != "":
		return ChoiceImage
	default:
		return ChoiceText
	}
}

// UnmarshalJSON accepts both wire shapes: "some text" and {"text":...,"image":...}.
func (c *Choice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		c.Text, c.Image = s, ""
		return nil
	}
	type alias Choice
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = Choice(a)
	return nil
}

// Item is the canonical, normalized question. Type tags which of the
// variant fields are meaningful: Choices/AnswerIndex for mcq,
// AnswerText/ManualReview for writing.
type Item struct {
	Type      ItemType `json:"type"`
	ID        int64    `json:"id"`
	Prompt    string   `json:"prompt,omitempty"`
	ImagePath string   `json:"image_path,omitempty"`

	Choices     []Choice `json:"choices,omitempty"`
	AnswerIndex *int     `json:"answer_key,omitempty"` // zero-based index into Choices

	AnswerText   string `json:"answer_text,omitempty"` // expected text, exact-match target
	ManualReview bool   `json:"manual_review,omitempty"`
}

// AutoGradable reports whether correctness can be decided without a doctor.
func (it Item) AutoGradable() bool {
	switch it.Type {
	case TypeMCQ:
		return it.AnswerIndex != nil
	case TypeWriting:
		return !it.ManualReview && it.AnswerText != ""
	}
	return false
}

// Assignment is the canonical in-memory form every caller works with.
// Items order is stable and defines the index space used by response
// buffers and scoring.
type Assignment struct {
	ID    int64  `json:"id"`
	Topic int    `json:"topic"` // 1..9
	Title string `json:"title"`
	Qtype string `json:"qtype"` // informational once items are normalized
	Items []Item `json:"items"`
}

// Summary is the list-view projection (no items).
type Summary struct {
	ID    int64  `json:"id"`
	Topic int    `json:"topic"`
	Title string `json:"title"`
	Qtype string `json:"qtype"`
}

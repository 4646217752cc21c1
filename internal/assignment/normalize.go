package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// V2Item is the wire shape of a typed item. AnswerKey is left raw
// because the v2 schema stores an integer index for mcq items and a
// string for writing items; it is decoded exactly once, here.
type V2Item struct {
	Type      string          `json:"type"`
	ID        int64           `json:"id"`
	Prompt    *string         `json:"prompt"`
	ImagePath *string         `json:"image_path"`
	Choices   []Choice        `json:"choices"`
	AnswerKey json.RawMessage `json:"answer_key"`
	Manual    bool            `json:"manual_review"`
}

// V2Payload is the current, explicitly typed assignment wire shape.
type V2Payload struct {
	ID         int64          `json:"id"`
	Topic      int            `json:"topic"`
	Title      string         `json:"title"`
	Qtype      string         `json:"qtype"`
	Properties map[string]any `json:"properties"`
	Items      []V2Item       `json:"items"`
}

// LegacyItem is the older untyped item shape: the whole assignment
// shares one implicit type, and answer_key is always a string.
type LegacyItem struct {
	Prompt    *string  `json:"prompt"`
	ImagePath *string  `json:"image_path"`
	Choices   []Choice `json:"choices"`
	AnswerKey *string  `json:"answer_key"`
}

type LegacyPayload struct {
	ID         int64          `json:"id"`
	Topic      int            `json:"topic"`
	Title      string         `json:"title"`
	Qtype      string         `json:"qtype"`
	Properties map[string]any `json:"properties"`
	Items      []LegacyItem   `json:"items"`
}

// Source is the external collaborator serving both wire shapes.
type Source interface {
	GetV2(ctx context.Context, id int64) (V2Payload, error)
	GetLegacy(ctx context.Context, id int64) (LegacyPayload, error)
}

// Load fetches an assignment and normalizes it. The v2 representation
// wins; an empty v2 item list means "not populated" and triggers the
// legacy fallback. If both sources have no items the result carries an
// empty item list, which callers must treat distinctly from not-found.
func Load(ctx context.Context, src Source, id int64) (Assignment, error) {
	v2, err := src.GetV2(ctx, id)
	if err != nil {
		return Assignment{}, fmt.Errorf("load assignment %d: %w", id, err)
	}
	if len(v2.Items) > 0 {
		return FromV2(v2)
	}
	legacy, err := src.GetLegacy(ctx, id)
	if err != nil {
		return Assignment{}, fmt.Errorf("load assignment %d (legacy): %w", id, err)
	}
	return FromLegacy(legacy)
}

// FromV2 converts a typed payload into the canonical form.
func FromV2(p V2Payload) (Assignment, error) {
	a := Assignment{ID: p.ID, Topic: p.Topic, Title: p.Title, Qtype: p.Qtype}
	a.Items = make([]Item, 0, len(p.Items))
	for i, w := range p.Items {
		it := Item{
			ID:        w.ID,
			Prompt:    strOrEmpty(w.Prompt),
			ImagePath: strOrEmpty(w.ImagePath),
		}
		switch w.Type {
		case string(TypeMCQ):
			it.Type = TypeMCQ
			it.Choices = w.Choices
			idx, ok, err := decodeIntKey(w.AnswerKey)
			if err != nil {
				return Assignment{}, fmt.Errorf("item %d: answer_key: %w", w.ID, err)
			}
			if ok {
				it.AnswerIndex = &idx
			}
		case string(TypeWriting):
			it.Type = TypeWriting
			it.ManualReview = w.Manual
			txt, _, err := decodeStringKey(w.AnswerKey)
			if err != nil {
				return Assignment{}, fmt.Errorf("item %d: answer_key: %w", w.ID, err)
			}
			it.AnswerText = txt
		default:
			return Assignment{}, fmt.Errorf("item %d: unknown type %q", i, w.Type)
		}
		a.Items = append(a.Items, it)
	}
	return a, nil
}

// FromLegacy transforms a legacy payload. Item ids are synthesized from
// position; the assignment-level qtype decides the variant for every
// item.
func FromLegacy(p LegacyPayload) (Assignment, error) {
	a := Assignment{ID: p.ID, Topic: p.Topic, Title: p.Title, Qtype: p.Qtype}
	a.Items = make([]Item, 0, len(p.Items))
	for i, w := range p.Items {
		it := Item{
			ID:        int64(i),
			Prompt:    strOrEmpty(w.Prompt),
			ImagePath: strOrEmpty(w.ImagePath),
		}
		if p.Qtype == QtypeMultipleChoice {
			it.Type = TypeMCQ
			it.Choices = w.Choices
			if w.AnswerKey != nil {
				idx, err := strconv.Atoi(*w.AnswerKey)
				if err != nil {
					return Assignment{}, fmt.Errorf("legacy item %d: answer_key %q: %w", i, *w.AnswerKey, err)
				}
				it.AnswerIndex = &idx
			}
		} else {
			it.Type = TypeWriting
			if w.AnswerKey != nil {
				it.AnswerText = *w.AnswerKey
			}
			it.ManualReview = p.Properties["manualReview"] == true
		}
		a.Items = append(a.Items, it)
	}
	return a, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decodeIntKey(raw json.RawMessage) (int, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		// tolerate a quoted number, which old exports produced
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return 0, false, err
		}
		v, err3 := strconv.Atoi(s)
		if err3 != nil {
			return 0, false, err3
		}
		return v, true, nil
	}
	return n, true, nil
}

func decodeStringKey(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

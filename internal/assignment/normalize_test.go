package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeSource struct {
	v2     V2Payload
	legacy LegacyPayload

	v2Err     error
	legacyErr error

	legacyCalls int
}

func (f *fakeSource) GetV2(ctx context.Context, id int64) (V2Payload, error) {
	return f.v2, f.v2Err
}

func (f *fakeSource) GetLegacy(ctx context.Context, id int64) (LegacyPayload, error) {
	f.legacyCalls++
	return f.legacy, f.legacyErr
}

func strp(s string) *string { return &s }

func TestLoadPrefersV2(t *testing.T) {
	src := &fakeSource{
		v2: V2Payload{
			ID: 7, Topic: 2, Title: "t", Qtype: QtypeMultipleChoice,
			Items: []V2Item{
				{Type: "mcq", ID: 10, Prompt: strp("q"), Choices: []Choice{{Text: "a"}, {Text: "b"}}, AnswerKey: json.RawMessage(`1`)},
			},
		},
	}
	a, err := Load(context.Background(), src, 7)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.legacyCalls != 0 {
		t.Fatalf("legacy fetched %d times despite populated v2", src.legacyCalls)
	}
	if len(a.Items) != 1 || a.Items[0].ID != 10 {
		t.Fatalf("unexpected items: %+v", a.Items)
	}
	if a.Items[0].AnswerIndex == nil || *a.Items[0].AnswerIndex != 1 {
		t.Fatalf("answer index = %v, want 1", a.Items[0].AnswerIndex)
	}
}

func TestLoadFallsBackOnEmptyV2(t *testing.T) {
	src := &fakeSource{
		v2: V2Payload{ID: 3, Topic: 1, Title: "old", Qtype: QtypeMultipleChoice},
		legacy: LegacyPayload{
			ID: 3, Topic: 1, Title: "old", Qtype: QtypeMultipleChoice,
			Items: []LegacyItem{
				{Prompt: strp("first"), Choices: []Choice{{Text: "x"}, {Text: "y"}}, AnswerKey: strp("1")},
				{Prompt: strp("second"), Choices: []Choice{{Text: "x"}, {Text: "y"}}},
			},
		},
	}
	a, err := Load(context.Background(), src, 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.legacyCalls != 1 {
		t.Fatalf("legacy calls = %d, want 1", src.legacyCalls)
	}
	if len(a.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(a.Items))
	}
	// legacy ids are positional
	if a.Items[0].ID != 0 || a.Items[1].ID != 1 {
		t.Fatalf("ids = %d,%d, want 0,1", a.Items[0].ID, a.Items[1].ID)
	}
	if a.Items[0].AnswerIndex == nil || *a.Items[0].AnswerIndex != 1 {
		t.Fatalf("answer index = %v, want 1", a.Items[0].AnswerIndex)
	}
	if a.Items[1].AnswerIndex != nil {
		t.Fatalf("item without key should have nil answer index")
	}
}

func TestLoadBothEmpty(t *testing.T) {
	src := &fakeSource{
		v2:     V2Payload{ID: 9, Qtype: QtypeWriting},
		legacy: LegacyPayload{ID: 9, Qtype: QtypeWriting},
	}
	a, err := Load(context.Background(), src, 9)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(a.Items) != 0 {
		t.Fatalf("items = %d, want 0", len(a.Items))
	}
}

func TestLoadV2Error(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{v2Err: boom}
	if _, err := Load(context.Background(), src, 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if src.legacyCalls != 0 {
		t.Fatalf("legacy should not be consulted after a v2 error")
	}
}

func TestFromLegacyWritingManualReview(t *testing.T) {
	p := LegacyPayload{
		ID: 4, Qtype: QtypeWriting,
		Properties: map[string]any{"manualReview": true},
		Items: []LegacyItem{
			{Prompt: strp("describe")},
			{Prompt: strp("weekday"), AnswerKey: strp("Wednesday")},
		},
	}
	a, err := FromLegacy(p)
	if err != nil {
		t.Fatalf("from legacy: %v", err)
	}
	for i, it := range a.Items {
		if it.Type != TypeWriting {
			t.Fatalf("item %d type %q, want writing", i, it.Type)
		}
		if !it.ManualReview {
			t.Fatalf("item %d should inherit manualReview", i)
		}
	}
	if a.Items[1].AnswerText != "Wednesday" {
		t.Fatalf("answer text = %q", a.Items[1].AnswerText)
	}
	// manual review beats the answer key
	if a.Items[1].AutoGradable() {
		t.Fatalf("manual item must not be auto-gradable")
	}
}

func TestFromLegacyBadAnswerKey(t *testing.T) {
	p := LegacyPayload{
		ID: 5, Qtype: QtypeMultipleChoice,
		Items: []LegacyItem{{Choices: []Choice{{Text: "a"}}, AnswerKey: strp("not-a-number")}},
	}
	if _, err := FromLegacy(p); err == nil {
		t.Fatalf("expected error for non-numeric mcq answer key")
	}
}

func TestFromV2QuotedAnswerKey(t *testing.T) {
	p := V2Payload{
		ID: 6,
		Items: []V2Item{
			{Type: "mcq", ID: 1, Choices: []Choice{{Text: "a"}, {Text: "b"}}, AnswerKey: json.RawMessage(`"1"`)},
		},
	}
	a, err := FromV2(p)
	if err != nil {
		t.Fatalf("from v2: %v", err)
	}
	if a.Items[0].AnswerIndex == nil || *a.Items[0].AnswerIndex != 1 {
		t.Fatalf("quoted key not tolerated: %v", a.Items[0].AnswerIndex)
	}
}

func TestFromV2UnknownType(t *testing.T) {
	p := V2Payload{Items: []V2Item{{Type: "drag_drop", ID: 1}}}
	if _, err := FromV2(p); err == nil {
		t.Fatalf("expected error for unknown item type")
	}
}

func TestChoiceUnmarshalShapes(t *testing.T) {
	var c Choice
	if err := json.Unmarshal([]byte(`"just text"`), &c); err != nil {
		t.Fatalf("bare string: %v", err)
	}
	if c.Text != "just text" || c.Image != "" {
		t.Fatalf("bare string decoded to %+v", c)
	}
	if c.Kind() != ChoiceText {
		t.Fatalf("kind = %v, want text", c.Kind())
	}

	if err := json.Unmarshal([]byte(`{"text":"cup","image":"cup.png"}`), &c); err != nil {
		t.Fatalf("object: %v", err)
	}
	if c.Text != "cup" || c.Image != "cup.png" {
		t.Fatalf("object decoded to %+v", c)
	}
	if c.Kind() != ChoiceBoth {
		t.Fatalf("kind = %v, want both", c.Kind())
	}

	if err := json.Unmarshal([]byte(`{"image":"only.png"}`), &c); err != nil {
		t.Fatalf("image only: %v", err)
	}
	if c.Kind() != ChoiceImage {
		t.Fatalf("kind = %v, want image", c.Kind())
	}
}

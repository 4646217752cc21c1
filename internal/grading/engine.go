package grading

import (
	"github.com/reha-link/rehalink-platform/internal/assignment"
)

// Response is one slot of the attempt's local answer buffer. At most
// one of Choice/Text is set; a zero Response means unanswered.
type Response struct {
	Choice *int
	Text   *string
}

func ChoiceResponse(idx int) Response { return Response{Choice: &idx} }
func TextResponse(s string) Response  { return Response{Text: &s} }

func (r Response) Empty() bool { return r.Choice == nil && r.Text == nil }

type Verdict int

const (
	// Excluded items are not auto-gradable and count toward neither
	// score nor total; writing items among them go to doctor review.
	Excluded Verdict = iota
	Correct
	Incorrect
)

// Result is the outcome of grading one response snapshot.
type Result struct {
	Score        int
	AutoGradable int
	PerItem      []Verdict
}

// ScorePtr returns the value persisted on the finished record: nil when
// nothing was auto-gradable, distinguishing "no objective items" from
// "scored zero".
func (r Result) ScorePtr() *int {
	if r.AutoGradable == 0 {
		return nil
	}
	s := r.Score
	return &s
}

// Grade computes the automatic score for a response snapshot. It is a
// pure function of the item list and the buffer: replaying it yields
// the same result.
//
// An mcq item with an answer key is correct iff the chosen index equals
// the key. A writing item without manual review and with a non-empty
// key is correct iff the response matches the key after trimming and
// case folding. Everything else is excluded.
func Grade(items []assignment.Item, responses []Response) Result {
	res := Result{PerItem: make([]Verdict, len(items))}
	for i, it := range items {
		var r Response
		if i < len(responses) {
			r = responses[i]
		}
		switch {
		case it.Type == assignment.TypeMCQ && it.AnswerIndex != nil:
			res.AutoGradable++
			if r.Choice != nil && *r.Choice == *it.AnswerIndex {
				res.Score++
				res.PerItem[i] = Correct
			} else {
				res.PerItem[i] = Incorrect
			}
		case it.Type == assignment.TypeWriting && !it.ManualReview && it.AnswerText != "":
			res.AutoGradable++
			if r.Text != nil && Equivalent(it.AnswerText, *r.Text) {
				res.Score++
				res.PerItem[i] = Correct
			} else {
				res.PerItem[i] = Incorrect
			}
		default:
			res.PerItem[i] = Excluded
		}
	}
	return res
}

// AutoGradableCount applies the same counting rule without a response
// snapshot; dashboards use it to pair a stored score with its
// denominator instead of trusting a persisted total.
func AutoGradableCount(items []assignment.Item) int {
	n := 0
	for _, it := range items {
		if it.AutoGradable() {
			n++
		}
	}
	return n
}

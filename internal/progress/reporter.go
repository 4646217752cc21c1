// Package progress derives dashboard summaries from attempt history and
// assignment definitions. Read-side only: recomputable at any time,
// writes nothing.
package progress

import (
	"sort"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
	"github.com/reha-link/rehalink-platform/internal/grading"
)

const TopicCount = 9

// AssignmentSummary is the per-assignment dashboard row.
type AssignmentSummary struct {
	AssignmentID int64  `json:"assignment_id"`
	Topic        int    `json:"topic"`
	Title        string `json:"title"`
	Attempts     int    `json:"attempts"`
	Done         bool   `json:"done"`
	// LatestScore pairs the latest finished attempt's stored score with
	// the auto-gradable denominator recomputed from the current item
	// definitions, never a persisted total.
	LatestScore  *int `json:"latest_score,omitempty"`
	AutoGradable int  `json:"auto_gradable"`
}

type TopicSummary struct {
	Topic int `json:"topic"`
	Total int `json:"total"`
	Done  int `json:"done"`
}

// Summarize builds per-assignment rows for the given history. Latest is
// the finished record with the greatest finished_at; unfinished records
// never win that selection but do count as attempts.
func Summarize(assignments []assignment.Assignment, records []attempt.Record) []AssignmentSummary {
	type agg struct {
		attempts int
		latest   *attempt.Record
	}
	byAssignment := map[int64]*agg{}
	for i := range records {
		rec := &records[i]
		a := byAssignment[rec.AssignmentID]
		if a == nil {
			a = &agg{}
			byAssignment[rec.AssignmentID] = a
		}
		a.attempts++
		if !rec.Finished() {
			continue
		}
		if a.latest == nil || rec.FinishedAt.After(*a.latest.FinishedAt) {
			a.latest = rec
		}
	}

	out := make([]AssignmentSummary, 0, len(assignments))
	for _, ass := range assignments {
		row := AssignmentSummary{
			AssignmentID: ass.ID,
			Topic:        ass.Topic,
			Title:        ass.Title,
			AutoGradable: grading.AutoGradableCount(ass.Items),
		}
		if a := byAssignment[ass.ID]; a != nil {
			row.Attempts = a.attempts
			if a.latest != nil {
				row.Done = true
				row.LatestScore = a.latest.Score
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out
}

// ByTopic folds assignment rows into the nine-topic overview.
func ByTopic(rows []AssignmentSummary) []TopicSummary {
	out := make([]TopicSummary, TopicCount)
	for i := range out {
		out[i].Topic = i + 1
	}
	for _, r := range rows {
		if r.Topic < 1 || r.Topic > TopicCount {
			continue
		}
		t := &out[r.Topic-1]
		t.Total++
		if r.Done {
			t.Done++
		}
	}
	return out
}

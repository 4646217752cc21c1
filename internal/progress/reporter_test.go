package progress

import (
	"testing"
	"time"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
)

func intp(v int) *int { return &v }

func timep(t time.Time) *time.Time { return &t }

func mcqAssignment(id int64, topic int) assignment.Assignment {
	return assignment.Assignment{
		ID: id, Topic: topic, Title: "a",
		Items: []assignment.Item{
			{Type: assignment.TypeMCQ, ID: 0, AnswerIndex: intp(0)},
			{Type: assignment.TypeMCQ, ID: 1, AnswerIndex: intp(1)},
		},
	}
}

func TestSummarizeLatestWins(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	records := []attempt.Record{
		{ID: "r1", AssignmentID: 1, StartedAt: base, FinishedAt: timep(base.Add(time.Hour)), Score: intp(1)},
		{ID: "r2", AssignmentID: 1, StartedAt: base, FinishedAt: timep(base.Add(2 * time.Hour)), Score: intp(2)},
		{ID: "r3", AssignmentID: 1, StartedAt: base.Add(3 * time.Hour)}, // open, no score
	}
	rows := Summarize([]assignment.Assignment{mcqAssignment(1, 1)}, records)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", r.Attempts)
	}
	if !r.Done {
		t.Fatalf("done should be true with a finished record")
	}
	if r.LatestScore == nil || *r.LatestScore != 2 {
		t.Fatalf("latest score = %v, want 2", r.LatestScore)
	}
	if r.AutoGradable != 2 {
		t.Fatalf("auto gradable = %d, want 2", r.AutoGradable)
	}
}

func TestSummarizeOpenRecordOnly(t *testing.T) {
	records := []attempt.Record{
		{ID: "r1", AssignmentID: 1, StartedAt: time.Now()},
	}
	rows := Summarize([]assignment.Assignment{mcqAssignment(1, 2)}, records)
	r := rows[0]
	if r.Attempts != 1 || r.Done || r.LatestScore != nil {
		t.Fatalf("open-only row: %+v", r)
	}
}

func TestSummarizeNoAttempts(t *testing.T) {
	rows := Summarize([]assignment.Assignment{mcqAssignment(7, 1)}, nil)
	r := rows[0]
	if r.Attempts != 0 || r.Done || r.LatestScore != nil {
		t.Fatalf("untouched row: %+v", r)
	}
}

func TestSummarizeNullScoreLatest(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	ass := assignment.Assignment{
		ID: 4, Topic: 3,
		Items: []assignment.Item{{Type: assignment.TypeWriting, ID: 0, ManualReview: true}},
	}
	records := []attempt.Record{
		{ID: "r1", AssignmentID: 4, StartedAt: base, FinishedAt: timep(base.Add(time.Minute))},
	}
	r := Summarize([]assignment.Assignment{ass}, records)[0]
	if !r.Done {
		t.Fatalf("done should be true")
	}
	if r.LatestScore != nil {
		t.Fatalf("score = %v, want nil for review-only assignment", r.LatestScore)
	}
	if r.AutoGradable != 0 {
		t.Fatalf("auto gradable = %d, want 0", r.AutoGradable)
	}
}

func TestSummarizeSortedByAssignment(t *testing.T) {
	rows := Summarize([]assignment.Assignment{
		mcqAssignment(9, 1), mcqAssignment(2, 1), mcqAssignment(5, 1),
	}, nil)
	for i := 1; i < len(rows); i++ {
		if rows[i-1].AssignmentID >= rows[i].AssignmentID {
			t.Fatalf("rows not sorted: %v", rows)
		}
	}
}

func TestByTopic(t *testing.T) {
	rows := []AssignmentSummary{
		{AssignmentID: 1, Topic: 1, Done: true},
		{AssignmentID: 2, Topic: 1},
		{AssignmentID: 3, Topic: 9, Done: true},
		{AssignmentID: 4, Topic: 12}, // out of range, dropped
	}
	topics := ByTopic(rows)
	if len(topics) != TopicCount {
		t.Fatalf("topics = %d, want %d", len(topics), TopicCount)
	}
	if topics[0].Total != 2 || topics[0].Done != 1 {
		t.Fatalf("topic 1 = %+v", topics[0])
	}
	if topics[8].Total != 1 || topics[8].Done != 1 {
		t.Fatalf("topic 9 = %+v", topics[8])
	}
	for i := 1; i < 8; i++ {
		if topics[i].Total != 0 {
			t.Fatalf("topic %d should be empty", i+1)
		}
	}
}

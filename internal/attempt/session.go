package attempt

import (
	"context"
	"errors"
	"fmt"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/grading"
)

// Backend is what the session needs from the record API. Calls are
// independent asynchronous operations; the session sequences only where
// the protocol demands it (finish before the writing flush).
type Backend interface {
	Start(ctx context.Context, assignmentID int64) (recordID string, err error)
	SaveChoice(ctx context.Context, assignmentID, itemID int64, choiceIndex int, isCorrect bool) error
	SaveWriting(ctx context.Context, assignmentID, itemID int64, text string) error
	Finish(ctx context.Context, assignmentID int64, score *int) error
}

type State int

const (
	NotStarted State = iota
	InProgress
	Submitted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Submitted:
		return "submitted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrNotInProgress = errors.New("attempt not in progress")
	ErrNotSubmitted  = errors.New("attempt not submitted")
	ErrNoResponses   = errors.New("no responses recorded")
	ErrItemKind      = errors.New("response kind does not match item type")
	ErrItemIndex     = errors.New("item index out of range")
)

// Session drives one in-progress attempt. The local response buffer is
// the source of truth for the remainder of the session: choice
// persistence is fire-and-forget through the task queue and a write
// failure never blocks local state.
type Session struct {
	backend Backend
	queue   *TaskQueue

	ass       assignment.Assignment
	state     State
	recordID  string
	responses []grading.Response
	result    *grading.Result
}

func NewSession(backend Backend, ass assignment.Assignment) *Session {
	return &Session{
		backend:   backend,
		queue:     NewTaskQueue(),
		ass:       ass,
		responses: make([]grading.Response, len(ass.Items)),
	}
}

func (s *Session) State() State         { return s.state }
func (s *Session) RecordID() string     { return s.recordID }
func (s *Session) Queue() *TaskQueue    { return s.queue }
func (s *Session) Assignment() assignment.Assignment { return s.ass }

// Responses returns a copy of the local buffer.
func (s *Session) Responses() []grading.Response {
	out := make([]grading.Response, len(s.responses))
	copy(out, s.responses)
	return out
}

// Result is the grading outcome of the last submit, nil before one.
func (s *Session) Result() *grading.Result { return s.result }

// Start obtains a record identity and moves to InProgress. Valid from
// NotStarted only; Retry re-invokes it internally after a submit.
func (s *Session) Start(ctx context.Context) error {
	if s.state != NotStarted {
		return fmt.Errorf("start: already %s", s.state)
	}
	id, err := s.backend.Start(ctx, s.ass.ID)
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}
	s.recordID = id
	s.state = InProgress
	return nil
}

// RecordChoice answers an mcq item. The choice is buffered locally and
// persisted immediately in the background, with correctness computed
// here at write time. Refused after submit.
func (s *Session) RecordChoice(ctx context.Context, itemIndex, choiceIndex int) error {
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if itemIndex < 0 || itemIndex >= len(s.ass.Items) {
		return ErrItemIndex
	}
	it := s.ass.Items[itemIndex]
	if it.Type != assignment.TypeMCQ {
		return ErrItemKind
	}
	s.responses[itemIndex] = grading.ChoiceResponse(choiceIndex)
	correct := it.AnswerIndex != nil && choiceIndex == *it.AnswerIndex
	s.queue.Go(fmt.Sprintf("mcq:%d", it.ID), func() error {
		return s.backend.SaveChoice(ctx, s.ass.ID, it.ID, choiceIndex, correct)
	})
	return nil
}

// RecordText answers a writing item. Local buffer only; writing answers
// are flushed in bulk at submit.
func (s *Session) RecordText(itemIndex int, text string) error {
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if itemIndex < 0 || itemIndex >= len(s.ass.Items) {
		return ErrItemIndex
	}
	if s.ass.Items[itemIndex].Type != assignment.TypeWriting {
		return ErrItemKind
	}
	s.responses[itemIndex] = grading.TextResponse(text)
	return nil
}

// Submit grades the local buffer, persists the finish record, then
// flushes every buffered writing answer independently. A failed writing
// flush does not roll anything back; the attempt is Submitted locally
// either way, and the failures stay observable on the task queue.
func (s *Session) Submit(ctx context.Context) (grading.Result, error) {
	if s.state != InProgress {
		return grading.Result{}, ErrNotInProgress
	}
	answered := false
	for _, r := range s.responses {
		if !r.Empty() {
			answered = true
			break
		}
	}
	if !answered {
		return grading.Result{}, ErrNoResponses
	}

	res := grading.Grade(s.ass.Items, s.responses)
	if err := s.backend.Finish(ctx, s.ass.ID, res.ScorePtr()); err != nil {
		return grading.Result{}, fmt.Errorf("finish attempt: %w", err)
	}
	for i, it := range s.ass.Items {
		if it.Type != assignment.TypeWriting || s.responses[i].Text == nil {
			continue
		}
		it, text := it, *s.responses[i].Text
		s.queue.Go(fmt.Sprintf("writing:%d", it.ID), func() error {
			return s.backend.SaveWriting(ctx, s.ass.ID, it.ID, text)
		})
	}
	s.result = &res
	s.state = Submitted
	return res, nil
}

// Retry starts over: a brand-new record identity, an empty buffer, no
// score. The old record is untouched.
func (s *Session) Retry(ctx context.Context) error {
	if s.state != Submitted {
		return ErrNotSubmitted
	}
	id, err := s.backend.Start(ctx, s.ass.ID)
	if err != nil {
		return fmt.Errorf("retry attempt: %w", err)
	}
	s.recordID = id
	s.responses = make([]grading.Response, len(s.ass.Items))
	s.result = nil
	s.state = InProgress
	return nil
}

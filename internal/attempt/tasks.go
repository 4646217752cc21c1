package attempt

import "sync"

// TaskResult records the completion of one fire-and-forget persistence
// task. Failures are observable here instead of being swallowed, so the
// partial-failure behavior of submit can be asserted deterministically.
type TaskResult struct {
	Name string
	Err  error
}

// TaskQueue runs persistence tasks without blocking the session. The
// session never waits on it; tests (and a shutdown path) can.
type TaskQueue struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	results []TaskResult
}

func NewTaskQueue() *TaskQueue { return &TaskQueue{} }

// Go schedules fn and records its outcome under name.
func (q *TaskQueue) Go(name string, fn func() error) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		err := fn()
		q.mu.Lock()
		q.results = append(q.results, TaskResult{Name: name, Err: err})
		q.mu.Unlock()
	}()
}

// Wait blocks until every scheduled task has completed and returns a
// snapshot of all results so far.
func (q *TaskQueue) Wait() []TaskResult {
	q.wg.Wait()
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TaskResult, len(q.results))
	copy(out, q.results)
	return out
}

// Failures returns the completed tasks that errored.
func (q *TaskQueue) Failures() []TaskResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []TaskResult
	for _, r := range q.results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

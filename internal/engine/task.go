package engine

import (
	"context"
	"sync"
)

// Task is the future of one engine operation.
type Task struct {
	id   string
	op   Op
	done chan struct{}
	once sync.Once
	err  error
}

func newTask(id string, op Op) *Task {
	return &Task{id: id, op: op, done: make(chan struct{})}
}

// ID is empty for rejected operations, which never got one.
func (t *Task) ID() string { return t.id }

func (t *Task) Op() Op { return t.op }

// Done is closed once the operation has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is the outcome. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the operation finishes or ctx ends. Giving up on the
// wait does not cancel the operation.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

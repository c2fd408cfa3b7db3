package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codegame/internal/model"
)

type fakeFleet struct {
	languages []string
	verdict   model.SubmissionStatus
	// gate, when set, holds every verdict until it is closed
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeFleet) Languages() []string { return f.languages }

func (f *fakeFleet) Dispatch(ctx context.Context, sub *model.Submission) <-chan *model.Submission {
	f.calls.Add(1)
	ch := make(chan *model.Submission, 1)
	if f.gate == nil {
		sub.Status = f.verdict
		ch <- sub
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		select {
		case <-f.gate:
			sub.Status = f.verdict
			ch <- sub
		case <-ctx.Done():
		}
	}()
	return ch
}

type fakeSource struct {
	problems []model.Problem
}

func (s fakeSource) AvailableProblems() []model.Problem { return s.problems }

func problemsNamed(names ...string) fakeSource {
	out := make([]model.Problem, 0, len(names))
	for _, n := range names {
		out = append(out, model.Problem{Name: n, Content: []byte("%PDF " + n)})
	}
	return fakeSource{problems: out}
}

type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) Broadcast(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count(match func(any) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func isType[T any](ev any) bool {
	_, ok := ev.(T)
	return ok
}

func (r *recorder) last() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"codegame/internal/model"
	appErr "codegame/pkg/errors"

	"go.uber.org/zap"
)

func newTestFleet(t *testing.T) *Fleet {
	t.Helper()
	f := NewFleet(testNodeConfig(), zap.NewNop())
	t.Cleanup(f.Close)
	return f
}

func addReady(t *testing.T, f *Fleet, fs *fakeSandbox) *Node {
	t.Helper()
	id, err := f.Add(fs.URL())
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	node, ok := f.Node(id)
	if !ok {
		t.Fatalf("expected node %s to be registered", id)
	}
	waitHealth(t, node, HealthReady)
	return node
}

func receiveOnce(t *testing.T, ch <-chan *model.Submission) *model.Submission {
	t.Helper()
	var got *model.Submission
	select {
	case got = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch result not delivered")
	}
	if got == nil {
		t.Fatal("expected a submission, got nil")
	}
	if _, open := <-ch; open {
		t.Fatal("expected result channel to close after one result")
	}
	return got
}

func expectStatus(t *testing.T, sub *model.Submission, want model.SubmissionStatus) {
	t.Helper()
	if sub.Status != want {
		t.Fatalf("expected status %s, got %s", want, sub.Status)
	}
}

func expectSubmits(t *testing.T, fs *fakeSandbox, want int32) {
	t.Helper()
	if got := fs.submits.Load(); got != want {
		t.Fatalf("expected %d submit requests, got %d", want, got)
	}
}

func TestFleetAddRejectsBadEndpoint(t *testing.T) {
	f := newTestFleet(t)
	for _, raw := range []string{"ftp://example.com", "example.com:8000", "http://", "://bad", ""} {
		_, err := f.Add(raw)
		if !appErr.Is(err, appErr.InvalidSandboxEndpoint) {
			t.Fatalf("expected InvalidSandboxEndpoint for %q, got %v", raw, err)
		}
	}
	if nodes := f.Nodes(); len(nodes) != 0 {
		t.Fatalf("expected no nodes, got %d", len(nodes))
	}
}

func TestFleetRemove(t *testing.T) {
	fs := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	f := newTestFleet(t)
	node := addReady(t, f, fs)

	if !f.Remove(node.ID()) {
		t.Fatal("expected first remove to succeed")
	}
	if f.Remove(node.ID()) {
		t.Fatal("expected second remove to report unknown id")
	}
	if len(f.Nodes()) != 0 || len(f.Languages()) != 0 {
		t.Fatalf("expected empty fleet, got nodes=%v languages=%v", f.Nodes(), f.Languages())
	}
	if node.ctx.Err() == nil {
		t.Fatal("expected removed node to be stopped")
	}
}

func TestFleetRemoveDuringSubmit(t *testing.T) {
	fs := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	hold := make(chan struct{})
	fs.set(func(fs *fakeSandbox) { fs.holdSubmit = hold })
	f := newTestFleet(t)
	node := addReady(t, f, fs)

	sub := &model.Submission{ID: "s1", Problem: "sum", Language: "python", Status: model.StatusPending}
	ch := f.Dispatch(context.Background(), sub)
	waitFor(t, func() bool { return fs.submits.Load() == 1 }, "submit request to reach the sandbox")
	if got := node.Inflight(); got != 1 {
		t.Fatalf("expected inflight 1, got %d", got)
	}

	removed := make(chan bool, 1)
	go func() { removed <- f.Remove(node.ID()) }()
	select {
	case ok := <-removed:
		if !ok {
			t.Fatal("expected remove to succeed")
		}
	case <-time.After(time.Second):
		close(hold)
		t.Fatal("remove blocked on an in-flight submit")
	}
	if node.ctx.Err() == nil {
		t.Fatal("expected poll context to be cancelled")
	}
	if len(f.Nodes()) != 0 {
		t.Fatalf("expected node gone from the fleet, got %v", f.Nodes())
	}
	if got := node.Inflight(); got != 1 {
		t.Fatalf("expected submit still in flight, got %d", got)
	}

	close(hold)
	got := receiveOnce(t, ch)
	expectStatus(t, got, model.StatusAccepted)
	waitFor(t, func() bool { return node.Inflight() == 0 }, "inflight to drain")
}

func TestFleetLeastLoadedSelection(t *testing.T) {
	a := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	b := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "WRONG_ANSWER")
	f := newTestFleet(t)
	nodeA := addReady(t, f, a)
	addReady(t, f, b)
	nodeA.inflight.Add(2)
	defer nodeA.inflight.Add(-2)

	sub := &model.Submission{ID: "s1", Problem: "sum", Language: "python", Status: model.StatusPending}
	got := receiveOnce(t, f.Dispatch(context.Background(), sub))

	expectStatus(t, got, model.StatusWrongAnswer)
	expectSubmits(t, a, 0)
	expectSubmits(t, b, 1)
}

func TestFleetTieKeepsRegistrationOrder(t *testing.T) {
	a := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	b := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "WRONG_ANSWER")
	f := newTestFleet(t)
	addReady(t, f, a)
	addReady(t, f, b)

	sub := &model.Submission{ID: "s1", Problem: "sum", Language: "python"}
	got := receiveOnce(t, f.Dispatch(context.Background(), sub))

	expectStatus(t, got, model.StatusAccepted)
	expectSubmits(t, a, 1)
	expectSubmits(t, b, 0)
}

func TestFleetNoCandidate(t *testing.T) {
	a := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	b := newFakeSandbox(t, []string{"cpp"}, []string{"sum"}, "ACCEPTED")
	f := newTestFleet(t)
	addReady(t, f, a)
	addReady(t, f, b)

	sub := &model.Submission{ID: "s1", Problem: "sum", Language: "rust", Status: model.StatusPending}
	got := receiveOnce(t, f.Dispatch(context.Background(), sub))

	expectStatus(t, got, model.StatusInternalError)
	expectSubmits(t, a, 0)
	expectSubmits(t, b, 0)
}

func TestFleetFailover(t *testing.T) {
	a := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	b := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	a.set(func(fs *fakeSandbox) { fs.submitErr = 500 })
	f := newTestFleet(t)
	addReady(t, f, a)
	addReady(t, f, b)

	sub := &model.Submission{ID: "s1", Problem: "sum", Language: "python"}
	got := receiveOnce(t, f.Dispatch(context.Background(), sub))

	expectStatus(t, got, model.StatusAccepted)
	expectSubmits(t, a, 1)
	expectSubmits(t, b, 1)
}

func TestFleetAllCandidatesFail(t *testing.T) {
	a := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	b := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "NOT_A_VERDICT")
	a.set(func(fs *fakeSandbox) { fs.submitErr = 503 })
	f := newTestFleet(t)
	addReady(t, f, a)
	addReady(t, f, b)

	sub := &model.Submission{ID: "s1", Problem: "sum", Language: "python"}
	got := receiveOnce(t, f.Dispatch(context.Background(), sub))

	expectStatus(t, got, model.StatusInternalError)
	expectSubmits(t, a, 1)
	expectSubmits(t, b, 1)
}

func TestFleetCapabilityUnion(t *testing.T) {
	a := newFakeSandbox(t, []string{"python", "cpp"}, []string{"sum"}, "ACCEPTED")
	b := newFakeSandbox(t, []string{"go"}, []string{"graph", "sum"}, "ACCEPTED")
	f := newTestFleet(t)
	addReady(t, f, a)
	nodeB := addReady(t, f, b)

	if got := f.Languages(); !slices.Equal(got, []string{"cpp", "go", "python"}) {
		t.Fatalf("unexpected languages: %v", got)
	}
	if got := f.Problems(); !slices.Equal(got, []string{"graph", "sum"}) {
		t.Fatalf("unexpected problems: %v", got)
	}

	b.set(func(fs *fakeSandbox) { fs.down = true })
	nodeB.poll(context.Background())
	if got := f.Languages(); !slices.Equal(got, []string{"cpp", "python"}) {
		t.Fatalf("unexpected languages after disconnect: %v", got)
	}
	if got := f.Problems(); !slices.Equal(got, []string{"sum"}) {
		t.Fatalf("unexpected problems after disconnect: %v", got)
	}
}

func TestFleetLoadFile(t *testing.T) {
	fs := newFakeSandbox(t, []string{"python"}, []string{"sum"}, "ACCEPTED")
	path := filepath.Join(t.TempDir(), "sandboxes.txt")
	content := "# sandboxes\n" + fs.URL() + "\n\nhttp://\nnot-a-url\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	f := newTestFleet(t)
	added, err := f.LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if added != 1 || len(f.Nodes()) != 1 {
		t.Fatalf("expected 1 node added, got added=%d nodes=%d", added, len(f.Nodes()))
	}

	added, err = f.LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 added, got %d", added)
	}
}

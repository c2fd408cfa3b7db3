package sandbox

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSandbox struct {
	server *httptest.Server

	mu        sync.Mutex
	version   string
	modules   any
	problems  any
	status    string
	submitErr int
	down      bool
	// hold blocks /version or /submit until closed or the client gives up
	holdVersion chan struct{}
	holdSubmit  chan struct{}

	submits atomic.Int32
	lastForm map[string]string
}

func newFakeSandbox(t *testing.T, modules, problems []string, status string) *fakeSandbox {
	t.Helper()
	fs := &fakeSandbox{
		version:  "1.0.0",
		modules:  modules,
		problems: problems,
		status:   status,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		hold := fs.holdVersion
		fs.mu.Unlock()
		holdUntil(r, hold)
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if fs.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(fs.version + "\n"))
	})
	mux.HandleFunc("/modules", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(fs.modules)
	})
	mux.HandleFunc("/problems", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(fs.problems)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		fs.submits.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form := map[string]string{
			"id":            r.FormValue("id"),
			"problem_id":    r.FormValue("problem_id"),
			"target_module": r.FormValue("target_module"),
		}
		if file, _, err := r.FormFile("file"); err == nil {
			buf := make([]byte, 1024)
			n, _ := file.Read(buf)
			form["file"] = string(buf[:n])
			_ = file.Close()
		}
		fs.mu.Lock()
		fs.lastForm = form
		code, status, hold := fs.submitErr, fs.status, fs.holdSubmit
		fs.mu.Unlock()
		holdUntil(r, hold)
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "message": "judged"})
	})
	fs.server = httptest.NewServer(mux)
	t.Cleanup(fs.server.Close)
	return fs
}

func holdUntil(r *http.Request, hold chan struct{}) {
	if hold == nil {
		return
	}
	select {
	case <-hold:
	case <-r.Context().Done():
	}
}

func (fs *fakeSandbox) URL() string { return fs.server.URL }

func (fs *fakeSandbox) set(fn func(fs *fakeSandbox)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn(fs)
}

func (fs *fakeSandbox) form() map[string]string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastForm
}

func testNodeConfig() NodeConfig {
	return NodeConfig{
		PollInterval:   time.Hour,
		RequestTimeout: 2 * time.Second,
		RetryMax:       0,
	}
}

func waitHealth(t *testing.T, n *Node, want Health) {
	t.Helper()
	waitFor(t, func() bool { return n.Health() == want }, "node "+n.ID()+" to become "+want.String())
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

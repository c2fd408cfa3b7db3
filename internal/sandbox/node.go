// Package sandbox tracks remote execution sandboxes and dispatches submissions to them.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"codegame/internal/model"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultPollInterval   = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 1 << 20
)

var errNodeStopped = errors.New("sandbox node stopped")

// Health is the reachability state of a node.
type Health int32

const (
	HealthUnknown Health = iota
	HealthReady
	HealthDisconnected
)

func (h Health) String() string {
	switch h {
	case HealthReady:
		return "ready"
	case HealthDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// NodeConfig holds per-node timing settings.
type NodeConfig struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// RetryMax bounds retries of a single capability GET within one poll cycle.
	RetryMax int
}

func (c *NodeConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
}

// Node is one remote sandbox endpoint.
type Node struct {
	id       string
	endpoint *url.URL
	cfg      NodeConfig
	client   *retryablehttp.Client
	log      *zap.Logger

	// exec serializes a poll cycle against a submission.
	exec     chan struct{}
	inflight atomic.Int64

	mu        sync.RWMutex
	health    Health
	version   string
	languages mapset.Set[string]
	problems  mapset.Set[string]

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NodeInfo is a point-in-time view of a node.
type NodeInfo struct {
	ID        string
	Endpoint  string
	Health    Health
	Version   string
	Inflight  int64
	Languages []string
	Problems  []string
}

func newNode(id string, endpoint *url.URL, cfg NodeConfig, log *zap.Logger) *Node {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	log = log.With(zap.String("node_id", id), zap.String("endpoint", endpoint.String()))
	return &Node{
		id:        id,
		endpoint:  endpoint,
		cfg:       cfg,
		client:    newHTTPClient(cfg, log),
		log:       log,
		exec:      make(chan struct{}, 1),
		languages: mapset.NewSet[string](),
		problems:  mapset.NewSet[string](),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// Endpoint returns the node base URL.
func (n *Node) Endpoint() string { return n.endpoint.String() }

// Inflight returns the number of submissions waiting on or running at the node.
func (n *Node) Inflight() int64 { return n.inflight.Load() }

// Health returns the current health.
func (n *Node) Health() Health {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.health
}

// Supports reports whether the node is ready and advertises both problem and language.
func (n *Node) Supports(problem, language string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.health == HealthReady && n.problems.Contains(problem) && n.languages.Contains(language)
}

// Info returns a snapshot of the node.
func (n *Node) Info() NodeInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return NodeInfo{
		ID:        n.id,
		Endpoint:  n.endpoint.String(),
		Health:    n.health,
		Version:   n.version,
		Inflight:  n.inflight.Load(),
		Languages: sortedSlice(n.languages),
		Problems:  sortedSlice(n.problems),
	}
}

func (n *Node) capabilities() (languages, problems mapset.Set[string], ready bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.health != HealthReady {
		return nil, nil, false
	}
	return n.languages, n.problems, true
}

func (n *Node) start() {
	go n.pollLoop()
}

// Stop halts polling and releases pooled connections. Safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.cancel()
		<-n.done
		n.client.HTTPClient.CloseIdleConnections()
		n.log.Info("sandbox node stopped")
	})
}

func (n *Node) pollLoop() {
	defer close(n.done)

	n.poll(n.ctx)
	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.poll(n.ctx)
		}
	}
}

func (n *Node) acquire(ctx context.Context) error {
	if n.ctx.Err() != nil {
		return errNodeStopped
	}
	select {
	case n.exec <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-n.ctx.Done():
		return errNodeStopped
	}
}

func (n *Node) release() {
	select {
	case <-n.exec:
	default:
	}
}

func (n *Node) poll(ctx context.Context) {
	if err := n.acquire(ctx); err != nil {
		return
	}
	defer n.release()

	// one RequestTimeout bounds the whole cycle, retries included
	cycleCtx, cancel := context.WithTimeout(ctx, n.cfg.RequestTimeout)
	defer cancel()
	version, languages, problems, err := n.fetchCapabilities(cycleCtx)
	if ctx.Err() != nil {
		return
	}

	n.mu.Lock()
	prev := n.health
	if err != nil {
		n.health = HealthDisconnected
		n.version = ""
		n.languages = mapset.NewSet[string]()
		n.problems = mapset.NewSet[string]()
	} else {
		n.health = HealthReady
		n.version = version
		n.languages = languages
		n.problems = problems
	}
	n.mu.Unlock()

	switch {
	case err != nil && prev == HealthReady:
		n.log.Error("lost connection to sandbox", zap.Error(err))
	case err != nil:
		n.log.Debug("sandbox unreachable", zap.Error(err))
	case prev != HealthReady:
		n.log.Info("connected to sandbox",
			zap.String("version", version),
			zap.Int("languages", languages.Cardinality()),
			zap.Int("problems", problems.Cardinality()))
	}
}

func (n *Node) fetchCapabilities(ctx context.Context) (string, mapset.Set[string], mapset.Set[string], error) {
	rawVersion, err := n.get(ctx, "/version")
	if err != nil {
		return "", nil, nil, err
	}
	rawLanguages, err := n.get(ctx, "/modules")
	if err != nil {
		return "", nil, nil, err
	}
	languages, err := decodeStringList(rawLanguages)
	if err != nil {
		return "", nil, nil, fmt.Errorf("decode /modules: %w", err)
	}
	rawProblems, err := n.get(ctx, "/problems")
	if err != nil {
		return "", nil, nil, err
	}
	problems, err := decodeStringList(rawProblems)
	if err != nil {
		return "", nil, nil, fmt.Errorf("decode /problems: %w", err)
	}
	return strings.TrimSpace(string(rawVersion)), languages, problems, nil
}

func (n *Node) get(ctx context.Context, path string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, n.resolve(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return body, nil
}

// decodeStringList accepts only a JSON array whose elements are all strings.
func decodeStringList(raw []byte) (mapset.Set[string], error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	items, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", decoded)
	}
	set := mapset.NewSetWithSize[string](len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not string", i, item)
		}
		set.Add(s)
	}
	return set, nil
}

type submitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit judges sub on this node and writes a terminal status into it.
func (n *Node) Submit(ctx context.Context, sub *model.Submission) {
	n.inflight.Add(1)
	defer n.inflight.Add(-1)

	if err := n.acquire(ctx); err != nil {
		n.log.Error("failed to submit to sandbox", zap.String("submission_id", sub.ID), zap.Error(err))
		sub.Status = model.StatusInternalError
		return
	}
	defer n.release()

	if n.Health() != HealthReady {
		n.log.Error("failed to submit to sandbox: not ready", zap.String("submission_id", sub.ID))
		sub.Status = model.StatusInternalError
		return
	}

	resp, err := n.post(ctx, sub)
	if err != nil {
		n.log.Error("failed to submit to sandbox", zap.String("submission_id", sub.ID), zap.Error(err))
		sub.Status = model.StatusInternalError
		return
	}

	verdict := ParseVerdict(resp.Status)
	sub.Status = verdict.Status()
	fields := []zap.Field{
		zap.String("submission_id", sub.ID),
		zap.String("status", string(sub.Status)),
	}
	if resp.Message != "" {
		fields = append(fields, zap.String("message", resp.Message))
	}
	switch {
	case verdict == VerdictUnrecognized:
		n.log.Error("unknown response status from sandbox", append(fields, zap.String("raw_status", resp.Status))...)
	case sub.Status == model.StatusAccepted:
		n.log.Info("submission finished", fields...)
	default:
		n.log.Warn("submission finished", fields...)
	}
}

func (n *Node) post(ctx context.Context, sub *model.Submission) (*submitResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [][2]string{
		{"id", sub.ID},
		{"problem_id", sub.Problem},
		{"target_module", sub.Language},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	part, err := form.CreateFormFile("file", "solution")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(sub.Code); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.resolve("/submit"), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := n.client.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("response %d from sandbox", resp.StatusCode)
	}
	var out submitResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	return &out, nil
}

func (n *Node) resolve(path string) string {
	return n.endpoint.JoinPath(path).String()
}

package sandbox

import (
	"bufio"
	"context"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"codegame/internal/model"
	appErr "codegame/pkg/errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fleet is the registry of sandbox nodes and the submission dispatcher.
type Fleet struct {
	cfg NodeConfig
	log *zap.Logger

	mu    sync.RWMutex
	order []*Node
	nodes map[string]*Node
}

// NewFleet creates an empty fleet. Every added node uses cfg.
func NewFleet(cfg NodeConfig, log *zap.Logger) *Fleet {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Fleet{
		cfg:   cfg,
		log:   log,
		nodes: make(map[string]*Node),
	}
}

// Add registers a node at endpoint and starts polling it.
func (f *Fleet) Add(endpoint string) (string, error) {
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	node := newNode(id, u, f.cfg, f.log)

	f.mu.Lock()
	f.order = append(f.order, node)
	f.nodes[id] = node
	f.mu.Unlock()

	node.start()
	f.log.Info("sandbox node added", zap.String("node_id", id), zap.String("endpoint", u.String()))
	return id, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidSandboxEndpoint, "invalid sandbox endpoint %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, appErr.Newf(appErr.InvalidSandboxEndpoint, "invalid sandbox endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, appErr.Newf(appErr.InvalidSandboxEndpoint, "invalid sandbox endpoint %q: missing host", raw)
	}
	return u, nil
}

// Remove stops and deregisters a node. It reports whether the id was known.
func (f *Fleet) Remove(id string) bool {
	f.mu.Lock()
	node, ok := f.nodes[id]
	if ok {
		delete(f.nodes, id)
		f.order = slices.DeleteFunc(f.order, func(n *Node) bool { return n.id == id })
	}
	f.mu.Unlock()
	if !ok {
		return false
	}
	node.Stop()
	f.log.Info("sandbox node removed", zap.String("node_id", id))
	return true
}

// LoadFile adds every line of path that starts with "http". A missing file is not an error.
func (f *Fleet) LoadFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			f.log.Warn("sandbox list not found", zap.String("path", path))
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()

	added := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "http") {
			continue
		}
		if _, err := f.Add(line); err != nil {
			f.log.Warn("skip sandbox entry", zap.String("line", line), zap.Error(err))
			continue
		}
		added++
	}
	return added, scanner.Err()
}

// Node returns the node with id.
func (f *Fleet) Node(id string) (*Node, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	node, ok := f.nodes[id]
	return node, ok
}

// Nodes returns snapshots of all nodes in registration order.
func (f *Fleet) Nodes() []NodeInfo {
	nodes := f.snapshot()
	infos := make([]NodeInfo, 0, len(nodes))
	for _, node := range nodes {
		infos = append(infos, node.Info())
	}
	return infos
}

func (f *Fleet) snapshot() []*Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.order)
}

// Languages returns the sorted union of languages over ready nodes.
func (f *Fleet) Languages() []string {
	union := mapset.NewThreadUnsafeSet[string]()
	for _, node := range f.snapshot() {
		if languages, _, ready := node.capabilities(); ready {
			union.Append(languages.ToSlice()...)
		}
	}
	return sortedSlice(union)
}

// Problems returns the sorted union of problems over ready nodes.
func (f *Fleet) Problems() []string {
	union := mapset.NewThreadUnsafeSet[string]()
	for _, node := range f.snapshot() {
		if _, problems, ready := node.capabilities(); ready {
			union.Append(problems.ToSlice()...)
		}
	}
	return sortedSlice(union)
}

// candidates returns ready nodes supporting the problem and language, least loaded first.
// Registration order breaks ties.
func (f *Fleet) candidates(problem, language string) []*Node {
	type entry struct {
		node *Node
		load int64
	}
	var entries []entry
	for _, node := range f.snapshot() {
		if node.Supports(problem, language) {
			entries = append(entries, entry{node: node, load: node.Inflight()})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].load < entries[j].load })
	out := make([]*Node, len(entries))
	for i, e := range entries {
		out[i] = e.node
	}
	return out
}

// Dispatch judges sub on the fleet. The returned channel yields sub exactly once,
// carrying its terminal status, and is then closed.
func (f *Fleet) Dispatch(ctx context.Context, sub *model.Submission) <-chan *model.Submission {
	result := make(chan *model.Submission, 1)
	candidates := f.candidates(sub.Problem, sub.Language)
	if len(candidates) == 0 {
		f.log.Error("no sandbox supports submission",
			zap.String("submission_id", sub.ID),
			zap.String("problem", sub.Problem),
			zap.String("language", sub.Language))
		sub.Status = model.StatusInternalError
		result <- sub
		close(result)
		return result
	}

	go func() {
		defer close(result)
		sub.Status = model.StatusInternalError
		for _, node := range candidates {
			if ctx.Err() != nil {
				break
			}
			sub.Status = model.StatusPending
			node.Submit(ctx, sub)
			if sub.Status != model.StatusInternalError {
				break
			}
			f.log.Warn("sandbox attempt failed, trying next",
				zap.String("submission_id", sub.ID),
				zap.String("node_id", node.ID()))
		}
		if sub.Status == model.StatusPending {
			sub.Status = model.StatusInternalError
		}
		result <- sub
	}()
	return result
}

// Close stops every node.
func (f *Fleet) Close() {
	f.mu.Lock()
	nodes := f.order
	f.order = nil
	f.nodes = make(map[string]*Node)
	f.mu.Unlock()
	for _, node := range nodes {
		node.Stop()
	}
}

func sortedSlice(set mapset.Set[string]) []string {
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

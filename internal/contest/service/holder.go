package service

import (
	"sync"

	"go.uber.org/zap"
)

// Holder owns the current contest and replaces it on reset.
type Holder struct {
	cfg         Config
	fleet       Fleet
	source      ProblemSource
	broadcaster Broadcaster
	log         *zap.Logger

	mu      sync.RWMutex
	current *Engine
}

// NewHolder creates a holder with a fresh contest.
func NewHolder(cfg Config, fleet Fleet, source ProblemSource, broadcaster Broadcaster, log *zap.Logger) *Holder {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Holder{
		cfg:         cfg,
		fleet:       fleet,
		source:      source,
		broadcaster: broadcaster,
		log:         log,
	}
	h.current = h.newEngine()
	return h
}

func (h *Holder) newEngine() *Engine {
	return NewEngine(h.cfg, h.fleet, h.source, h.broadcaster, h.log)
}

// Current returns the active contest.
func (h *Holder) Current() *Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reset drains the active contest and replaces it with a new one.
func (h *Holder) Reset() {
	h.mu.Lock()
	old := h.current
	h.current = h.newEngine()
	h.mu.Unlock()

	old.Close()
	h.broadcaster.Broadcast(ContestResetEvent{Event: EventContestReset})
	h.log.Info("contest reset")
}

// Close shuts down the active contest.
func (h *Holder) Close() {
	h.Current().Close()
}

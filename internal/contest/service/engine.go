// Package service implements the contest lifecycle: registration, timed play, judging and scoring.
package service

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"codegame/internal/model"
	appErr "codegame/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMinNameLength = 3
	defaultMaxNameLength = 64
)

// Fleet judges submissions and reports the languages it can run.
type Fleet interface {
	Dispatch(ctx context.Context, sub *model.Submission) <-chan *model.Submission
	Languages() []string
}

// ProblemSource lists problems that are both stored locally and judgeable by the fleet.
type ProblemSource interface {
	AvailableProblems() []model.Problem
}

// Config holds engine settings.
type Config struct {
	MinNameLength int
	MaxNameLength int
	TickInterval  time.Duration
}

// Engine owns one contest instance. A single mutex serializes every transition.
type Engine struct {
	cfg         Config
	fleet       Fleet
	source      ProblemSource
	broadcaster Broadcaster
	log         *zap.Logger

	mu          sync.Mutex
	progress    model.ContestProgress
	duration    int
	elapsed     int
	problems    []model.Problem
	languages   []string
	contestants map[string]*model.Contestant
	order       []string
	clock       *Clock

	// ctx bounds in-flight dispatches; Close cancels it and waits on wg.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a contest in the NotStarted state.
func NewEngine(cfg Config, fleet Fleet, source ProblemSource, broadcaster Broadcaster, log *zap.Logger) *Engine {
	if cfg.MinNameLength <= 0 {
		cfg.MinNameLength = defaultMinNameLength
	}
	if cfg.MaxNameLength < cfg.MinNameLength {
		cfg.MaxNameLength = max(defaultMaxNameLength, cfg.MinNameLength)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:         cfg,
		fleet:       fleet,
		source:      source,
		broadcaster: broadcaster,
		log:         log,
		progress:    model.ProgressNotStarted,
		contestants: make(map[string]*model.Contestant),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a contestant. Only allowed before the contest starts.
func (e *Engine) Register(name string, color *string) (string, error) {
	name = strings.TrimSpace(name)
	switch n := utf8.RuneCountInString(name); {
	case n < e.cfg.MinNameLength:
		return "", appErr.New(appErr.InvalidContestantName).
			WithMessagef("name must be at least %d characters", e.cfg.MinNameLength)
	case n > e.cfg.MaxNameLength:
		return "", appErr.New(appErr.InvalidContestantName).
			WithMessagef("name must be at most %d characters", e.cfg.MaxNameLength)
	}
	if color != nil {
		trimmed := strings.TrimSpace(*color)
		if trimmed == "" {
			color = nil
		} else {
			color = &trimmed
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress != model.ProgressNotStarted {
		return "", appErr.New(appErr.ContestAlreadyStarted)
	}
	c := model.NewContestant(uuid.NewString(), name, color)
	e.contestants[c.ID] = c
	e.order = append(e.order, c.ID)
	e.broadcaster.Broadcast(NewContestantEvent{
		Event: EventNewContestant,
		ID:    c.ID,
		Name:  c.Name,
		Color: c.Color,
	})
	e.log.Info("contestant registered", zap.String("contestant_id", c.ID), zap.String("name", name))
	return c.ID, nil
}

// Start samples the problem set, freezes the language set and starts the clock.
func (e *Engine) Start(duration, problemCount int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress != model.ProgressNotStarted {
		return false
	}
	if duration <= 0 || problemCount <= 0 {
		e.log.Warn("invalid contest parameters", zap.Int("duration", duration), zap.Int("problems", problemCount))
		return false
	}
	if len(e.contestants) == 0 {
		e.log.Warn("starting contest with no contestants")
		return false
	}
	languages := e.fleet.Languages()
	if len(languages) == 0 {
		e.log.Warn("starting contest with no supported languages")
		return false
	}
	available := slices.Clone(e.source.AvailableProblems())
	rand.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	picked := available[:min(problemCount, len(available))]
	if len(picked) == 0 {
		e.log.Warn("starting contest with no problems")
		return false
	}

	e.problems = picked
	e.languages = languages
	e.duration = duration
	e.elapsed = 0
	for _, c := range e.contestants {
		for _, p := range picked {
			c.ProblemStatus[p.Name] = model.StatusPending
		}
	}
	e.progress = model.ProgressInProgress
	e.clock = startClock(e.ctx, e.cfg.TickInterval, e.tick)

	names := e.problemNamesLocked()
	e.broadcaster.Broadcast(ContestStartedEvent{
		Event:              EventContestStarted,
		Duration:           duration,
		Problems:           names,
		SupportedLanguages: slices.Clone(languages),
	})
	e.log.Info("contest started", zap.Int("duration", duration), zap.Strings("problems", names))
	return true
}

func (e *Engine) tick(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx.Err() != nil || e.progress != model.ProgressInProgress {
		return false
	}
	e.elapsed++
	if e.elapsed >= e.duration {
		e.log.Info("contest time is up")
		e.stopLocked()
		return false
	}
	return true
}

// Stop ends the contest. Every unfinished contestant is finished at its best accepted time.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress != model.ProgressInProgress {
		return false
	}
	e.log.Info("contest stopped manually", zap.Int("elapsed", e.elapsed))
	e.stopLocked()
	return true
}

func (e *Engine) stopLocked() {
	e.progress = model.ProgressFinished
	for _, id := range e.order {
		FinishAtBestTime(e.contestants[id])
	}
	if e.clock != nil {
		e.clock.Cancel()
	}
	e.broadcaster.Broadcast(ContestStoppedEvent{Event: EventContestStopped})
}

// MarkFinished finishes a contestant at the current elapsed time. Finishing an
// already finished contestant succeeds without a second announcement.
func (e *Engine) MarkFinished(contestantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress != model.ProgressInProgress {
		return appErr.New(appErr.ContestNotStarted)
	}
	c, ok := e.contestants[contestantID]
	if !ok {
		return appErr.New(appErr.NotRegistered)
	}
	if !Finish(c, e.elapsed) {
		return nil
	}
	e.broadcaster.Broadcast(ContestantFinishedEvent{Event: EventContestantFinished, ID: c.ID, Score: c.Score})
	e.log.Info("contestant finished", zap.String("contestant_id", c.ID), zap.Int("elapsed", e.elapsed), zap.Int("score", c.Score))
	return nil
}

// ApplySubmissionResult scores a judged submission and announces it. Every
// result of a known contestant is announced while the contest runs; the return
// value reports whether it changed the contestant's state. A result for an
// already accepted problem leaves the score unchanged.
func (e *Engine) ApplySubmissionResult(sub *model.Submission) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress != model.ProgressInProgress {
		return false
	}
	c, ok := e.contestants[sub.ContestantID]
	if !ok {
		return false
	}
	wasFinished := c.Finished
	applied := ApplySubmission(c, sub)
	e.broadcaster.Broadcast(SubmissionResultEvent{
		Event:      EventSubmissionResult,
		ID:         sub.ID,
		Contestant: c.ID,
		Problem:    sub.Problem,
		Language:   sub.Language,
		Status:     sub.Status,
		Time:       sub.SubmittedAt,
		Score:      c.Score,
	})
	if !wasFinished && c.Finished {
		e.broadcaster.Broadcast(ContestantFinishedEvent{Event: EventContestantFinished, ID: c.ID, Score: c.Score})
		e.log.Info("contestant solved every problem", zap.String("contestant_id", c.ID), zap.Int("score", c.Score))
	}
	return applied
}

// Submit validates a solution against the contest state and dispatches it for judging.
// The returned view carries the pending status; the verdict arrives by broadcast.
func (e *Engine) Submit(ctx context.Context, contestantID, problem, language string, code []byte) (model.SubmissionView, error) {
	e.mu.Lock()
	if e.progress != model.ProgressInProgress {
		e.mu.Unlock()
		return model.SubmissionView{}, appErr.New(appErr.ContestNotStarted)
	}
	c, ok := e.contestants[contestantID]
	if !ok {
		e.mu.Unlock()
		return model.SubmissionView{}, appErr.New(appErr.NotRegistered)
	}
	if c.Finished {
		e.mu.Unlock()
		return model.SubmissionView{}, appErr.New(appErr.ContestantFinished)
	}
	status, tracked := c.ProblemStatus[problem]
	if !tracked {
		e.mu.Unlock()
		return model.SubmissionView{}, appErr.New(appErr.ProblemNotFound)
	}
	if status == model.StatusAccepted {
		e.mu.Unlock()
		return model.SubmissionView{}, appErr.New(appErr.ProblemAlreadySolved)
	}
	if !slices.Contains(e.languages, language) {
		e.mu.Unlock()
		return model.SubmissionView{}, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", language)
	}
	sub := &model.Submission{
		ID:           uuid.NewString(),
		ContestantID: contestantID,
		Problem:      problem,
		Language:     language,
		SubmittedAt:  e.elapsed,
		Code:         code,
		Status:       model.StatusPending,
	}
	view := sub.View()
	e.wg.Add(1)
	e.mu.Unlock()

	e.log.Info("submission received",
		zap.String("submission_id", sub.ID),
		zap.String("contestant_id", contestantID),
		zap.String("problem", problem),
		zap.String("language", language))

	go func() {
		defer e.wg.Done()
		result, ok := <-e.fleet.Dispatch(e.ctx, sub)
		if !ok {
			return
		}
		e.ApplySubmissionResult(result)
	}()
	return view, nil
}

// ContestView describes a running contest to a contestant.
type ContestView struct {
	Duration           int      `json:"duration"`
	Elapsed            int      `json:"elapsed"`
	Problems           []string `json:"problems"`
	SupportedLanguages []string `json:"supported_languages"`
}

// RestoreView is everything a reconnecting contestant needs to rebuild its session.
type RestoreView struct {
	UID             string                 `json:"uid"`
	Name            string                 `json:"name"`
	Color           *string                `json:"color,omitempty"`
	ContestProgress model.ContestProgress  `json:"contest_progress"`
	Contest         *ContestView           `json:"contest,omitempty"`
	Submissions     []model.SubmissionView `json:"submissions,omitempty"`
	Contestants     []model.Standing       `json:"contestants"`
}

// Restore returns the session view of a contestant.
func (e *Engine) Restore(contestantID string) (*RestoreView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contestants[contestantID]
	if !ok {
		return nil, appErr.New(appErr.NotRegistered)
	}
	progress := e.progress
	if c.Finished && progress == model.ProgressInProgress {
		progress = model.ProgressFinished
	}
	view := &RestoreView{
		UID:             c.ID,
		Name:            c.Name,
		Color:           c.Color,
		ContestProgress: progress,
		Contestants:     e.standingsLocked(),
	}
	if progress == model.ProgressInProgress {
		view.Contest = &ContestView{
			Duration:           e.duration,
			Elapsed:            e.elapsed,
			Problems:           e.problemNamesLocked(),
			SupportedLanguages: slices.Clone(e.languages),
		}
		view.Submissions = make([]model.SubmissionView, 0, len(c.Submissions))
		for _, s := range c.Submissions {
			view.Submissions = append(view.Submissions, s.View())
		}
	}
	return view, nil
}

// Standings returns every contestant's public state in registration order.
func (e *Engine) Standings() []model.Standing {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.standingsLocked()
}

func (e *Engine) standingsLocked() []model.Standing {
	out := make([]model.Standing, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.contestants[id].Standing())
	}
	return out
}

// Contestant returns a copy of the public state of one contestant.
func (e *Engine) Contestant(id string) (model.Standing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contestants[id]
	if !ok {
		return model.Standing{}, false
	}
	return c.Standing(), true
}

// Problems returns the contest problem names. Empty before Start.
func (e *Engine) Problems() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.problemNamesLocked()
}

func (e *Engine) problemNamesLocked() []string {
	names := make([]string, 0, len(e.problems))
	for _, p := range e.problems {
		names = append(names, p.Name)
	}
	return names
}

// Problem returns a contest problem by name while the contest is running.
func (e *Engine) Problem(name string) (model.Problem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress != model.ProgressInProgress {
		return model.Problem{}, appErr.New(appErr.ContestNotStarted)
	}
	for _, p := range e.problems {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Problem{}, appErr.New(appErr.ProblemNotFound)
}

// Progress returns the lifecycle state.
func (e *Engine) Progress() model.ContestProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Elapsed returns the seconds elapsed since Start.
func (e *Engine) Elapsed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

// Languages returns the language set frozen at Start.
func (e *Engine) Languages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.languages)
}

// Close stops a running contest, cancels pending dispatches and waits for them.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.progress == model.ProgressInProgress {
		e.stopLocked()
	}
	if e.progress == model.ProgressNotStarted {
		e.progress = model.ProgressFinished
	}
	clock := e.clock
	e.mu.Unlock()

	e.cancel()
	if clock != nil {
		clock.Wait()
	}
	e.wg.Wait()
}

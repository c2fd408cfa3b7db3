// Package console implements the operator shell used to manage sandboxes and run the contest.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"codegame/internal/contest/service"
	"codegame/internal/model"
	"codegame/internal/sandbox"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

const (
	defaultPrompt   = "[cmd] > "
	defaultDuration = 1800
	defaultProblems = 3
)

// ErrExit is returned by Execute when the operator asks to quit.
var ErrExit = errors.New("console exit requested")

// Config holds console settings.
type Config struct {
	Enabled         bool   `yaml:"enabled"`
	Prompt          string `yaml:"prompt"`
	HistoryFile     string `yaml:"historyFile"`
	DefaultDuration int    `yaml:"defaultDuration"`
	DefaultProblems int    `yaml:"defaultProblems"`
}

// Fleet is the part of the sandbox fleet the console manages.
type Fleet interface {
	Add(endpoint string) (string, error)
	Remove(id string) bool
	Nodes() []sandbox.NodeInfo
	Languages() []string
}

// ProblemSource lists problems that can be put into a contest.
type ProblemSource interface {
	AvailableProblems() []model.Problem
}

// Console executes operator commands against the fleet and the current contest.
type Console struct {
	cfg      Config
	fleet    Fleet
	holder   *service.Holder
	problems ProblemSource
	log      *zap.Logger
	out      io.Writer

	ok   *color.Color
	fail *color.Color
	info *color.Color
}

// New creates a console writing to out.
func New(cfg Config, fleet Fleet, holder *service.Holder, problems ProblemSource, out io.Writer, log *zap.Logger) *Console {
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = defaultDuration
	}
	if cfg.DefaultProblems <= 0 {
		cfg.DefaultProblems = defaultProblems
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Console{
		cfg:      cfg,
		fleet:    fleet,
		holder:   holder,
		problems: problems,
		log:      log,
		out:      out,
		ok:       color.New(color.FgGreen),
		fail:     color.New(color.FgRed),
		info:     color.New(color.FgCyan),
	}
}

// NewTerminal opens the interactive line editor. Its Stdout can be handed to the
// logger so log lines do not corrupt the prompt.
func NewTerminal(cfg Config) (*readline.Instance, error) {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Run reads commands from rl until exit, EOF, ctx cancellation or ^C on an empty line.
// It owns rl and closes it on return.
func (c *Console) Run(ctx context.Context, rl *readline.Instance) error {
	var once sync.Once
	closeTerminal := func() { once.Do(func() { _ = rl.Close() }) }
	defer closeTerminal()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeTerminal()
		case <-done:
		}
	}()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if line == "" {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			c.fail.Fprintf(c.out, "%v\n", err)
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	args, err := shlex.Split(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	args[0] = strings.ToLower(args[0])
	root := c.commandTree()
	if root.Command(args[0]) == nil {
		c.fail.Fprintln(c.out, "Unknown command")
		return nil
	}
	c.log.Info("console command", zap.String("command", args[0]))
	return root.Run(ctx, append([]string{root.Name}, args...))
}

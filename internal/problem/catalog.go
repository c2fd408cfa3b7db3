// Package problem loads task statements from disk and matches them against the sandbox fleet.
package problem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"codegame/internal/model"
	appErr "codegame/pkg/errors"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	contentFile = "content.pdf"
	configFile  = "config.cfg"
)

// Catalog is the set of problems found under a directory.
type Catalog struct {
	dir string
	log *zap.Logger

	mu       sync.RWMutex
	problems map[string]model.Problem
}

// LoadCatalog scans dir, creating it when missing. Broken problems are logged and skipped.
func LoadCatalog(dir string, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{dir: dir, log: log, problems: make(map[string]model.Problem)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rescans the directory.
func (c *Catalog) Reload() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return appErr.Wrapf(err, appErr.ProblemLoadFailed, "create problems dir %s", c.dir)
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return appErr.Wrapf(err, appErr.ProblemLoadFailed, "read problems dir %s", c.dir)
	}

	problems := make(map[string]model.Problem, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		p, err := loadProblem(filepath.Join(c.dir, entry.Name()), entry.Name())
		if err != nil {
			c.log.Error("failed to load problem", zap.String("problem", entry.Name()), zap.Error(err))
			continue
		}
		problems[p.Name] = p
	}

	c.mu.Lock()
	c.problems = problems
	c.mu.Unlock()
	c.log.Info("problems loaded", zap.Int("count", len(problems)), zap.String("dir", c.dir))
	return nil
}

func loadProblem(dir, name string) (model.Problem, error) {
	content, err := os.ReadFile(filepath.Join(dir, contentFile))
	if err != nil {
		return model.Problem{}, err
	}
	limits, err := loadLimits(filepath.Join(dir, configFile))
	if err != nil {
		return model.Problem{}, err
	}
	return model.Problem{Name: name, Content: content, Limits: limits}, nil
}

// loadLimits parses the optional KEY=VALUE config next to a statement.
func loadLimits(path string) (model.ProblemLimits, error) {
	var limits model.ProblemLimits
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return limits, nil
		}
		return limits, fmt.Errorf("parse %s: %w", configFile, err)
	}
	if raw, ok := values["TEST_CASES"]; ok {
		if limits.TestCases, err = strconv.Atoi(raw); err != nil {
			return limits, fmt.Errorf("TEST_CASES: %w", err)
		}
	}
	if raw, ok := values["TIME_LIMIT"]; ok {
		if limits.TimeLimitSec, err = strconv.ParseFloat(raw, 64); err != nil {
			return limits, fmt.Errorf("TIME_LIMIT: %w", err)
		}
	}
	if raw, ok := values["MEMORY_LIMIT"]; ok {
		if limits.MemoryLimitMB, err = strconv.Atoi(raw); err != nil {
			return limits, fmt.Errorf("MEMORY_LIMIT: %w", err)
		}
	}
	return limits, nil
}

// Names returns the sorted problem names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.problems))
	for name := range c.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the problem called name.
func (c *Catalog) Get(name string) (model.Problem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.problems[name]
	return p, ok
}

// Len returns the number of problems.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.problems)
}

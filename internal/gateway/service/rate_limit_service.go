package service

import (
	pkgerrors "codegame/pkg/errors"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

const (
	defaultGlobalRate  = 10
	defaultGlobalBurst = 1000
)

// RateLimitConfig configures the token buckets. A zero PerClientRate disables
// per-client limiting.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Rate           float64 `yaml:"rate"`
	Burst          int     `yaml:"burst"`
	PerClientRate  float64 `yaml:"perClientRate"`
	PerClientBurst int     `yaml:"perClientBurst"`
}

// RateLimitService enforces a global token bucket plus optional per-client buckets.
type RateLimitService struct {
	global      *rate.Limiter
	clientRate  rate.Limit
	clientBurst int
	clients     *xsync.MapOf[string, *rate.Limiter]
}

func NewRateLimitService(cfg RateLimitConfig) *RateLimitService {
	if cfg.Rate <= 0 {
		cfg.Rate = defaultGlobalRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultGlobalBurst
	}
	s := &RateLimitService{
		global:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		clients: xsync.NewMapOf[string, *rate.Limiter](),
	}
	if cfg.PerClientRate > 0 {
		s.clientRate = rate.Limit(cfg.PerClientRate)
		s.clientBurst = max(cfg.PerClientBurst, 1)
	}
	return s
}

// Allow takes one token for client and one from the global bucket.
func (s *RateLimitService) Allow(client string) error {
	if s.clientRate > 0 && client != "" {
		limiter, _ := s.clients.LoadOrCompute(client, func() *rate.Limiter {
			return rate.NewLimiter(s.clientRate, s.clientBurst)
		})
		if !limiter.Allow() {
			return pkgerrors.New(pkgerrors.TooManyRequests)
		}
	}
	if !s.global.Allow() {
		return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage("Rate limit exceeded")
	}
	return nil
}

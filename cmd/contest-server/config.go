package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"codegame/internal/broadcast"
	"codegame/internal/console"
	"codegame/internal/gateway/middleware"
	"codegame/internal/gateway/service"
	"codegame/pkg/utils/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8000"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultMaxCodeBytes    = 256 << 10

	defaultJWTSecret      = "dev"
	defaultJWTIssuer      = "codegame"
	defaultSandboxFile    = "sandboxes.txt"
	defaultProblemsDir    = "problems"
	defaultPollInterval   = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultRetryMax       = 2
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes int           `yaml:"maxHeaderBytes"`
	MaxCodeBytes   int64         `yaml:"maxCodeBytes" validate:"gt=0"`
	Gzip           bool          `yaml:"gzip"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" validate:"required"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// SandboxConfig holds fleet settings.
type SandboxConfig struct {
	File           string        `yaml:"file"`
	PollInterval   time.Duration `yaml:"pollInterval" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"requestTimeout" validate:"gt=0"`
	// RetryMax unset means the default; 0 disables retries.
	RetryMax       *int          `yaml:"retryMax" validate:"omitempty,gte=0,lte=10"`
}

// ContestConfig holds contest rules.
type ContestConfig struct {
	MinNameLength int           `yaml:"minNameLength" validate:"gte=1"`
	MaxNameLength int           `yaml:"maxNameLength" validate:"gtefield=MinNameLength"`
	TickInterval  time.Duration `yaml:"tickInterval" validate:"gt=0"`
}

// ProblemsConfig holds the problem catalog location.
type ProblemsConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// WebConfig holds the optional static viewer directory.
type WebConfig struct {
	Dir string `yaml:"dir"`
}

// AppConfig holds the contest server configuration.
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Logger    logger.Config           `yaml:"logger"`
	Auth      AuthConfig              `yaml:"auth"`
	CORS      middleware.CORSConfig   `yaml:"cors"`
	RateLimit service.RateLimitConfig `yaml:"rateLimit"`
	Sandbox   SandboxConfig           `yaml:"sandbox"`
	Contest   ContestConfig           `yaml:"contest"`
	Problems  ProblemsConfig          `yaml:"problems"`
	Web       WebConfig               `yaml:"web"`
	Broadcast broadcast.Config        `yaml:"broadcast"`
	Console   console.Config          `yaml:"console"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the YAML file, applies .env overrides and defaults, then validates.
// A missing config file leaves every setting at its default.
func loadAppConfig(path, envFile string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, envFile); err != nil {
		return nil, err
	}

	applyServerDefaults(&cfg.Server)
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = defaultJWTSecret
	}
	if cfg.Auth.JWTIssuer == "" {
		cfg.Auth.JWTIssuer = defaultJWTIssuer
	}
	applySandboxDefaults(&cfg.Sandbox)
	if cfg.Contest.MinNameLength == 0 {
		cfg.Contest.MinNameLength = 3
	}
	if cfg.Contest.MaxNameLength == 0 {
		cfg.Contest.MaxNameLength = max(64, cfg.Contest.MinNameLength)
	}
	if cfg.Contest.TickInterval == 0 {
		cfg.Contest.TickInterval = time.Second
	}
	if cfg.Problems.Dir == "" {
		cfg.Problems.Dir = defaultProblemsDir
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnv loads envFile into the process environment without overriding
// variables already set, then maps the known variables onto cfg.
func applyEnv(cfg *AppConfig, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file failed: %w", err)
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = "0.0.0.0:" + port
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logger.Level = level
	}
	if raw := os.Getenv("RATELIMIT"); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse RATELIMIT failed: %w", err)
		}
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Burst = burst
	}
	if raw := os.Getenv("RATELIMIT_RATE"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse RATELIMIT_RATE failed: %w", err)
		}
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Rate = rate
	}
	return nil
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Addr == "" {
		cfg.Addr = defaultHTTPAddr
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if cfg.MaxCodeBytes == 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
}

func applySandboxDefaults(cfg *SandboxConfig) {
	if cfg.File == "" {
		cfg.File = defaultSandboxFile
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RetryMax == nil {
		retryMax := defaultRetryMax
		cfg.RetryMax = &retryMax
	}
}

package server

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/opiumfinance/lprewards/rewards/pkg/driver"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// RewardsView is the source of the served reward table.
type RewardsView interface {
	Ready() bool
	Current() *driver.Result
}

type Config struct {
	Logger            *slog.Logger
	View              RewardsView
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo

	// AllowedOrigins for CORS. Defaults to any origin.
	AllowedOrigins []string
	// RateLimit and RateBurst bound requests per client IP. Zero RateLimit disables limiting.
	RateLimit rate.Limit
	RateBurst int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.View == nil {
		return errors.New("rewards view is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return nil
}

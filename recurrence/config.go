package recurrence

import (
	"time"

	"github.com/rs/zerolog"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxOccurrences caps a single expansion; 0 means DefaultMaxOccurrences.
	MaxOccurrences int
	// Horizon bounds "upcoming" lookahead queries; 0 means DefaultHorizon.
	Horizon time.Duration
}

const (
	DefaultMaxOccurrences = 1000
	// DefaultHorizon stands for one calendar year; see HorizonEnd.
	DefaultHorizon = 365 * 24 * time.Hour
)

// HorizonEnd returns the last instant a lookahead of horizon from now covers.
// DefaultHorizon reaches the same date next year, so a leap year does not
// cut the last day off.
func HorizonEnd(now LocalDateTime, horizon time.Duration) LocalDateTime {
	if horizon == DefaultHorizon {
		return now.AddDate(1, 0, 0)
	}
	return now.Add(horizon)
}

// DefaultEngineConfig provides sensible defaults for a long-running server
var DefaultEngineConfig = EngineConfig{
	CacheEnabled:   true,
	CacheConfig:    DefaultCacheConfig,
	MaxOccurrences: DefaultMaxOccurrences,
	Horizon:        DefaultHorizon,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},
	MaxOccurrences: 500,
	Horizon:        DefaultHorizon,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled:   false,
	MaxOccurrences: DefaultMaxOccurrences,
	Horizon:        DefaultHorizon,
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	if config.MaxOccurrences <= 0 {
		config.MaxOccurrences = DefaultMaxOccurrences
	}
	if config.Horizon <= 0 {
		config.Horizon = DefaultHorizon
	}

	e := &Engine{
		config: config,
		logger: zerolog.Nop(),
	}
	if config.CacheEnabled {
		e.cache = NewRecurrenceCache(config.CacheConfig)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

package main

import (
	"fmt"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/internal/config"
	"github.com/cyp0633/libagenda/internal/logging"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage"
	"github.com/cyp0633/libagenda/storage/memory"
	"github.com/cyp0633/libagenda/storage/sqlite"
	"github.com/rs/zerolog"
)

// app holds the components shared by serve and sweep
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   storage.Store
	engine  *recurrence.Engine
	service *agenda.Service
	feed    *agenda.FeedWriter
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine := recurrence.NewEngineWithConfig(cfg.EngineConfig(),
		recurrence.WithLogger(logger.With().Str("component", "recurrence").Logger()))
	machine := lifecycle.NewMachine(engine,
		lifecycle.WithHorizon(cfg.Recurrence.Horizon),
		lifecycle.WithLogger(logger.With().Str("component", "lifecycle").Logger()))
	service := agenda.NewService(store, machine,
		agenda.WithLogger(logger.With().Str("component", "agenda").Logger()),
		agenda.WithLocation(loc),
		agenda.WithRetention(cfg.Sweep.Retention))

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		engine:  engine,
		service: service,
		feed:    agenda.NewFeedWriter(engine, cfg.Feed.Name, logger),
	}, nil
}

func openStore(cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	storeLogger := logger.With().Str("component", "storage").Logger()
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.Path, sqlite.WithLogger(storeLogger))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info().Str("path", cfg.Storage.Path).Msg("using sqlite storage")
		return store, nil
	default:
		logger.Warn().Msg("using in-memory storage; items are lost on restart")
		return memory.New(memory.WithLogger(storeLogger)), nil
	}
}

func (a *app) Close() error {
	a.engine.Close()
	return a.store.Close()
}

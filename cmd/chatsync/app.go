// ABOUTME: Application wiring for the chatsync CLI
// ABOUTME: Builds the store, remote client, synchronizer, and catalogs from config

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raikolabs/chatsync/internal/catalog"
	"github.com/raikolabs/chatsync/internal/config"
	"github.com/raikolabs/chatsync/internal/conversation"
	"github.com/raikolabs/chatsync/internal/imaging"
	"github.com/raikolabs/chatsync/internal/remote"
	"github.com/raikolabs/chatsync/internal/settings"
	"github.com/raikolabs/chatsync/internal/store"
)

// app holds the wired-up components every command works with.
type app struct {
	cfg      *config.Config
	settings *settings.File
	store    *store.SQLiteStore
	client   *remote.Client
	service  *conversation.Service
	agents   *catalog.AgentStore
	models   *catalog.ModelStore
	logger   *slog.Logger
}

// newApp loads config and settings and wires every component. A
// missing config file falls back to defaults so first runs just work.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	settingsPath, err := settings.DefaultPath()
	if err != nil {
		return nil, err
	}
	set, err := settings.Load(settingsPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	client := remote.NewClient(remote.Options{
		URL:              firstNonEmpty(os.Getenv("CHATSYNC_URL"), cfg.Remote.URL),
		BearerToken:      firstNonEmpty(os.Getenv("CHATSYNC_TOKEN"), cfg.Remote.BearerToken),
		Overrides:        set,
		KnowledgeTimeout: cfg.Remote.KnowledgeTimeout,
		QueryTimeout:     cfg.Remote.QueryTimeout,
		Logger:           logger,
	})

	return &app{
		cfg:      cfg,
		settings: set,
		store:    st,
		client:   client,
		service:  conversation.New(st, client, imaging.NewJPEGCodec(), logger),
		agents:   catalog.NewAgentStore(st, client, logger),
		models:   catalog.NewModelStore(client, logger),
		logger:   logger,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	a.service.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// loadConfig reads the config file named by CHATSYNC_CONFIG or the
// default path; a missing file yields the default config.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("CHATSYNC_CONFIG")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

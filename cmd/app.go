package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"tjsync/config"
	"tjsync/executor"
	"tjsync/inspect"
	"tjsync/internal/logging"
	"tjsync/internal/metrics"
	"tjsync/internal/timeutil"
	"tjsync/jira"
	"tjsync/storage"
	"tjsync/toggl"
)

const userAgent = "tjsync/1.0"

// app holds the collaborators of one command invocation.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	bin       timeutil.DayBin
	metrics   *metrics.Metrics
	store     *storage.SQLiteStore
	inspector *inspect.Service
	executor  *executor.Executor
}

// newApp builds both API clients, the inspect service and the executor from
// cfg. The run store is only opened when withStore is set.
func newApp(cfg *config.Config, withStore bool) (*app, error) {
	logger := logging.Default()

	togglClient, err := toggl.NewClient(toggl.ClientConfig{
		BaseURL:   cfg.Toggl.URL,
		APIToken:  cfg.Toggl.APIToken,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, err
	}
	jiraClient := jira.NewClient(cfg.Jira.URL, &jira.BasicAuth{
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Password,
	}, logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		bin:     timeutil.NewDayBin(time.Local, cfg.Window.Turnpoint),
		metrics: metrics.New(),
	}

	a.inspector = &inspect.Service{
		Source:    inspect.TogglSource{Client: togglClient, Workspace: cfg.Toggl.Workspace},
		Reference: inspect.JiraReference{Client: jiraClient, Author: cfg.Jira.Username},
		Projects:  cfg.ProjectSettings(),
		Bin:       a.bin,
		Metrics:   a.metrics,
		Logger:    logger,
	}
	a.executor = &executor.Executor{
		Source:    togglClient,
		Reference: jiraClient,
		Metrics:   a.metrics,
		Logger:    logger.With().Str("component", "executor").Logger(),
	}

	if withStore {
		store, err := storage.OpenSQLite(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.executor.Store = store
	}

	return a, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// window returns the configured rolling window shifted by delta days.
func (a *app) window(delta int) timeutil.Window {
	return timeutil.RollingWindow(time.Now(), a.cfg.Window.Days, delta, a.bin)
}

// openStoreFromConfig opens the run database without requiring credentials.
func openStoreFromConfig(explicitPath string) (*storage.SQLiteStore, string, error) {
	path := strings.TrimSpace(explicitPath)
	if path == "" {
		path = viper.GetString(config.KeyDatabase)
	}
	if path == "" {
		return nil, "", fmt.Errorf("no database path configured")
	}
	store, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, path, err
	}
	return store, path, nil
}

func formatWindow(window timeutil.Window) string {
	return fmt.Sprintf("%s - %s", window.From.Format("2006-01-02 15:04"), window.To.Format("2006-01-02 15:04"))
}

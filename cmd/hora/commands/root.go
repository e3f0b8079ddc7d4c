package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hora/internal/config"
	"hora/internal/ics"
	"hora/internal/store"
	"hora/pkg/logx"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "hora",
	Short: "Constraint-based personal event scheduler",
	Long: `hora plans your day: it reads declared events, recurring chores and
calendar feeds from a config file, solves them into a conflict-free
timetable, and stores the result as tags in a local SQLite database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./hora.yaml", "path to config file")
}

// app bundles everything a command needs after config load.
type app struct {
	cfg     *config.Config
	manager *config.Manager
	store   *store.Store
	fetcher *ics.Fetcher
	log     logx.Logger
	loc     *time.Location

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func setup() (*app, error) {
	m := config.NewManager(cfgPath)
	cfg, err := m.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	log, closeLog := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	m.SetLogger(log)

	loc, err := cfg.Location()
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	busy, err := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	st, err := store.Open(store.Config{Path: cfg.Store.Path, BusyTimeout: busy}, log)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{
		cfg:     cfg,
		manager: m,
		store:   st,
		fetcher: ics.NewFetcher(cfg.CacheDir(), log),
		log:     log,
		loc:     loc,
		closers: []func() error{closeLog, st.Close},
	}, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/auth"
	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/fieldsync"
	"github.com/jonathan/apply-agent/internal/logging"
	"github.com/jonathan/apply-agent/internal/observability"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/storage"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

// app holds what every command shares. Storage is opened on first use so
// commands that never touch it do not need a database.
type app struct {
	cfg     *config.Config
	out     io.Writer
	logger  *zap.Logger
	printer *observability.Printer
	client  *remote.Client

	repo    *storage.Repository
	closers []func()
}

func newApp(out io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Verbose = true
	}

	logger := logging.New(logging.Options{File: cfg.Log.File, Verbose: cfg.Log.Verbose, JSON: cfg.Log.JSON})

	opts := cfg.RemoteOptions()
	opts.Logger = logger
	if cfg.Service.Secret != "" {
		signer, err := auth.NewSigner(cfg.Service.Secret, auth.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid service secret: %w", err)
		}
		opts.Signer = signer
	}

	return &app{
		cfg:     cfg,
		out:     out,
		logger:  logger,
		printer: observability.NewPrinter(out),
		client:  remote.NewClient(opts),
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// repository opens the storage tiers. With neither DATABASE_URL nor REDIS_URL set
// state lives in memory for the lifetime of the process.
func (a *app) repository(ctx context.Context) (*storage.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}

	sc := a.cfg.Storage
	fallback := storage.NewMemory(0)
	var primary storage.Store
	switch {
	case sc.DatabaseURL != "":
		pg, err := storage.ConnectPostgres(ctx, sc.DatabaseURL, sc.MaxItemBytes)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		primary = pg
		a.logger.Debug("storage: postgres primary")
	case sc.RedisURL != "":
		rd, err := storage.ConnectRedis(ctx, sc.RedisURL, sc.RedisPrefix, sc.MaxItemBytes)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rd.Close() })
		primary = rd
		a.logger.Debug("storage: redis primary")
	default:
		primary = storage.NewMemory(sc.MaxItemBytes)
		a.logger.Debug("storage: in-memory only")
	}

	tiered := storage.NewTiered(primary, fallback, a.logger)
	tiered.OnWarning = func(key string, err error) {
		a.logger.Warn("primary storage is full; value saved for this session only", zap.String("key", key), zap.Error(err))
	}
	a.repo = storage.NewRepository(tiered, sc.HistoryLimit)
	return a.repo, nil
}

func (a *app) loop(repo *storage.Repository, onProgress tailoring.ProgressCallback) *tailoring.Loop {
	opts := a.cfg.TailoringOptions()
	opts.History = repo
	opts.OnProgress = onProgress
	opts.Logger = a.logger
	return tailoring.NewLoop(a.client, opts)
}

func (a *app) syncer(repo *storage.Repository) *fieldsync.Syncer {
	return fieldsync.NewSyncer(repo, a.client, fieldsync.Options{
		Enabled: a.cfg.Storage.SyncEnabled,
		History: repo,
		Logger:  a.logger,
	})
}

// resumeText reads the master resume from path, or the configured resume_path.
func (a *app) resumeText(path string) (string, error) {
	if path == "" {
		path = a.cfg.ResumePath
	}
	if path == "" {
		return "", fmt.Errorf("no master resume: set resume_path in the config or pass --resume")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read resume: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (a *app) browserOptions(url string) (page.BrowserOptions, error) {
	ac := a.cfg.Autopilot
	var script string
	if ac.ScriptPath != "" {
		data, err := os.ReadFile(ac.ScriptPath)
		if err != nil {
			return page.BrowserOptions{}, fmt.Errorf("failed to read page script: %w", err)
		}
		script = string(data)
	}
	return page.BrowserOptions{
		URL:         url,
		Script:      script,
		Headless:    ac.Headless,
		ChromePath:  ac.ChromePath,
		UserDataDir: ac.UserDataDir,
		CallTimeout: ac.PageTimeout.Std(),
		Logger:      a.logger,
	}, nil
}

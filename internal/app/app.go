// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/internal/analysis"
	"github.com/sitegrain/sitegrain/internal/assets"
	"github.com/sitegrain/sitegrain/internal/component"
	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/internal/crawler"
	"github.com/sitegrain/sitegrain/internal/fetcher"
	"github.com/sitegrain/sitegrain/internal/frontier"
	"github.com/sitegrain/sitegrain/internal/politeness"
	"github.com/sitegrain/sitegrain/internal/retry"
	"github.com/sitegrain/sitegrain/internal/storage"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// Application holds all run dependencies and manages their lifecycle.
//
// It is created once at startup and shared across CLI commands. Use
// Close() for resource cleanup on shutdown.
type Application struct {
	Config     *config.Config
	Logger     *zerolog.Logger
	HTTPClient *http.Client
	Politeness *politeness.Controller
	Fetcher    *fetcher.Fetcher
	Store      *storage.Store
	startTime  time.Time
}

// New creates and initializes an Application: logger, HTTP client,
// politeness controller, fetcher, and output store. If any step fails an
// error is returned and no resources are held.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.NewConsoleWriter()
	}
	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	pol := politeness.New(httpClient, cfg.UserAgent, cfg.HostDelay)

	retryCfg := retry.Config{
		MaxAttempts:    cfg.MaxRetries + 1,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     2.0,
	}
	f := fetcher.New(pol, cfg.HTTPTimeout, cfg.MaxRedirects, retryCfg, cfg.UserAgent)

	store, err := storage.New(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:     cfg,
		Logger:     &logger,
		HTTPClient: httpClient,
		Politeness: pol,
		Fetcher:    f,
		Store:      store,
		startTime:  time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// Crawl runs a full crawl from seedURL followed by the structural
// analysis pass, and persists everything to the output store. onPage, if
// non-nil, is invoked for each finalized page as the crawl progresses.
func (a *Application) Crawl(ctx context.Context, seedURL string, onPage func(*models.Page)) (*models.CrawlResult, error) {
	// The frontier's visited set keys on canonical URLs, so the seed
	// must go through the same normalization as every discovered link.
	seed, err := frontier.Normalize(seedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("seed URL: %w", err)
	}

	fr, err := frontier.New(a.Config, seed)
	if err != nil {
		return nil, err
	}

	engine := crawler.New(a.Config, fr, a.Fetcher, seed)
	if onPage != nil {
		engine.OnPage(onPage)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	result.Analysis, err = analysis.Analyze(ctx, a.Config, result.Pages, component.NewDetector(a.Config))
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	if a.Config.DownloadAssets {
		dl := assets.New(a.HTTPClient, a.Config.UserAgent, a.Config.OutputDir, a.Config.MaxConcurrent)
		for _, r := range dl.DownloadAll(ctx, result.Pages) {
			if r.Err != nil {
				a.Logger.Warn().Str("url", r.URL).Err(r.Err).Msg("Asset download failed")
			}
		}
	}

	if err := a.persist(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Analyze re-runs clustering and component detection over a previously
// stored crawl, honoring the current thresholds, and rewrites the stored
// analysis.
func (a *Application) Analyze(ctx context.Context, dir string) (*models.CrawlResult, error) {
	pages, err := storage.LoadPages(dir)
	if err != nil {
		return nil, err
	}

	// Results belong next to the crawl they describe, not in the
	// default output directory.
	store, err := storage.New(dir)
	if err != nil {
		return nil, err
	}
	a.Store = store

	res, err := analysis.Analyze(ctx, a.Config, pages, component.NewDetector(a.Config))
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	result := &models.CrawlResult{Pages: pages, Analysis: res}
	if err := a.persist(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Application) persist(result *models.CrawlResult) error {
	if err := a.Store.SavePages(result.Pages); err != nil {
		return err
	}
	if result.Analysis != nil {
		if err := a.Store.SaveAnalysis(result.Analysis); err != nil {
			return err
		}
	}
	if result.Summary != nil {
		if err := a.Store.SaveSummary(result.Summary); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the application's resources. Any errors during
// shutdown are logged but do not interrupt the remaining steps.
func (a *Application) Close(ctx context.Context) error {
	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}
	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/cachemanager"
	"github.com/zjrosen/tabfetch/internal/config"
	"github.com/zjrosen/tabfetch/internal/fetch"
	"github.com/zjrosen/tabfetch/internal/jobs"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/tracing"
)

// runtime holds the pieces shared by the TUI and the headless command: the
// bridge, the job runner feeding it, and the tracing provider.
type runtime struct {
	bridge   *browser.Bridge
	runner   *jobs.Runner
	provider *tracing.Provider
}

func newRuntime(cfg config.Config) (*runtime, error) {
	provider, err := tracing.NewProvider(cfg.Tracing.TracerConfig())
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	opts := cfg.Fetch.ClientOptions()
	if cfg.Cache.Enabled {
		opts.FaviconCache = cachemanager.NewInMemoryCacheManager[string, []byte](
			"favicons",
			cfg.Cache.FaviconTTL,
			cachemanager.DefaultCleanupInterval,
		)
		opts.FaviconTTL = cfg.Cache.FaviconTTL
	}

	bridge := browser.NewBridge()
	runner := jobs.NewRunner(
		fetch.NewClient(opts),
		bridge,
		jobs.WithTracer(provider.Tracer()),
		jobs.WithSettings(cfg.Fetch.JobSettings()),
	)

	return &runtime{bridge: bridge, runner: runner, provider: provider}, nil
}

// Close cancels in-flight jobs, closes the bridge and flushes spans.
func (r *runtime) Close() {
	r.runner.Close()
	r.bridge.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.provider.Shutdown(ctx); err != nil {
		log.Warn(log.CatTrace, "Tracer shutdown failed", "error", err)
	}
}

// debugEnabled reports whether config, flag or TABFETCH_DEBUG asks for the
// debug log.
func debugEnabled(cfg config.Config) bool {
	return cfg.Debug || os.Getenv("TABFETCH_DEBUG") != ""
}

// initLogging installs the file logger when debug is enabled. The returned
// cleanup is never nil.
func initLogging(cfg config.Config) (func(), error) {
	if !debugEnabled(cfg) {
		return func() {}, nil
	}

	path := cfg.LogFile
	if env := os.Getenv("TABFETCH_LOG"); env != "" {
		path = env
	}
	cleanup, err := log.Init(path, log.DefaultBufferSize)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "tabfetch starting", "version", version, "logPath", path)
	return cleanup, nil
}

package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/extract"
	"github.com/sells-group/pipeline-import/internal/importer"
	"github.com/sells-group/pipeline-import/internal/ingest"
	"github.com/sells-group/pipeline-import/internal/match"
	"github.com/sells-group/pipeline-import/internal/metrics"
	"github.com/sells-group/pipeline-import/internal/report"
	"github.com/sells-group/pipeline-import/internal/store"
	anthropicpkg "github.com/sells-group/pipeline-import/pkg/anthropic"
)

// appEnv holds the store and services shared by the parse, import, and
// serve commands.
type appEnv struct {
	Store    store.Store
	Ingest   *ingest.Service
	Importer *importer.Service
	Metrics  *metrics.Recorder
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the settings for mode, opens the store, and applies
// the schema.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv builds the services for mode. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	matcher := match.NewBatchMatcher(st, cfg.Match)
	return &appEnv{
		Store:    st,
		Ingest:   ingest.NewService(report.NewParser(), newExtractor(), matcher, rec),
		Importer: importer.NewService(st, cfg.Import.DefaultVertical, rec),
		Metrics:  rec,
	}, nil
}

// newExtractor returns the Claude extractor, or nil when no API key is
// configured. Without one only CSV reports can be parsed.
func newExtractor() extract.Extractor {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("PIPELINE_ANTHROPIC_KEY not set, only CSV reports can be parsed")
		return nil
	}
	var opts []option.RequestOption
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	// Retries are handled by the extractor.
	opts = append(opts, option.WithMaxRetries(0))
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
	return extract.NewClaudeExtractor(client, cfg.Anthropic)
}

// Package api serves the sales-report parse, import, and history endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/importer"
	"github.com/sells-group/pipeline-import/internal/ingest"
	"github.com/sells-group/pipeline-import/internal/metrics"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/store"
)

const defaultMaxBodyBytes = 25 << 20

// Parser turns an upload into an enriched report.
type Parser interface {
	Parse(ctx context.Context, req ingest.Request) (*ingest.Response, error)
}

// Importer previews or executes an import.
type Importer interface {
	Import(ctx context.Context, report *model.ExtractedSalesReport, opts model.ImportOptions, method model.ParsingMethod) (*importer.Outcome, error)
}

// History reads past import audit rows.
type History interface {
	ListImports(ctx context.Context, filter store.ImportFilter) ([]model.SalesReportImport, int, error)
	GetImport(ctx context.Context, id string) (*model.SalesReportImport, error)
	Ping(ctx context.Context) error
}

// Deps holds everything the router serves.
type Deps struct {
	Parser         Parser
	Importer       Importer
	History        History
	Metrics        *metrics.Recorder
	ImportDefaults model.ImportOptions
	CORSOrigins    []string
	MaxBodyBytes   int64
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &handler{deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/sales-reports", func(r chi.Router) {
		r.Post("/parse", h.parse)
		r.Post("/import", h.importReport)
		r.Get("/imports", h.listImports)
		r.Get("/imports/{id}", h.getImport)
	})
	return r
}

// requestLogger writes one zap line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

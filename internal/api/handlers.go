package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/importer"
	"github.com/sells-group/pipeline-import/internal/ingest"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/store"
)

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.History.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) parse(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.deps.Parser.Parse(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// importOptions mirrors model.ImportOptions with every field optional.
type importOptions struct {
	CreateNewClients *bool `json:"createNewClients"`
	UpdateExisting   *bool `json:"updateExisting"`
	CreateTasks      *bool `json:"createTasks"`
	DryRun           *bool `json:"dryRun"`
}

func (o importOptions) withDefaults(def model.ImportOptions) model.ImportOptions {
	pick := func(v *bool, d bool) bool {
		if v == nil {
			return d
		}
		return *v
	}
	return model.ImportOptions{
		CreateNewClients: pick(o.CreateNewClients, def.CreateNewClients),
		UpdateExisting:   pick(o.UpdateExisting, def.UpdateExisting),
		CreateTasks:      pick(o.CreateTasks, def.CreateTasks),
		DryRun:           pick(o.DryRun, def.DryRun),
	}
}

type importRequest struct {
	ExtractedReport *model.ExtractedSalesReport `json:"extractedReport"`
	Options         importOptions               `json:"options"`
	ParsingMethod   model.ParsingMethod         `json:"parsingMethod"`
}

func (h *handler) importReport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ExtractedReport == nil {
		writeError(w, http.StatusBadRequest, "extractedReport is required")
		return
	}
	rpt := canonicalReport(req.ExtractedReport)

	out, err := h.deps.Importer.Import(r.Context(), rpt, req.Options.withDefaults(h.deps.ImportDefaults), req.ParsingMethod)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// canonicalReport normalizes owner spelling, drops unknown stages, and
// rebuilds the derived totals of a client-supplied report.
func canonicalReport(rpt *model.ExtractedSalesReport) *model.ExtractedSalesReport {
	for i := range rpt.AllDeals {
		d := &rpt.AllDeals[i]
		if o, ok := model.ParseSalesOwner(string(d.Owner)); ok {
			d.Owner = o
		}
		if d.StageMapped != nil && !d.StageMapped.Valid() {
			d.StageMapped = nil
		}
	}
	rpt.Finalize()
	return rpt
}

// importView is an audit row as the history endpoints return it.
type importView struct {
	model.SalesReportImport
	HasErrors     bool            `json:"hasErrors"`
	RawExtraction json.RawMessage `json:"rawExtraction,omitempty"`
}

type importList struct {
	Imports []importView `json:"imports"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

func (h *handler) listImports(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter = filter.Normalize()

	rows, total, err := h.deps.History.ListImports(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := importList{Imports: make([]importView, 0, len(rows)), Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for _, imp := range rows {
		out.Imports = append(out.Imports, importView{SalesReportImport: imp, HasErrors: imp.HasErrors()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getImport(w http.ResponseWriter, r *http.Request) {
	imp, err := h.deps.History.GetImport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importView{
		SalesReportImport: *imp,
		HasErrors:         imp.HasErrors(),
		RawExtraction:     imp.RawExtraction,
	})
}

func parseFilter(r *http.Request) (store.ImportFilter, error) {
	var f store.ImportFilter
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.New(p.name + " must be a non-negative integer")
		}
		*p.dst = n
	}
	return f, nil
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps an error to its HTTP status.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr *ingest.InputError
		extErr   *ingest.ExtractionError
	)
	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Msg)
	case errors.Is(err, importer.ErrEmptyReport):
		writeError(w, http.StatusBadRequest, "report has no deals to import")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &extErr):
		zap.L().Error("api: extraction failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("upstream_status", extErr.StatusCode),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success":        false,
			"error":          "report extraction failed, try again or upload a CSV export",
			"upstreamStatus": extErr.StatusCode,
		})
	default:
		zap.L().Error("api: request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

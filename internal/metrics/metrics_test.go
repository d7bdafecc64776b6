package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-import/internal/model"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveParse(t *testing.T) {
	r := New()
	r.ObserveParse(model.ParsingCSV, nil)
	r.ObserveParse(model.ParsingCSV, nil)
	r.ObserveParse("", errors.New("binary"))

	body := scrape(t, r)
	assert.Contains(t, body, `pipeline_import_parse_requests_total{method="csv-parser",outcome="ok"} 2`)
	assert.Contains(t, body, `pipeline_import_parse_requests_total{method="none",outcome="error"} 1`)
}

func TestObserveImport(t *testing.T) {
	r := New()
	r.ObservePreview()
	r.ObserveImport(&model.ImportResult{
		State: model.ImportPartialFailure,
		Deals: []model.DealOutcome{
			{DealName: "a", Action: model.PlanCreate},
			{DealName: "b", Action: model.PlanUpdate},
			{DealName: "c", Action: model.PlanCreate, Error: "boom"},
		},
	})

	body := scrape(t, r)
	assert.Contains(t, body, `pipeline_import_import_runs_total{mode="preview",state="PREVIEWED"} 1`)
	assert.Contains(t, body, `pipeline_import_import_runs_total{mode="commit",state="PARTIAL_FAILURE"} 1`)
	assert.Contains(t, body, `pipeline_import_deal_outcomes_total{action="create",result="ok"} 1`)
	assert.Contains(t, body, `pipeline_import_deal_outcomes_total{action="create",result="error"} 1`)
	assert.Contains(t, body, `pipeline_import_deal_outcomes_total{action="update",result="ok"} 1`)
}

func TestObserveExtraction(t *testing.T) {
	r := New()
	r.ObserveExtraction("image", 2*time.Second)

	assert.Contains(t, scrape(t, r), `pipeline_import_extraction_duration_seconds_count{mode="image"} 1`)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveParse(model.ParsingCSV, nil)
		r.ObserveExtraction("text", time.Second)
		r.ObservePreview()
		r.ObserveImport(&model.ImportResult{})
	})
}

package importer

import (
	"context"
	"errors"

	"github.com/sells-group/pipeline-import/internal/metrics"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/store"
)

// ErrEmptyReport is returned when an import is requested for a report
// without deals.
var ErrEmptyReport = errors.New("importer: report has no deals")

// Outcome holds either the dry-run preview or the executed result.
type Outcome struct {
	Preview *model.ImportPreview `json:"preview,omitempty" yaml:"preview,omitempty"`
	Result  *model.ImportResult  `json:"result,omitempty" yaml:"result,omitempty"`
}

// Service routes an import request to the planner or the executor.
type Service struct {
	planner  *Planner
	executor *Executor
	metrics  *metrics.Recorder
}

// NewService creates a Service over st. rec may be nil.
func NewService(st store.Store, defaultVertical string, rec *metrics.Recorder) *Service {
	return &Service{
		planner:  NewPlanner(st),
		executor: NewExecutor(st, defaultVertical),
		metrics:  rec,
	}
}

// Import previews report when opts.DryRun is set and executes it otherwise.
func (s *Service) Import(ctx context.Context, report *model.ExtractedSalesReport, opts model.ImportOptions, method model.ParsingMethod) (*Outcome, error) {
	if report == nil || len(report.AllDeals) == 0 {
		return nil, ErrEmptyReport
	}

	if opts.DryRun {
		preview, err := s.planner.Plan(ctx, report, opts)
		if err != nil {
			return nil, err
		}
		s.metrics.ObservePreview()
		return &Outcome{Preview: preview}, nil
	}

	res, err := s.executor.Execute(ctx, report, opts, method)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveImport(res)
	return &Outcome{Result: res}, nil
}

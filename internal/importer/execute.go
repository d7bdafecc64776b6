package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/store"
)

// Executor applies a report to the client registry.
type Executor struct {
	store           store.Store
	defaultVertical string
	now             func() time.Time // injectable for testing
}

// NewExecutor creates an Executor. New clients get defaultVertical since
// reports carry no vertical.
func NewExecutor(st store.Store, defaultVertical string) *Executor {
	return &Executor{
		store:           st,
		defaultVertical: defaultVertical,
		now:             time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Executor) WithNow(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute writes every deal of report in order inside one transaction and
// records an audit row. A failing deal is rolled back to its savepoint,
// recorded in the result errors, and the run continues. Only a failure of
// the transaction itself is returned as an error, in which case nothing is
// persisted.
func (e *Executor) Execute(ctx context.Context, report *model.ExtractedSalesReport, opts model.ImportOptions, method model.ParsingMethod) (*model.ImportResult, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, eris.Wrap(err, "importer: encode report")
	}
	importedAt := e.now().UTC()

	res := &model.ImportResult{
		ImportID: uuid.New().String(),
		State:    model.ImportExecuting,
		Deals:    make([]model.DealOutcome, 0, len(report.AllDeals)),
		Errors:   []string{},
	}

	log := zap.L().With(zap.String("import_id", res.ImportID), zap.String("file", report.FileName))
	log.Info("importer: executing", zap.Int("deals", len(report.AllDeals)))

	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		// Client ids written so far, by deal name. Sub-deals link to their
		// parent through it and repeated unmatched names reuse the client.
		written := make(map[string]string, len(report.AllDeals))

		for _, d := range report.AllDeals {
			out := model.DealOutcome{DealName: d.DealName}
			err := tx.Savepoint(ctx, func(sp store.Tx) error {
				var err error
				out, err = e.applyDeal(ctx, sp, d, opts, written, importedAt)
				return err
			})
			if store.IsTxError(err) {
				return err
			}
			if err != nil {
				msg := fmt.Sprintf("Deal %q: %v", d.DealName, err)
				log.Warn("importer: deal failed", zap.String("deal", d.DealName), zap.Error(err))
				out = model.DealOutcome{DealName: d.DealName, Action: out.Action, Error: msg}
				res.Errors = append(res.Errors, msg)
				res.Deals = append(res.Deals, out)
				continue
			}

			switch out.Action {
			case model.PlanCreate:
				res.ClientsCreated++
			case model.PlanUpdate:
				res.ClientsUpdated++
			case model.PlanSkip:
				res.DealsSkipped++
			}
			if out.TaskID != "" {
				res.TasksCreated++
			}
			if out.ClientID != "" && out.Action != model.PlanSkip {
				written[d.DealName] = out.ClientID
			}
			res.Deals = append(res.Deals, out)
		}

		res.DealsImported = res.ClientsCreated + res.ClientsUpdated
		res.Warnings = warnings(report, res.DealsSkipped, "were skipped")
		res.Success = len(res.Errors) == 0
		res.State = model.ImportCommitted
		if !res.Success {
			res.State = model.ImportPartialFailure
		}

		return tx.InsertImport(ctx, &model.SalesReportImport{
			ID:             res.ImportID,
			FileName:       report.FileName,
			ReportDate:     report.ReportDate,
			ParsingMethod:  method,
			State:          res.State,
			DealsTotal:     len(report.AllDeals),
			DealsImported:  res.DealsImported,
			ClientsCreated: res.ClientsCreated,
			ClientsUpdated: res.ClientsUpdated,
			DealsSkipped:   res.DealsSkipped,
			TasksCreated:   res.TasksCreated,
			RawExtraction:  raw,
			Errors:         res.Errors,
			Warnings:       res.Warnings,
			CreatedAt:      importedAt,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "importer: execute")
	}

	log.Info("importer: committed",
		zap.String("state", string(res.State)),
		zap.Int("created", res.ClientsCreated),
		zap.Int("updated", res.ClientsUpdated),
		zap.Int("skipped", res.DealsSkipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// applyDeal performs the writes for one deal. The returned outcome is only
// meaningful when err is nil, except for Action.
func (e *Executor) applyDeal(ctx context.Context, tx store.Tx, d model.ExtractedDeal, opts model.ImportOptions, written map[string]string, importedAt time.Time) (model.DealOutcome, error) {
	out := model.DealOutcome{DealName: d.DealName}

	var parentID *string
	if d.IsSubDeal && d.ParentDealName != "" {
		if id, ok := written[d.ParentDealName]; ok {
			parentID = &id
		}
	}

	target := d.MatchedClientID
	update := target != "" && opts.UpdateExisting
	if target == "" && opts.CreateNewClients {
		if id, ok := written[d.DealName]; ok {
			target, update = id, true
		}
	}

	switch {
	case update:
		out.Action = model.PlanUpdate
		if parentID != nil && *parentID == target {
			parentID = nil
		}
		err := tx.UpdateClientPipeline(ctx, target, model.PipelineUpdate{
			SalesOwner:     d.Owner,
			SalesStage:     d.StageMapped,
			DealValue:      d.ValueParsed,
			NextStep:       d.NextStep,
			ParentClientID: parentID,
			ImportedAt:     importedAt,
		})
		if err != nil {
			return out, err
		}
		out.ClientID = target
	case d.MatchedClientID == "" && opts.CreateNewClients:
		out.Action = model.PlanCreate
		c := &model.Client{
			Name:           d.DealName,
			Vertical:       e.defaultVertical,
			SalesOwner:     d.Owner,
			SalesStage:     d.StageMapped,
			DealValue:      d.ValueParsed,
			NextStep:       d.NextStep,
			ParentClientID: parentID,
			Source:         model.SourceSalesReport,
			LastImportedAt: &importedAt,
			CreatedAt:      importedAt,
		}
		if err := tx.InsertClient(ctx, c); err != nil {
			return out, err
		}
		out.ClientID = c.ID
	default:
		out.Action = model.PlanSkip
		return out, nil
	}

	if d.Task != nil && opts.CreateTasks {
		task := &model.SalesTask{
			ClientID:    out.ClientID,
			Title:       taskTitle(d),
			DueDate:     d.Task.DueDate,
			DueDateText: d.Task.DueDateText,
			Priority:    d.Task.Priority,
			IsOverdue:   d.Task.IsOverdue,
			Owner:       d.Owner,
			Source:      model.SourceSalesReport,
			CreatedAt:   importedAt,
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return out, err
		}
		out.TaskID = task.ID
	}
	return out, nil
}

func taskTitle(d model.ExtractedDeal) string {
	if d.Task.Description != "" {
		return d.Task.Description
	}
	return "Follow up: " + d.DealName
}

// Package importer turns an enriched sales report into client registry
// writes. Planning is read-only; execution runs every deal plus the audit
// row in one transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/store"
)

// Skip reasons.
const (
	reasonNoMatch        = "No match found and create new disabled"
	reasonUpdateDisabled = "Matched existing client and update existing disabled"
	reasonClientMissing  = "Matched client no longer exists"
)

// ClientReader looks up a single client.
type ClientReader interface {
	GetClient(ctx context.Context, id string) (*model.Client, error)
}

// Planner computes what an import would do without writing anything.
type Planner struct {
	clients ClientReader
}

// NewPlanner creates a Planner reading current client rows from clients.
func NewPlanner(clients ClientReader) *Planner {
	return &Planner{clients: clients}
}

// Plan returns the dry-run preview of importing report with opts.
func (p *Planner) Plan(ctx context.Context, report *model.ExtractedSalesReport, opts model.ImportOptions) (*model.ImportPreview, error) {
	preview := &model.ImportPreview{
		State:      model.ImportPreviewed,
		FileName:   report.FileName,
		Deals:      make([]model.DealPlan, 0, len(report.AllDeals)),
		TotalValue: report.TotalValue,
	}

	// Clients this plan creates, by deal name. A later unmatched deal with
	// the same name updates the client instead of creating a duplicate.
	pending := make(map[string]*model.Client)

	for _, d := range report.AllDeals {
		dp := model.DealPlan{DealName: d.DealName, Owner: d.Owner}

		switch {
		case d.MatchedClientID != "" && opts.UpdateExisting:
			c, err := p.clients.GetClient(ctx, d.MatchedClientID)
			if errors.Is(err, store.ErrNotFound) {
				dp.Action = model.PlanSkip
				dp.ClientID = d.MatchedClientID
				dp.Reason = reasonClientMissing
				break
			}
			if err != nil {
				return nil, eris.Wrapf(err, "importer: plan deal %q", d.DealName)
			}
			dp.Action = model.PlanUpdate
			dp.ClientID = c.ID
			dp.ClientName = c.Name
			dp.Changes = diffClient(c, d)
		case d.MatchedClientID != "":
			dp.Action = model.PlanSkip
			dp.ClientID = d.MatchedClientID
			dp.Reason = reasonUpdateDisabled
		case opts.CreateNewClients && pending[d.DealName] != nil:
			c := pending[d.DealName]
			dp.Action = model.PlanUpdate
			dp.ClientName = c.Name
			dp.Changes = diffClient(c, d)
			mergeDeal(c, d)
		case opts.CreateNewClients:
			dp.Action = model.PlanCreate
			dp.ClientName = d.DealName
			c := &model.Client{Name: d.DealName}
			mergeDeal(c, d)
			pending[d.DealName] = c
		default:
			dp.Action = model.PlanSkip
			dp.Reason = reasonNoMatch
		}

		dp.HasTask = d.Task != nil && opts.CreateTasks && dp.Action != model.PlanSkip
		if dp.HasTask {
			preview.TasksToCreate++
		}

		switch dp.Action {
		case model.PlanCreate:
			preview.ToCreate++
		case model.PlanUpdate:
			preview.ToUpdate++
		case model.PlanSkip:
			preview.ToSkip++
		}
		preview.Deals = append(preview.Deals, dp)
	}

	preview.Warnings = warnings(report, preview.ToSkip, "will be skipped")
	return preview, nil
}

// warnings lists the non-blocking observations about a run.
func warnings(report *model.ExtractedSalesReport, skipped int, skipVerb string) []string {
	out := []string{}
	if skipped > 0 {
		out = append(out, fmt.Sprintf("%d deals %s", skipped, skipVerb))
	}
	noValue := 0
	noStage := 0
	for _, d := range report.AllDeals {
		if d.ValueParsed == nil {
			noValue++
		}
		if d.StageMapped == nil {
			noStage++
		}
	}
	if noValue > 0 {
		out = append(out, fmt.Sprintf("%d deals have no parsed value", noValue))
	}
	if noStage > 0 {
		out = append(out, fmt.Sprintf("%d deals have no recognized stage", noStage))
	}
	return out
}

// diffClient lists the pipeline fields an update from d would change on c.
// Fields the deal leaves empty are not written and so never appear.
func diffClient(c *model.Client, d model.ExtractedDeal) []model.FieldChange {
	var changes []model.FieldChange
	add := func(field, from, to string) {
		if from != to {
			changes = append(changes, model.FieldChange{Field: field, From: from, To: to})
		}
	}

	if d.Owner != "" {
		add("salesOwner", string(c.SalesOwner), string(d.Owner))
	}
	if d.StageMapped != nil {
		from := ""
		if c.SalesStage != nil {
			from = string(*c.SalesStage)
		}
		add("salesStage", from, string(*d.StageMapped))
	}
	if d.ValueParsed != nil {
		from := ""
		if c.DealValue != nil {
			from = formatValue(*c.DealValue)
		}
		add("dealValue", from, formatValue(*d.ValueParsed))
	}
	if d.NextStep != nil {
		from := ""
		if c.NextStep != nil {
			from = *c.NextStep
		}
		add("nextStep", from, *d.NextStep)
	}
	return changes
}

// mergeDeal applies the pipeline fields an import writes from d onto c.
func mergeDeal(c *model.Client, d model.ExtractedDeal) {
	if d.Owner != "" {
		c.SalesOwner = d.Owner
	}
	if d.StageMapped != nil {
		c.SalesStage = d.StageMapped
	}
	if d.ValueParsed != nil {
		c.DealValue = d.ValueParsed
	}
	if d.NextStep != nil {
		c.NextStep = d.NextStep
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

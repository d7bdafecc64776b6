package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/model"
)

// ClientLister reads the full client registry.
type ClientLister interface {
	ListClients(ctx context.Context) ([]model.Client, error)
}

// BatchMatcher matches every deal of a report against one registry snapshot.
type BatchMatcher struct {
	clients ClientLister
	matcher *Matcher
}

// NewBatchMatcher creates a BatchMatcher reading candidates from clients.
func NewBatchMatcher(clients ClientLister, th Thresholds) *BatchMatcher {
	return &BatchMatcher{clients: clients, matcher: NewMatcher(th)}
}

// BatchMatchDeals loads the registry once and returns the candidate matches
// for each deal name. Every input name has an entry, possibly empty.
func (b *BatchMatcher) BatchMatchDeals(ctx context.Context, dealNames []string) (map[string][]model.ClientMatch, error) {
	clients, err := b.clients.ListClients(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "match: load clients")
	}

	out := make(map[string][]model.ClientMatch, len(dealNames))
	for _, name := range dealNames {
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = b.matcher.FindMatchingClients(name, clients)
	}

	zap.L().Debug("match: batch complete",
		zap.Int("deals", len(dealNames)),
		zap.Int("clients", len(clients)),
	)
	return out, nil
}

// Enrich returns a copy of report whose deals carry their top match and the
// suggested action. The input report is not modified. The matched client id
// is set only when the suggested action is use_match.
func (b *BatchMatcher) Enrich(report *model.ExtractedSalesReport, matches map[string][]model.ClientMatch) *model.ExtractedSalesReport {
	out := *report
	out.AllDeals = make([]model.ExtractedDeal, len(report.AllDeals))

	for i, d := range report.AllDeals {
		cands := matches[d.DealName]
		d.ImportAction = b.matcher.SuggestedAction(cands)
		d.MatchedClientID = ""
		d.MatchConfidence = ""
		if len(cands) > 0 {
			d.MatchConfidence = cands[0].Confidence
			if d.ImportAction == model.ActionUseMatch {
				d.MatchedClientID = cands[0].ClientID
			}
		}
		out.AllDeals[i] = d
	}

	out.Finalize()
	return &out
}

// DealNames returns the deal names of report in file order.
func DealNames(report *model.ExtractedSalesReport) []string {
	names := make([]string, 0, len(report.AllDeals))
	for _, d := range report.AllDeals {
		names = append(names, d.DealName)
	}
	return names
}

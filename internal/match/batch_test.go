package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-import/internal/model"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListClients(ctx context.Context) ([]model.Client, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.Client), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestBatchMatchDeals_LoadsRegistryOnce(t *testing.T) {
	lister := &mockLister{}
	lister.On("ListClients", mock.Anything).Return(clients("Acme", "Saatchi (Toyota)"), nil).Once()

	bm := NewBatchMatcher(lister, DefaultThresholds())
	got, err := bm.BatchMatchDeals(context.Background(), []string{"Acme Inc", "Saatchi", "Unknown Co", "Acme Inc"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	require.Len(t, got["Acme Inc"], 1)
	assert.Equal(t, model.ConfidenceExact, got["Acme Inc"][0].Confidence)
	require.Len(t, got["Saatchi"], 1)
	assert.Equal(t, 85, got["Saatchi"][0].Score)
	assert.Empty(t, got["Unknown Co"])
	lister.AssertExpectations(t)
}

func TestBatchMatchDeals_ListError(t *testing.T) {
	lister := &mockLister{}
	lister.On("ListClients", mock.Anything).Return(nil, errors.New("conn refused"))

	bm := NewBatchMatcher(lister, DefaultThresholds())
	_, err := bm.BatchMatchDeals(context.Background(), []string{"Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match: load clients")
}

func TestEnrich_CopiesReport(t *testing.T) {
	report := &model.ExtractedSalesReport{
		FileName: "pipeline.csv",
		AllDeals: []model.ExtractedDeal{
			{DealName: "Acme Inc", Owner: model.OwnerAlex},
			{DealName: "Brightline", Owner: model.OwnerSam},
			{DealName: "New Prospect", Owner: model.OwnerSam},
		},
	}
	matches := map[string][]model.ClientMatch{
		"Acme Inc":   {{ClientID: "c1", Confidence: model.ConfidenceExact, Score: 100}},
		"Brightline": {{ClientID: "c2", Confidence: model.ConfidenceFuzzy, Score: 54}},
	}

	bm := NewBatchMatcher(&mockLister{}, DefaultThresholds())
	out := bm.Enrich(report, matches)

	require.Len(t, out.AllDeals, 3)
	assert.Equal(t, "c1", out.AllDeals[0].MatchedClientID)
	assert.Equal(t, model.ActionUseMatch, out.AllDeals[0].ImportAction)
	assert.Equal(t, model.ConfidenceExact, out.AllDeals[0].MatchConfidence)

	assert.Empty(t, out.AllDeals[1].MatchedClientID, "review matches are not linked")
	assert.Equal(t, model.ActionReview, out.AllDeals[1].ImportAction)
	assert.Equal(t, model.ConfidenceFuzzy, out.AllDeals[1].MatchConfidence)

	assert.Equal(t, model.ActionCreateNew, out.AllDeals[2].ImportAction)
	assert.Len(t, out.DealsByOwner[model.OwnerSam], 2)

	// The parsed report is untouched.
	for _, d := range report.AllDeals {
		assert.Empty(t, d.MatchedClientID)
		assert.Empty(t, d.ImportAction)
	}
}

func TestDealNames(t *testing.T) {
	report := &model.ExtractedSalesReport{AllDeals: []model.ExtractedDeal{{DealName: "B"}, {DealName: "A"}}}
	assert.Equal(t, []string{"B", "A"}, DealNames(report))
}

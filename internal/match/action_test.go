package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/pipeline-import/internal/model"
)

func TestSuggestedAction(t *testing.T) {
	tests := []struct {
		name    string
		matches []model.ClientMatch
		want    model.SuggestedAction
	}{
		{"no matches", nil, model.ActionCreateNew},
		{"exact", []model.ClientMatch{{Confidence: model.ConfidenceExact, Score: 100}}, model.ActionUseMatch},
		{"low fuzzy", []model.ClientMatch{{Confidence: model.ConfidenceFuzzy, Score: 62}}, model.ActionReview},
		{"strong partial", []model.ClientMatch{{Confidence: model.ConfidencePartial, Score: 85}}, model.ActionUseMatch},
		{"single mid partial", []model.ClientMatch{{Confidence: model.ConfidencePartial, Score: 70}}, model.ActionUseMatch},
		{"ambiguous", []model.ClientMatch{
			{Confidence: model.ConfidencePartial, Score: 75},
			{Confidence: model.ConfidenceFuzzy, Score: 55},
		}, model.ActionReview},
		{"exact beats ambiguity", []model.ClientMatch{
			{Confidence: model.ConfidenceExact, Score: 100},
			{Confidence: model.ConfidencePartial, Score: 85},
		}, model.ActionUseMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestedAction(tt.matches))
		})
	}
}

func TestMatcher_SuggestedActionUsesThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.ReviewBelowScore = 80
	m := NewMatcher(th)

	matches := []model.ClientMatch{{Confidence: model.ConfidencePartial, Score: 75}}
	assert.Equal(t, model.ActionUseMatch, SuggestedAction(matches))
	assert.Equal(t, model.ActionReview, m.SuggestedAction(matches))
}

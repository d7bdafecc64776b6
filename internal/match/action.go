package match

import "github.com/sells-group/pipeline-import/internal/model"

// SuggestedAction applies the default decision policy to matches.
func SuggestedAction(matches []model.ClientMatch) model.SuggestedAction {
	return suggestAction(matches, DefaultThresholds())
}

// SuggestedAction recommends how to handle a deal given its ordered matches.
func (m *Matcher) SuggestedAction(matches []model.ClientMatch) model.SuggestedAction {
	return suggestAction(matches, m.th)
}

func suggestAction(matches []model.ClientMatch, th Thresholds) model.SuggestedAction {
	if len(matches) == 0 {
		return model.ActionCreateNew
	}

	top := matches[0]
	switch {
	case top.Confidence == model.ConfidenceExact || top.Score >= th.UseMatchScore:
		return model.ActionUseMatch
	case len(matches) > 1 || top.Score < th.ReviewBelowScore:
		return model.ActionReview
	default:
		return model.ActionUseMatch
	}
}

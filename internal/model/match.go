package model

// MatchConfidence is the strategy tier that produced a client match.
type MatchConfidence string

const (
	ConfidenceExact   MatchConfidence = "exact"
	ConfidencePartial MatchConfidence = "partial"
	ConfidenceFuzzy   MatchConfidence = "fuzzy"
)

// SuggestedAction is the recommended handling for a deal given its matches.
type SuggestedAction string

const (
	ActionUseMatch  SuggestedAction = "use_match"
	ActionCreateNew SuggestedAction = "create_new"
	ActionReview    SuggestedAction = "review"
)

// ClientMatch is a candidate linkage between a deal and an existing client.
type ClientMatch struct {
	ClientID   string          `json:"clientId"`
	ClientName string          `json:"clientName"`
	Confidence MatchConfidence `json:"confidence"`
	Score      int             `json:"score"`
	Reason     string          `json:"reason"`
}

package match

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/sells-group/pipeline-import/internal/model"
)

// Thresholds holds the scoring constants used by the matcher and the
// suggested-action policy. Changing them changes import behavior.
type Thresholds struct {
	ExactScore          int     `mapstructure:"exact_score"`
	BaseNameScore       int     `mapstructure:"base_name_score"`
	MinBaseNameLength   int     `mapstructure:"min_base_name_length"`
	ContainmentWeight   float64 `mapstructure:"containment_weight"`
	MinContainmentScore int     `mapstructure:"min_containment_score"`
	MinSimilarity       float64 `mapstructure:"min_similarity"`
	FuzzyWeight         float64 `mapstructure:"fuzzy_weight"`
	MaxMatches          int     `mapstructure:"max_matches"`
	UseMatchScore       int     `mapstructure:"use_match_score"`
	ReviewBelowScore    int     `mapstructure:"review_below_score"`
}

// DefaultThresholds returns the production scoring constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExactScore:          100,
		BaseNameScore:       85,
		MinBaseNameLength:   2,
		ContainmentWeight:   70,
		MinContainmentScore: 50,
		MinSimilarity:       0.7,
		FuzzyWeight:         60,
		MaxMatches:          5,
		UseMatchScore:       85,
		ReviewBelowScore:    70,
	}
}

// Matcher scores deal names against client candidates.
type Matcher struct {
	th Thresholds
}

// NewMatcher creates a Matcher with the given thresholds.
func NewMatcher(th Thresholds) *Matcher {
	return &Matcher{th: th}
}

// Thresholds returns the matcher's scoring constants.
func (m *Matcher) Thresholds() Thresholds {
	return m.th
}

// FindMatchingClients matches dealName against clients using the default
// thresholds.
func FindMatchingClients(dealName string, clients []model.Client) []model.ClientMatch {
	return NewMatcher(DefaultThresholds()).FindMatchingClients(dealName, clients)
}

// FindMatchingClients returns up to MaxMatches candidates for dealName,
// ordered by descending score. Each candidate is scored by the first strategy
// that accepts it: exact, base name, containment, then edit distance. Ties
// keep the order of clients.
func (m *Matcher) FindMatchingClients(dealName string, clients []model.Client) []model.ClientMatch {
	matches := make([]model.ClientMatch, 0)

	deal := Normalize(dealName)
	if deal == "" || len(clients) == 0 {
		return matches
	}
	dealParts := SplitParentAndEndClient(dealName)

	for _, c := range clients {
		cand := Normalize(c.Name)
		if cand == "" {
			continue
		}
		if cm, ok := m.score(deal, dealParts, cand, c); ok {
			matches = append(matches, cm)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if m.th.MaxMatches > 0 && len(matches) > m.th.MaxMatches {
		matches = matches[:m.th.MaxMatches]
	}
	return matches
}

func (m *Matcher) score(deal string, dealParts NameParts, cand string, c model.Client) (model.ClientMatch, bool) {
	cm := model.ClientMatch{ClientID: c.ID, ClientName: c.Name}

	if deal == cand {
		cm.Confidence = model.ConfidenceExact
		cm.Score = m.th.ExactScore
		cm.Reason = "Exact name match"
		return cm, true
	}

	candParts := SplitParentAndEndClient(c.Name)
	if dealParts.BaseName != "" && dealParts.BaseName == candParts.BaseName &&
		utf8.RuneCountInString(dealParts.BaseName) > m.th.MinBaseNameLength {
		cm.Confidence = model.ConfidencePartial
		cm.Score = m.th.BaseNameScore
		cm.Reason = fmt.Sprintf("Same parent company %q", dealParts.BaseName)
		return cm, true
	}

	dealLen := utf8.RuneCountInString(deal)
	candLen := utf8.RuneCountInString(cand)
	if containsEither(deal, cand) {
		s := int(math.Round(float64(min(dealLen, candLen)) / float64(dealLen) * m.th.ContainmentWeight))
		if s >= m.th.MinContainmentScore {
			cm.Confidence = model.ConfidencePartial
			cm.Score = s
			cm.Reason = "Name contains the other"
			return cm, true
		}
	}

	sim := Similarity(deal, cand)
	if sim >= m.th.MinSimilarity {
		cm.Confidence = model.ConfidenceFuzzy
		cm.Score = int(math.Round(sim * m.th.FuzzyWeight))
		cm.Reason = fmt.Sprintf("Similar name (%.0f%% similar)", sim*100)
		return cm, true
	}

	return cm, false
}

func containsEither(a, b string) bool {
	return len(a) > 0 && len(b) > 0 && (strings.Contains(a, b) || strings.Contains(b, a))
}

// Similarity returns 1 - levenshtein(a, b)/max(len(a), len(b)), measured in
// runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	d := levenshtein.Distance(a, b, nil)
	return 1 - float64(d)/float64(longest)
}

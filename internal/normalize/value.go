// Package normalize converts free-text report cells into typed values.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/pipeline-import/internal/model"
)

var dealValueRe = regexp.MustCompile(`^([\d.]+)([MK]?)$`)

var valueStripper = strings.NewReplacer(
	" ", "",
	"\t", "",
	",", "",
	"$", "",
)

// ParseDealValue parses currency shorthand such as "$1.2M", "$500K", or
// "$950" into dollars. Unparseable input returns nil.
func ParseDealValue(text string) *float64 {
	cleaned := strings.ToUpper(valueStripper.Replace(strings.TrimSpace(text)))
	m := dealValueRe.FindStringSubmatch(cleaned)
	if m == nil {
		return nil
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}

	switch m[2] {
	case "M":
		n *= 1_000_000
	case "K":
		n *= 1_000
	}
	return &n
}

// stageRule maps a lowercase keyword to a stage. Rules are checked in order.
type stageRule struct {
	keyword string
	stage   model.SalesStage
}

var stageRules = []stageRule{
	{"discovery", model.StageDiscovery},
	{"intro", model.StageDiscovery},
	{"scoping", model.StageScoping},
	{"scope", model.StageScoping},
	{"spec", model.StageSpecProduction},
	{"test", model.StageSpecProduction},
	{"negotiat", model.StageNegotiation},
	{"proposal", model.StageProposalSent},
	{"won", model.StageClosedWon},
	{"lost", model.StageClosedLost},
}

// stageLabels are the canonical stage labels as they appear in reports.
var stageLabels = map[string]model.SalesStage{
	"discovery":       model.StageDiscovery,
	"scoping":         model.StageScoping,
	"spec production": model.StageSpecProduction,
	"negotiation":     model.StageNegotiation,
	"proposal sent":   model.StageProposalSent,
	"closed won":      model.StageClosedWon,
	"closed lost":     model.StageClosedLost,
}

var labelSeparators = strings.NewReplacer("_", " ", "-", " ")

// ExactStage maps text that is exactly a canonical stage label ("Spec
// Production", "closed_won") to its stage. Anything else returns nil.
func ExactStage(text string) *model.SalesStage {
	key := strings.Join(strings.Fields(labelSeparators.Replace(strings.ToLower(text))), " ")
	if s, ok := stageLabels[key]; ok {
		return &s
	}
	return nil
}

// MapStageToEnum maps stage text to a SalesStage. An exact canonical label
// wins; otherwise the first keyword rule found as a case-insensitive
// substring applies. No match returns nil.
func MapStageToEnum(text string) *model.SalesStage {
	if s := ExactStage(text); s != nil {
		return s
	}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	for _, r := range stageRules {
		if strings.Contains(lower, r.keyword) {
			s := r.stage
			return &s
		}
	}
	return nil
}

package model

import (
	"strings"
	"time"
)

// SalesOwner identifies the sales rep a deal belongs to.
type SalesOwner string

const (
	OwnerAlex   SalesOwner = "ALEX"
	OwnerJordan SalesOwner = "JORDAN"
	OwnerMorgan SalesOwner = "MORGAN"
	OwnerSam    SalesOwner = "SAM"
)

// SalesOwners lists every known owner in report order.
var SalesOwners = []SalesOwner{OwnerAlex, OwnerJordan, OwnerMorgan, OwnerSam}

// ParseSalesOwner maps a free-text first name to a SalesOwner. Matching is
// case-insensitive; unknown names return false.
func ParseSalesOwner(name string) (SalesOwner, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, o := range SalesOwners {
		if string(o) == upper {
			return o, true
		}
	}
	return "", false
}

// Valid reports whether o is one of the known owners.
func (o SalesOwner) Valid() bool {
	_, ok := ParseSalesOwner(string(o))
	return ok
}

// SalesStage is a canonical pipeline position.
type SalesStage string

const (
	StageDiscovery      SalesStage = "DISCOVERY"
	StageScoping        SalesStage = "SCOPING"
	StageSpecProduction SalesStage = "SPEC_PRODUCTION"
	StageNegotiation    SalesStage = "NEGOTIATION"
	StageProposalSent   SalesStage = "PROPOSAL_SENT"
	StageClosedWon      SalesStage = "CLOSED_WON"
	StageClosedLost     SalesStage = "CLOSED_LOST"
)

// Valid reports whether s is a known stage.
func (s SalesStage) Valid() bool {
	switch s {
	case StageDiscovery, StageScoping, StageSpecProduction, StageNegotiation,
		StageProposalSent, StageClosedWon, StageClosedLost:
		return true
	default:
		return false
	}
}

// TaskPriority ranks follow-up tasks.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// ParsingMethod records how a report was turned into structured data.
type ParsingMethod string

const (
	ParsingCSV         ParsingMethod = "csv-parser"
	ParsingClaudeText  ParsingMethod = "claude-text"
	ParsingClaudeImage ParsingMethod = "claude-image"
)

// ExtractedTask is the follow-up attached to a deal row.
type ExtractedTask struct {
	DueDate     *time.Time   `json:"dueDate"`
	DueDateText string       `json:"dueDateText"`
	Description string       `json:"description"`
	IsOverdue   bool         `json:"isOverdue"`
	Priority    TaskPriority `json:"priority"`
}

// ExtractedDeal is one pipeline opportunity found in a report. The match
// fields are empty at parse time and filled by the batch-match step.
type ExtractedDeal struct {
	DealName       string         `json:"dealName"`
	Owner          SalesOwner     `json:"owner"`
	ValueText      string         `json:"valueText"`
	ValueParsed    *float64       `json:"valueParsed"`
	Stage          string         `json:"stage"`
	StageMapped    *SalesStage    `json:"stageMapped"`
	NextStep       *string        `json:"nextStep"`
	Task           *ExtractedTask `json:"task"`
	IsSubDeal      bool           `json:"isSubDeal"`
	ParentDealName string         `json:"parentDealName,omitempty"`

	MatchedClientID string          `json:"matchedClientId,omitempty"`
	MatchConfidence MatchConfidence `json:"matchConfidence,omitempty"`
	ImportAction    SuggestedAction `json:"importAction,omitempty"`
}

// ExtractedLead is a new inbound lead listed in a report.
type ExtractedLead struct {
	Name   string     `json:"name"`
	Owner  SalesOwner `json:"owner"`
	Source string     `json:"source,omitempty"`
	Notes  string     `json:"notes,omitempty"`
}

// ExtractedMeeting is a scheduled or completed meeting listed in a report.
type ExtractedMeeting struct {
	Title    string     `json:"title"`
	Owner    SalesOwner `json:"owner"`
	Date     *time.Time `json:"date"`
	DateText string     `json:"dateText,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// ExtractedSalesReport is the typed result of parsing one report file.
type ExtractedSalesReport struct {
	ReportDate     time.Time                      `json:"reportDate"`
	ReportDateText string                         `json:"reportDateText"`
	FileName       string                         `json:"fileName"`
	AllDeals       []ExtractedDeal                `json:"allDeals"`
	DealsByOwner   map[SalesOwner][]ExtractedDeal `json:"dealsByOwner"`
	AllLeads       []ExtractedLead                `json:"allLeads"`
	AllMeetings    []ExtractedMeeting             `json:"allMeetings"`
	TotalValue     float64                        `json:"totalValue"`
}

// Finalize rebuilds the derived fields (owner buckets and total value) from
// AllDeals. Deals without a valid owner are dropped.
func (r *ExtractedSalesReport) Finalize() {
	deals := make([]ExtractedDeal, 0, len(r.AllDeals))
	byOwner := make(map[SalesOwner][]ExtractedDeal)
	total := 0.0
	for _, d := range r.AllDeals {
		if strings.TrimSpace(d.DealName) == "" || !d.Owner.Valid() {
			continue
		}
		deals = append(deals, d)
		byOwner[d.Owner] = append(byOwner[d.Owner], d)
		if d.ValueParsed != nil {
			total += *d.ValueParsed
		}
	}
	r.AllDeals = deals
	r.DealsByOwner = byOwner
	r.TotalValue = total
	if r.AllLeads == nil {
		r.AllLeads = []ExtractedLead{}
	}
	if r.AllMeetings == nil {
		r.AllMeetings = []ExtractedMeeting{}
	}
}

// IsEmpty reports whether the report carries nothing importable or viewable.
func (r *ExtractedSalesReport) IsEmpty() bool {
	return len(r.AllDeals) == 0 && len(r.AllLeads) == 0 && len(r.AllMeetings) == 0
}

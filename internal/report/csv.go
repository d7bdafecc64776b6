// Package report parses semi-structured sales pipeline exports into typed
// deal, lead, and meeting records.
package report

import (
	"encoding/csv"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/normalize"
)

const (
	reportDateScanLines = 5
	maxNameLength       = 80
	maxStageLength      = 40
	minNextStepLength   = 20
	fallbackNextStepLen = 30
)

var (
	ownerHeaderRe = regexp.MustCompile(`(?i)^\s*([a-z]+)\s+[\w'’.]+\s*[-–—]+\s*sales\b`)
	headerRowRe   = regexp.MustCompile(`(?i)^"?(?:deal|deal name|client|name|lead|title|meeting)"?\s*,`)
	totalRowRe    = regexp.MustCompile(`(?i)^"?total\s*(?::|$)`)
	recapRe       = regexp.MustCompile(`(?i)^\s*([a-z]+)(?:'s)?\s*(?:recap|summary|:\s*\d+\s+deals?\b)`)
	dollarRe      = regexp.MustCompile(`^\$\s*\d[\d,]*(?:\.\d+)?\s*[MmKk]?$`)
	subDealMarkRe = regexp.MustCompile(`^(?:↳|→|└|-->|->)\s*`)
	subDealTagRe  = regexp.MustCompile(`(?i)\s*\(sub[- ]?deal\)\s*$`)
	numericRe     = regexp.MustCompile(`^[\d\s/.,-]+$`)
)

type sectionMode int

const (
	modeDeals sectionMode = iota
	modeLeads
	modeMeetings
)

var sectionMarkers = map[string]sectionMode{
	"deals":             modeDeals,
	"active deals":      modeDeals,
	"pipeline":          modeDeals,
	"leads":             modeLeads,
	"new leads":         modeLeads,
	"meetings":          modeMeetings,
	"upcoming meetings": modeMeetings,
}

// Parser turns CSV pipeline exports into ExtractedSalesReport values.
type Parser struct {
	now func() time.Time
}

// NewParser creates a Parser that resolves overdue tasks against the wall clock.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// parseState is the scan state carried between lines.
type parseState struct {
	owner        model.SalesOwner
	hasOwner     bool
	mode         sectionMode
	lastMainDeal *model.ExtractedDeal
	refYear      int
}

// Parse scans text line by line and reconstructs the report. Lines outside an
// owner section are ignored. Deals are returned in file order.
func (p *Parser) Parse(text, fileName string) *model.ExtractedSalesReport {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	now := p.now().UTC()
	report := &model.ExtractedSalesReport{
		ReportDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		FileName:   fileName,
	}
	if d, txt, ok := findReportDate(lines, now.Year()); ok {
		report.ReportDate = d
		report.ReportDateText = txt
	}

	st := &parseState{refYear: report.ReportDate.Year()}
	for n, raw := range lines {
		line := strings.TrimSpace(raw)
		if isBlankLine(line) {
			continue
		}
		fields := splitFields(line)

		if owner, ok, isHeader := ownerHeader(fields); isHeader {
			st.owner, st.hasOwner = owner, ok
			st.mode = modeDeals
			st.lastMainDeal = nil
			if !ok {
				zap.L().Warn("report: unknown owner section, skipping rows",
					zap.String("file", fileName),
					zap.Int("line", n+1),
					zap.String("header", fields[0]),
				)
			}
			continue
		}
		if headerRowRe.MatchString(line) || isTotalRow(fields) || isRecap(line) {
			continue
		}
		if mode, ok := sectionMarker(fields); ok {
			st.mode = mode
			continue
		}
		if !st.hasOwner {
			continue
		}

		switch st.mode {
		case modeLeads:
			if lead, ok := parseLead(fields, st.owner); ok {
				report.AllLeads = append(report.AllLeads, lead)
			}
		case modeMeetings:
			if mtg, ok := parseMeeting(fields, st.owner, st.refYear); ok {
				report.AllMeetings = append(report.AllMeetings, mtg)
			}
		default:
			if deal, ok := p.parseDeal(fields, st, now); ok {
				report.AllDeals = append(report.AllDeals, deal)
				if !deal.IsSubDeal {
					d := deal
					st.lastMainDeal = &d
				}
			}
		}
	}

	report.Finalize()
	zap.L().Debug("report: parsed csv",
		zap.String("file", fileName),
		zap.Int("deals", len(report.AllDeals)),
		zap.Int("leads", len(report.AllLeads)),
		zap.Int("meetings", len(report.AllMeetings)),
	)
	return report
}

// fieldRoles holds the index of the field assigned to each role, or -1.
type fieldRoles struct {
	value, stage, task, name, nextStep int
}

// classifyFields assigns each field at most one role. Fields are scanned in
// order and the first role a field satisfies wins. A field that is exactly a
// stage label takes the stage role ahead of any keyword match, so names such
// as "Prospect Media" are not read as stages.
func classifyFields(fields []string) fieldRoles {
	r := fieldRoles{value: -1, stage: -1, task: -1, name: -1, nextStep: -1}
	used := make([]bool, len(fields))

	exactStage := -1
	for i, f := range fields {
		if normalize.ExactStage(f) != nil {
			exactStage = i
			break
		}
	}
	isStage := func(i int, f string) bool {
		if exactStage >= 0 {
			return i == exactStage
		}
		return utf8.RuneCountInString(f) <= maxStageLength && normalize.MapStageToEnum(f) != nil
	}

	for i, f := range fields {
		if f == "" {
			continue
		}
		switch {
		case r.value < 0 && dollarRe.MatchString(f):
			r.value = i
		case r.stage < 0 && isStage(i, f):
			r.stage = i
		case normalize.IsDashPlaceholder(f):
			// Empty-cell marker; consumed without a role.
		case r.task < 0 && (normalize.HasDatePrefix(f) || normalize.HasWarningGlyph(f)):
			r.task = i
		default:
			continue
		}
		used[i] = true
	}

	for i, f := range fields {
		if used[i] || f == "" {
			continue
		}
		if utf8.RuneCountInString(f) < maxNameLength && !isSentence(f) {
			r.name = i
			used[i] = true
			break
		}
	}

	longest := 0
	for i, f := range fields {
		if used[i] {
			continue
		}
		if n := utf8.RuneCountInString(f); n > minNextStepLength && n > longest {
			r.nextStep, longest = i, n
		}
	}
	if r.nextStep < 0 && r.stage >= 0 && utf8.RuneCountInString(fields[r.stage]) > fallbackNextStepLen {
		// A long stage cell is usually a status note that mentions a stage.
		r.nextStep = r.stage
	}
	return r
}

func (p *Parser) parseDeal(fields []string, st *parseState, now time.Time) (model.ExtractedDeal, bool) {
	roles := classifyFields(fields)
	if roles.name < 0 {
		return model.ExtractedDeal{}, false
	}

	name, isSub := cleanDealName(fields[roles.name])
	if name == "" || isOrphanedDate(name) {
		return model.ExtractedDeal{}, false
	}

	deal := model.ExtractedDeal{
		DealName: name,
		Owner:    st.owner,
	}
	if roles.value >= 0 {
		deal.ValueText = fields[roles.value]
		deal.ValueParsed = normalize.ParseDealValue(deal.ValueText)
	}
	if roles.stage >= 0 {
		deal.Stage = fields[roles.stage]
		deal.StageMapped = normalize.MapStageToEnum(deal.Stage)
	}
	if roles.task >= 0 {
		deal.Task = normalize.ParseTaskFieldAt(fields[roles.task], st.refYear, now)
	}
	if roles.nextStep >= 0 {
		ns := fields[roles.nextStep]
		deal.NextStep = &ns
	}
	if isSub {
		deal.IsSubDeal = true
		if st.lastMainDeal != nil {
			deal.ParentDealName = st.lastMainDeal.DealName
		}
	}
	return deal, true
}

// cleanDealName strips sub-deal markers and reports whether one was present.
func cleanDealName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	isSub := false
	if loc := subDealMarkRe.FindStringIndex(name); loc != nil {
		name = name[loc[1]:]
		isSub = true
	}
	if loc := subDealTagRe.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
		isSub = true
	}
	return strings.TrimSpace(name), isSub
}

func isOrphanedDate(name string) bool {
	return normalize.HasDatePrefix(name) || normalize.IsDashPlaceholder(name) || numericRe.MatchString(name)
}

func isSentence(s string) bool {
	words := len(strings.Fields(s))
	if words > 8 {
		return true
	}
	return words > 3 && strings.ContainsAny(s[len(s)-1:], ".!?")
}

func parseLead(fields []string, owner model.SalesOwner) (model.ExtractedLead, bool) {
	vals := nonEmpty(fields)
	if len(vals) == 0 {
		return model.ExtractedLead{}, false
	}
	lead := model.ExtractedLead{Name: vals[0], Owner: owner}
	if len(vals) > 1 {
		lead.Source = vals[1]
	}
	if len(vals) > 2 {
		lead.Notes = strings.Join(vals[2:], "; ")
	}
	return lead, true
}

func parseMeeting(fields []string, owner model.SalesOwner, refYear int) (model.ExtractedMeeting, bool) {
	mtg := model.ExtractedMeeting{Owner: owner}
	var rest []string
	for _, f := range nonEmpty(fields) {
		if mtg.DateText == "" {
			if d, token, remainder, ok := normalize.LeadingDate(f, refYear); ok {
				mtg.Date = &d
				mtg.DateText = token
				if remainder = strings.Trim(remainder, " :-–—,"); remainder != "" {
					rest = append(rest, remainder)
				}
				continue
			}
		}
		rest = append(rest, f)
	}
	if len(rest) == 0 {
		return model.ExtractedMeeting{}, false
	}
	mtg.Title = rest[0]
	if len(rest) > 1 {
		mtg.Notes = strings.Join(rest[1:], "; ")
	}
	return mtg, true
}

// ownerHeader detects an owner-section header such as "Alex Rivera - Sales".
// A header naming an unknown rep returns ok=false. Lines that match the
// pattern but carry data in other fields are treated as deal rows unless
// the name is a known owner.
func ownerHeader(fields []string) (owner model.SalesOwner, ok bool, isHeader bool) {
	m := ownerHeaderRe.FindStringSubmatch(fields[0])
	if m == nil {
		return "", false, false
	}
	owner, ok = model.ParseSalesOwner(m[1])
	if !ok && len(nonEmpty(fields)) > 1 {
		return "", false, false
	}
	return owner, ok, true
}

func sectionMarker(fields []string) (sectionMode, bool) {
	if len(nonEmpty(fields)) != 1 {
		return 0, false
	}
	key := strings.ToLower(strings.TrimRight(strings.TrimSpace(fields[0]), ":"))
	mode, ok := sectionMarkers[key]
	return mode, ok
}

func isRecap(line string) bool {
	m := recapRe.FindStringSubmatch(strings.Trim(line, `"`))
	if m == nil {
		return false
	}
	_, known := model.ParseSalesOwner(m[1])
	return known
}

// findReportDate looks for a dated title in the first lines. A title
// without a year, such as "Weekly Sales Report - March 7", is read from the
// first non-blank line only and resolved with year.
func findReportDate(lines []string, year int) (time.Time, string, bool) {
	for i := 0; i < len(lines) && i < reportDateScanLines; i++ {
		if d, txt, ok := normalize.FindReportDate(lines[i]); ok {
			return d, txt, true
		}
	}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if isBlankLine(line) {
			continue
		}
		if _, _, isHeader := ownerHeader(splitFields(line)); isHeader {
			return time.Time{}, "", false
		}
		return normalize.FindTitleDate(line, year)
	}
	return time.Time{}, "", false
}

// isTotalRow reports whether the first non-empty field is a "Total:" summary.
func isTotalRow(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return totalRowRe.MatchString(f)
		}
	}
	return false
}

func isBlankLine(line string) bool {
	return strings.Trim(line, ", \t") == ""
}

// splitFields splits one line with standard CSV quoting. Malformed quoting
// falls back to a plain comma split.
func splitFields(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil || len(fields) == 0 {
		fields = strings.Split(line, ",")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func nonEmpty(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

package extract

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/normalize"
)

// rawReport is the JSON document the model returns.
type rawReport struct {
	ReportDate     string       `json:"reportDate"`
	ReportDateText string       `json:"reportDateText"`
	Deals          []rawDeal    `json:"deals"`
	Leads          []rawLead    `json:"leads"`
	Meetings       []rawMeeting `json:"meetings"`
}

type rawDeal struct {
	DealName       string `json:"dealName"`
	Owner          string `json:"owner"`
	ValueText      string `json:"valueText"`
	Stage          string `json:"stage"`
	NextStep       string `json:"nextStep"`
	Task           string `json:"task"`
	IsSubDeal      bool   `json:"isSubDeal"`
	ParentDealName string `json:"parentDealName"`
}

type rawLead struct {
	Name   string `json:"name"`
	Owner  string `json:"owner"`
	Source string `json:"source"`
	Notes  string `json:"notes"`
}

type rawMeeting struct {
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	DateText string `json:"dateText"`
	Notes    string `json:"notes"`
}

// toReport normalizes the model output through the same value, stage, and
// task parsers the CSV path uses.
func (r rawReport) toReport(fileName string, now time.Time) *model.ExtractedSalesReport {
	report := &model.ExtractedSalesReport{
		FileName:       fileName,
		ReportDateText: strings.TrimSpace(r.ReportDateText),
	}
	report.ReportDate = r.reportDate(now)
	refYear := report.ReportDate.Year()

	lastMain := make(map[model.SalesOwner]string)
	for _, rd := range r.Deals {
		owner, ok := model.ParseSalesOwner(rd.Owner)
		if !ok {
			zap.L().Warn("extract: dropping deal with unknown owner",
				zap.String("deal", rd.DealName), zap.String("owner", rd.Owner))
			continue
		}
		name := strings.TrimSpace(rd.DealName)
		if name == "" {
			continue
		}

		d := model.ExtractedDeal{
			DealName:    name,
			Owner:       owner,
			ValueText:   strings.TrimSpace(rd.ValueText),
			ValueParsed: normalize.ParseDealValue(rd.ValueText),
			Stage:       strings.TrimSpace(rd.Stage),
			StageMapped: normalize.MapStageToEnum(rd.Stage),
			Task:        parseTask(rd.Task, refYear, now),
			IsSubDeal:   rd.IsSubDeal || strings.TrimSpace(rd.ParentDealName) != "",
		}
		if ns := strings.TrimSpace(rd.NextStep); ns != "" {
			d.NextStep = &ns
		}
		if d.IsSubDeal {
			d.ParentDealName = strings.TrimSpace(rd.ParentDealName)
			if d.ParentDealName == "" {
				d.ParentDealName = lastMain[owner]
			}
		} else {
			lastMain[owner] = name
		}
		report.AllDeals = append(report.AllDeals, d)
	}

	for _, rl := range r.Leads {
		owner, ok := model.ParseSalesOwner(rl.Owner)
		name := strings.TrimSpace(rl.Name)
		if !ok || name == "" {
			continue
		}
		report.AllLeads = append(report.AllLeads, model.ExtractedLead{
			Name:   name,
			Owner:  owner,
			Source: strings.TrimSpace(rl.Source),
			Notes:  strings.TrimSpace(rl.Notes),
		})
	}

	for _, rm := range r.Meetings {
		owner, ok := model.ParseSalesOwner(rm.Owner)
		title := strings.TrimSpace(rm.Title)
		if !ok || title == "" {
			continue
		}
		m := model.ExtractedMeeting{
			Title:    title,
			Owner:    owner,
			DateText: strings.TrimSpace(rm.DateText),
			Notes:    strings.TrimSpace(rm.Notes),
		}
		if t, _, _, found := normalize.LeadingDate(m.DateText, refYear); found {
			m.Date = &t
		}
		report.AllMeetings = append(report.AllMeetings, m)
	}

	report.Finalize()
	return report
}

func (r rawReport) reportDate(now time.Time) time.Time {
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(r.ReportDate)); err == nil {
		return t
	}
	if t, _, ok := normalize.FindTitleDate(r.ReportDateText, now.Year()); ok {
		return t
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// parseTask parses a task cell. Text with no date or overdue marker still
// becomes a low-priority task.
func parseTask(text string, refYear int, now time.Time) *model.ExtractedTask {
	text = strings.TrimSpace(text)
	if text == "" || normalize.IsDashPlaceholder(text) {
		return nil
	}
	if t := normalize.ParseTaskFieldAt(text, refYear, now); t != nil {
		return t
	}
	return &model.ExtractedTask{Description: text, Priority: model.PriorityLow}
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/pipeline-import/internal/model"
)

// formatDealsTable prints one row per deal with its suggested action.
func formatDealsTable(w io.Writer, rpt *model.ExtractedSalesReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tDEAL\tVALUE\tSTAGE\tTASK\tMATCH\tACTION")
	for _, d := range rpt.AllDeals {
		name := d.DealName
		if d.IsSubDeal {
			name = "  ↳ " + name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Owner,
			truncate(name, 40),
			orDash(d.ValueText),
			stageText(d.StageMapped),
			taskText(d.Task),
			orDash(string(d.MatchConfidence)),
			orDash(string(d.ImportAction)),
		)
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\n%d deals, %d leads, %d meetings, total value $%.0f (report date %s)\n",
		len(rpt.AllDeals), len(rpt.AllLeads), len(rpt.AllMeetings), rpt.TotalValue,
		rpt.ReportDate.Format("2006-01-02"))
}

// formatImportsTable prints the import history.
func formatImportsTable(w io.Writer, imports []model.SalesReportImport, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFILE\tSTATE\tDEALS\tIMPORTED\tCREATED\tUPDATED\tSKIPPED\tERRORS")
	for _, imp := range imports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			imp.ID,
			imp.CreatedAt.Format("2006-01-02 15:04"),
			truncate(imp.FileName, 32),
			imp.State,
			imp.DealsTotal,
			imp.DealsImported,
			imp.ClientsCreated,
			imp.ClientsUpdated,
			imp.DealsSkipped,
			len(imp.Errors),
		)
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\nShowing %d of %d imports\n", len(imports), total)
}

// formatClientsTable prints the client registry.
func formatClientsTable(w io.Writer, clients []model.Client) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERTICAL\tOWNER\tSTAGE\tVALUE\tSOURCE")
	for _, c := range clients {
		value := "-"
		if c.DealValue != nil {
			value = fmt.Sprintf("$%.0f", *c.DealValue)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			truncate(c.Name, 40),
			orDash(c.Vertical),
			orDash(string(c.SalesOwner)),
			stageText(c.SalesStage),
			value,
			c.Source,
		)
	}
	tw.Flush() //nolint:errcheck
}

func stageText(s *model.SalesStage) string {
	if s == nil {
		return "-"
	}
	return string(*s)
}

func taskText(t *model.ExtractedTask) string {
	if t == nil {
		return "-"
	}
	text := truncate(t.Description, 30)
	if t.IsOverdue {
		text = "⚠ " + text
	}
	return text
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

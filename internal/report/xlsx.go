package report

import (
	"bytes"
	"encoding/csv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to convert.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// XLSXToCSV converts one worksheet of a spreadsheet export to CSV text that
// Parse understands. Trailing empty cells are dropped from each row.
func XLSXToCSV(data []byte, opts XLSXOptions) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "report: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		if err := w.Write(rowToStrings(row)); err != nil {
			return "", eris.Wrap(err, "report: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "report: flush csv")
	}
	return buf.String(), nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("report: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("report: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	last := -1
	for j, cell := range row.Cells {
		cells[j] = cell.String()
		if cells[j] != "" {
			last = j
		}
	}
	return cells[:last+1]
}

package main

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pipeline-import/internal/ingest"
	"github.com/sells-group/pipeline-import/internal/ocr"
	"github.com/sells-group/pipeline-import/internal/report"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// readReportFile turns a report file into a parse request. Spreadsheets
// are converted to CSV, PDFs to their text layer, and images to base64.
func readReportFile(ctx context.Context, path string, pdf ocr.Extractor) (ingest.Request, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".pdf" {
		text, err := ocr.ReadReport(ctx, pdf, path)
		if errors.Is(err, ocr.ErrNoTextLayer) {
			return ingest.Request{}, &ingest.InputError{Msg: name + " has no text layer (likely a scan). Export the report as CSV or upload a screenshot instead."}
		}
		if err != nil {
			return ingest.Request{}, err
		}
		return ingest.Request{Content: text, FileName: name}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Request{}, eris.Wrapf(err, "read %s", path)
	}

	switch {
	case ext == ".xlsx":
		text, err := report.XLSXToCSV(data, report.XLSXOptions{})
		if err != nil {
			return ingest.Request{}, err
		}
		// Renamed to .csv so routing picks the CSV parser.
		return ingest.Request{Content: text, FileName: strings.TrimSuffix(name, filepath.Ext(name)) + ".csv"}, nil
	case imageExts[ext]:
		return ingest.Request{
			Content:       base64.StdEncoding.EncodeToString(data),
			FileName:      name,
			IsBase64Image: true,
		}, nil
	default:
		return ingest.Request{Content: string(data), FileName: name}, nil
	}
}

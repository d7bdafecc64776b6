// Package ingest is the entry point for turning an uploaded report into an
// enriched, client-matched report.
package ingest

import (
	"context"
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/extract"
	"github.com/sells-group/pipeline-import/internal/match"
	"github.com/sells-group/pipeline-import/internal/metrics"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/report"
)

const binaryContentMsg = "This file looks like a binary PDF without a readable text layer. " +
	"Export the report as CSV and upload that instead."

// Request is one uploaded report. Content is raw text, or base64 image
// bytes when IsBase64Image is set.
type Request struct {
	Content       string `json:"pdfContent"`
	FileName      string `json:"fileName"`
	IsBase64Image bool   `json:"isBase64Image,omitempty"`
}

// Response is a parsed report with batch-match results merged in.
type Response struct {
	Success       bool                           `json:"success" yaml:"success"`
	Data          *model.ExtractedSalesReport    `json:"data" yaml:"data"`
	Matches       map[string][]model.ClientMatch `json:"matches" yaml:"matches"`
	ParsingMethod model.ParsingMethod            `json:"parsingMethod" yaml:"parsingMethod"`
}

// Service routes a report to the CSV parser or the extractor and matches
// its deals against the client registry.
type Service struct {
	parser    *report.Parser
	extractor extract.Extractor
	matcher   *match.BatchMatcher
	metrics   *metrics.Recorder
}

// NewService creates a Service. extractor and rec may be nil; without an
// extractor only CSV reports can be parsed.
func NewService(parser *report.Parser, extractor extract.Extractor, matcher *match.BatchMatcher, rec *metrics.Recorder) *Service {
	return &Service{
		parser:    parser,
		extractor: extractor,
		matcher:   matcher,
		metrics:   rec,
	}
}

// Parse extracts req into a report and enriches every deal with its best
// client match. Input problems return *InputError and extraction service
// failures return *ExtractionError.
func (s *Service) Parse(ctx context.Context, req Request) (*Response, error) {
	rpt, method, err := s.extract(ctx, req)
	s.metrics.ObserveParse(method, err)
	if err != nil {
		return nil, err
	}
	if rpt.IsEmpty() {
		return nil, inputErrorf("No deals, leads, or meetings were found in %s. Check the file is a weekly sales report.", displayName(req.FileName))
	}

	matches, err := s.matcher.BatchMatchDeals(ctx, match.DealNames(rpt))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: match deals")
	}

	zap.L().Info("ingest: parsed report",
		zap.String("file", req.FileName),
		zap.String("method", string(method)),
		zap.Int("deals", len(rpt.AllDeals)),
		zap.Float64("total_value", rpt.TotalValue),
	)
	return &Response{
		Success:       true,
		Data:          s.matcher.Enrich(rpt, matches),
		Matches:       matches,
		ParsingMethod: method,
	}, nil
}

func (s *Service) extract(ctx context.Context, req Request) (*model.ExtractedSalesReport, model.ParsingMethod, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, "", inputErrorf("The uploaded file %s is empty.", displayName(req.FileName))
	}

	if req.IsBase64Image {
		mediaType, data := splitDataURL(req.Content)
		if mediaType == "" {
			var err error
			if mediaType, err = imageMediaType(req.FileName, data); err != nil {
				return nil, model.ParsingClaudeImage, err
			}
		}
		rpt, err := s.runExtractor(ctx, "image", func(e extract.Extractor) (*model.ExtractedSalesReport, error) {
			return e.ExtractImage(ctx, data, mediaType, req.FileName)
		})
		return rpt, model.ParsingClaudeImage, err
	}

	isCSVFile := strings.EqualFold(filepath.Ext(req.FileName), ".csv")
	if isCSVFile || report.IsCSVContent(req.Content) {
		rpt := s.parser.Parse(req.Content, req.FileName)
		if len(rpt.AllDeals) > 0 || isCSVFile || s.extractor == nil {
			return rpt, model.ParsingCSV, nil
		}
		zap.L().Debug("ingest: csv parse found no deals, falling back to text extraction",
			zap.String("file", req.FileName))
	}

	if report.IsBinaryContent(req.Content) {
		return nil, "", &InputError{Msg: binaryContentMsg}
	}

	rpt, err := s.runExtractor(ctx, "text", func(e extract.Extractor) (*model.ExtractedSalesReport, error) {
		return e.ExtractText(ctx, req.Content, req.FileName)
	})
	return rpt, model.ParsingClaudeText, err
}

func (s *Service) runExtractor(ctx context.Context, mode string, fn func(extract.Extractor) (*model.ExtractedSalesReport, error)) (*model.ExtractedSalesReport, error) {
	if s.extractor == nil {
		return nil, &ExtractionError{Err: ErrNoExtractor}
	}
	start := time.Now()
	rpt, err := fn(s.extractor)
	s.metrics.ObserveExtraction(mode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: extraction canceled")
		}
		return nil, &ExtractionError{Err: err, StatusCode: extract.StatusCode(err)}
	}
	return rpt, nil
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// splitDataURL separates a "data:<type>;base64," prefix from the payload.
// The media type is empty when content carries no such prefix.
func splitDataURL(content string) (mediaType, data string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "data:") {
		return "", content
	}
	meta, payload, ok := strings.Cut(content, ",")
	if !ok {
		return "", content
	}
	meta = strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	return meta, payload
}

// imageMediaType picks the media type from the file extension, falling back
// to sniffing the decoded image header.
func imageMediaType(fileName, b64 string) (string, error) {
	if mt, ok := imageTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return mt, nil
	}
	head := b64
	if len(head) > 64 {
		head = head[:64]
	}
	head = head[:len(head)/4*4]
	raw, err := base64.StdEncoding.DecodeString(head)
	if err != nil {
		return "", inputErrorf("The image %s is not valid base64.", displayName(fileName))
	}
	mt := http.DetectContentType(raw)
	for _, known := range imageTypes {
		if mt == known {
			return mt, nil
		}
	}
	return "", inputErrorf("Unsupported image type %q for %s. Upload PNG, JPEG, GIF, or WebP.", mt, displayName(fileName))
}

func displayName(fileName string) string {
	if fileName == "" {
		return "the upload"
	}
	return fileName
}

// Package extract turns report content the CSV parser cannot read (free text
// or a screenshot) into an ExtractedSalesReport using Claude.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pipeline-import/internal/config"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/resilience"
	"github.com/sells-group/pipeline-import/pkg/anthropic"
)

// maxTextChars caps the report text sent in one request.
const maxTextChars = 120000

// Extractor converts non-CSV report content into a structured report.
type Extractor interface {
	ExtractText(ctx context.Context, text, fileName string) (*model.ExtractedSalesReport, error)
	ExtractImage(ctx context.Context, base64Data, mediaType, fileName string) (*model.ExtractedSalesReport, error)
}

// ErrMalformedResponse is returned when the model reply is not the expected
// JSON document.
var ErrMalformedResponse = errors.New("extract: malformed model response")

// ClaudeExtractor implements Extractor with the Anthropic Messages API.
type ClaudeExtractor struct {
	client  anthropic.Client
	cfg     config.AnthropicConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClaudeExtractor builds an extractor around an injected client. A
// non-positive RequestsPerMinute disables pacing.
func NewClaudeExtractor(client anthropic.Client, cfg config.AnthropicConfig) *ClaudeExtractor {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &ClaudeExtractor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// ExtractText extracts a report from plain text.
func (e *ClaudeExtractor) ExtractText(ctx context.Context, text, fileName string) (*model.ExtractedSalesReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("extract: empty text")
	}
	if runes := []rune(text); len(runes) > maxTextChars {
		zap.L().Warn("extract: report text truncated",
			zap.String("file", fileName),
			zap.Int("chars", len(runes)),
			zap.Int("max_chars", maxTextChars),
		)
		text = string(runes[:maxTextChars])
	}
	msg := anthropic.Message{
		Role:    "user",
		Content: fmt.Sprintf(textPrompt, fileName, text),
	}
	return e.extract(ctx, msg, fileName, "text")
}

// ExtractImage extracts a report from a base64-encoded screenshot.
func (e *ClaudeExtractor) ExtractImage(ctx context.Context, base64Data, mediaType, fileName string) (*model.ExtractedSalesReport, error) {
	if base64Data == "" {
		return nil, eris.New("extract: empty image")
	}
	msg := anthropic.Message{
		Role:    "user",
		Content: fmt.Sprintf(imagePrompt, fileName),
		Images:  []anthropic.Image{{MediaType: mediaType, Data: base64Data}},
	}
	return e.extract(ctx, msg, fileName, "image")
}

func (e *ClaudeExtractor) extract(ctx context.Context, msg anthropic.Message, fileName, mode string) (*model.ExtractedSalesReport, error) {
	log := zap.L().With(zap.String("file", fileName), zap.String("mode", mode))

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: rate limit wait")
	}

	retry := e.cfg.Retry
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract_"+mode)

	req := anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt, e.cfg.CacheTTL),
		Messages:  []anthropic.Message{msg},
	}

	start := time.Now()
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := e.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, resilience.ClassifyStatus(err, StatusCode(err))
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s extraction", mode)
	}
	resp.Usage.LogCost(e.cfg.Model, "extract_"+mode)

	if resp.StopReason == "max_tokens" {
		log.Warn("extract: response truncated at max_tokens", zap.Int64("max_tokens", e.cfg.MaxTokens))
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &raw); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "extract: parse %s response: %v", mode, err)
	}

	report := raw.toReport(fileName, e.now())
	log.Info("extract: report extracted",
		zap.Int("deals", len(report.AllDeals)),
		zap.Int("leads", len(report.AllLeads)),
		zap.Int("meetings", len(report.AllMeetings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// StatusCode returns the HTTP status of an Anthropic API error in err's
// chain, or 0.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

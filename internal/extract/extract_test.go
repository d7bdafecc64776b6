package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/pipeline-import/internal/config"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/resilience"
	"github.com/sells-group/pipeline-import/pkg/anthropic"
	"github.com/sells-group/pipeline-import/pkg/anthropic/mocks"
)

const reportJSON = "```json\n" + `{
  "reportDate": "2025-03-07",
  "reportDateText": "March 7, 2025",
  "deals": [
    {"dealName": "Harbor Foods", "owner": "Alex", "valueText": "$1.2M", "stage": "Negotiation", "nextStep": "Send revised SOW", "task": "⚠ Mar 3: follow up on budget"},
    {"dealName": "Harbor Foods Frozen", "owner": "Alex", "valueText": "$250K", "stage": "Scoping", "isSubDeal": true},
    {"dealName": "Northwind", "owner": "jordan", "valueText": "TBD", "stage": "Intro call", "task": "book kickoff"},
    {"dealName": "Mystery Co", "owner": "Casey", "valueText": "$10K"},
    {"dealName": "  ", "owner": "Alex"}
  ],
  "leads": [{"name": "Blue Pine", "owner": "Sam", "source": "referral"}],
  "meetings": [{"title": "Harbor Foods review", "owner": "Alex", "dateText": "Mar 12"}]
}` + "\n```"

func testConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
		CacheTTL:  "5m",
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	}
}

func newTestExtractor(client anthropic.Client) *ClaudeExtractor {
	e := NewClaudeExtractor(client, testConfig())
	e.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 1200, OutputTokens: 300},
	}
}

func TestExtractText_NormalizesDeals(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 && req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 && len(req.Messages[0].Images) == 0
	})).Return(textResponse(reportJSON), nil).Once()

	report, err := newTestExtractor(client).ExtractText(context.Background(), "weekly report text", "report.txt")
	require.NoError(t, err)

	assert.Equal(t, "report.txt", report.FileName)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), report.ReportDate)
	require.Len(t, report.AllDeals, 3)

	harbor := report.AllDeals[0]
	assert.Equal(t, model.OwnerAlex, harbor.Owner)
	require.NotNil(t, harbor.ValueParsed)
	assert.InDelta(t, 1_200_000, *harbor.ValueParsed, 0.01)
	require.NotNil(t, harbor.StageMapped)
	assert.Equal(t, model.StageNegotiation, *harbor.StageMapped)
	require.NotNil(t, harbor.NextStep)
	assert.Equal(t, "Send revised SOW", *harbor.NextStep)
	require.NotNil(t, harbor.Task)
	assert.True(t, harbor.Task.IsOverdue)
	assert.Equal(t, model.PriorityHigh, harbor.Task.Priority)

	sub := report.AllDeals[1]
	assert.True(t, sub.IsSubDeal)
	assert.Equal(t, "Harbor Foods", sub.ParentDealName)

	northwind := report.AllDeals[2]
	assert.Equal(t, model.OwnerJordan, northwind.Owner)
	assert.Nil(t, northwind.ValueParsed)
	require.NotNil(t, northwind.Task)
	assert.Equal(t, "book kickoff", northwind.Task.Description)
	assert.Equal(t, model.PriorityLow, northwind.Task.Priority)

	assert.Len(t, report.DealsByOwner[model.OwnerAlex], 2)
	assert.InDelta(t, 1_450_000, report.TotalValue, 0.01)
	require.Len(t, report.AllLeads, 1)
	require.Len(t, report.AllMeetings, 1)
	require.NotNil(t, report.AllMeetings[0].Date)
	assert.Equal(t, time.March, report.AllMeetings[0].Date.Month())
}

func TestExtractImage_SendsImageBlock(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		imgs := req.Messages[0].Images
		return len(imgs) == 1 && imgs[0].MediaType == "image/png" && imgs[0].Data == "aGVsbG8="
	})).Return(textResponse(`{"reportDate":"","reportDateText":"March 7, 2025","deals":[{"dealName":"Acme","owner":"Sam","valueText":"$950"}]}`), nil).Once()

	report, err := newTestExtractor(client).ExtractImage(context.Background(), "aGVsbG8=", "image/png", "shot.png")
	require.NoError(t, err)
	require.Len(t, report.AllDeals, 1)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), report.ReportDate)
	assert.InDelta(t, 950, report.TotalValue, 0.01)
}

func TestExtract_MalformedResponse(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("Sorry, I can't read this report."), nil).Once()

	_, err := newTestExtractor(client).ExtractText(context.Background(), "text", "r.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtract_RetriesTransientErrors(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"deals":[]}`), nil).Once()

	report, err := newTestExtractor(client).ExtractText(context.Background(), "text", "r.txt")
	require.NoError(t, err)
	assert.Empty(t, report.AllDeals)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestExtract_PermanentErrorNotRetried(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid x-api-key")).Once()

	_, err := newTestExtractor(client).ExtractText(context.Background(), "text", "r.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract: text extraction")
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestExtract_EmptyInput(t *testing.T) {
	e := newTestExtractor(mocks.NewMockClient(t))

	_, err := e.ExtractText(context.Background(), "   ", "r.txt")
	assert.Error(t, err)

	_, err = e.ExtractImage(context.Background(), "", "image/png", "r.png")
	assert.Error(t, err)
}

func TestStatusCode_NoAPIError(t *testing.T) {
	assert.Zero(t, StatusCode(errors.New("plain")))
	assert.Zero(t, StatusCode(nil))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", `Here you go: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestExtractText_TruncatesLongReportWithWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Count(req.Messages[0].Content, "§") == maxTextChars
	})).Return(textResponse(`{"deals":[]}`), nil).Once()

	long := strings.Repeat("§", maxTextChars+500)
	_, err := newTestExtractor(client).ExtractText(context.Background(), long, "r.txt")
	require.NoError(t, err)

	entries := logs.FilterMessage("extract: report text truncated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(maxTextChars+500), entries[0].ContextMap()["chars"])
}

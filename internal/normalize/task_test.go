package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-import/internal/model"
)

var testNow = time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)

func TestParseTaskFieldAt_MonthDay(t *testing.T) {
	task := ParseTaskFieldAt("Mar 14: send revised treatment", 2025, testNow)
	require.NotNil(t, task)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), *task.DueDate)
	assert.Equal(t, "Mar 14", task.DueDateText)
	assert.Equal(t, "send revised treatment", task.Description)
	assert.False(t, task.IsOverdue)
	assert.Equal(t, model.PriorityMedium, task.Priority)
}

func TestParseTaskFieldAt_SlashDate(t *testing.T) {
	task := ParseTaskFieldAt("3/5 - follow up on budget", 2025, testNow)
	require.NotNil(t, task)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), *task.DueDate)
	assert.Equal(t, "follow up on budget", task.Description)
	assert.True(t, task.IsOverdue)
	assert.Equal(t, model.PriorityHigh, task.Priority)
}

func TestParseTaskFieldAt_SlashDateWithYear(t *testing.T) {
	task := ParseTaskFieldAt("4/1/26 kickoff", 2025, testNow)
	require.NotNil(t, task)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, 2026, task.DueDate.Year())
	assert.Equal(t, "kickoff", task.Description)
}

func TestParseTaskFieldAt_GlyphOverriddenByFutureDate(t *testing.T) {
	task := ParseTaskFieldAt("⚠️ Mar 20 confirm crew", 2025, testNow)
	require.NotNil(t, task)
	assert.False(t, task.IsOverdue, "date comparison overrides the glyph")
	assert.Equal(t, "confirm crew", task.Description)
}

func TestParseTaskFieldAt_OverdueWithoutDate(t *testing.T) {
	task := ParseTaskFieldAt("OVERDUE: call producer", 2025, testNow)
	require.NotNil(t, task)
	assert.Nil(t, task.DueDate)
	assert.True(t, task.IsOverdue)
	assert.Equal(t, "call producer", task.Description)
	assert.Equal(t, model.PriorityHigh, task.Priority)
}

func TestParseTaskFieldAt_GlyphOnly(t *testing.T) {
	task := ParseTaskFieldAt("⚠ chase PO", 2025, testNow)
	require.NotNil(t, task)
	assert.True(t, task.IsOverdue)
	assert.Equal(t, "chase PO", task.Description)
}

func TestParseTaskFieldAt_Unparseable(t *testing.T) {
	assert.Nil(t, ParseTaskFieldAt("", 2025, testNow))
	assert.Nil(t, ParseTaskFieldAt("-", 2025, testNow))
	assert.Nil(t, ParseTaskFieldAt("N/A", 2025, testNow))
	assert.Nil(t, ParseTaskFieldAt("send deck", 2025, testNow))
}

func TestParseTaskFieldAt_InvalidDay(t *testing.T) {
	task := ParseTaskFieldAt("Feb 30 wrap", 2025, testNow)
	assert.Nil(t, task)
}

func TestFindReportDate(t *testing.T) {
	d, text, ok := FindReportDate("Weekly Sales Report - March 7, 2025,,,")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "March 7, 2025", text)

	_, _, ok = FindReportDate("Pipeline,,,")
	assert.False(t, ok)
}

func TestHasDatePrefix(t *testing.T) {
	assert.True(t, HasDatePrefix("Mar 3 send deck"))
	assert.True(t, HasDatePrefix("12/1"))
	assert.False(t, HasDatePrefix("Marketing refresh"))
	assert.False(t, HasDatePrefix("May 2025 campaign"))
}

func TestIsDashPlaceholder(t *testing.T) {
	for _, s := range []string{"-", "--", "—", "–", "N/A", "n/a", "TBD"} {
		assert.True(t, IsDashPlaceholder(s), s)
	}
	assert.False(t, IsDashPlaceholder("Acme - Nike"))
}

func TestParseTaskFieldAt_OverdueOnlyAsLeadingToken(t *testing.T) {
	task := ParseTaskFieldAt("Mar 14: chase overdue invoices", 2025, testNow)
	require.NotNil(t, task)
	assert.Equal(t, "chase overdue invoices", task.Description)
	assert.False(t, task.IsOverdue)

	task = ParseTaskFieldAt("⚠ overdue: chase invoices", 2025, testNow)
	require.NotNil(t, task)
	assert.True(t, task.IsOverdue)
	assert.Equal(t, "chase invoices", task.Description)

	assert.Nil(t, ParseTaskFieldAt("chase overdue invoices", 2025, testNow))
}

func TestFindTitleDate(t *testing.T) {
	d, text, ok := FindTitleDate("Weekly Sales Report - March 7", 2025)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "March 7", text)

	d, text, ok = FindTitleDate("Weekly Sales Report - March 7, 2024", 2025)
	require.True(t, ok)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, "March 7, 2024", text)

	_, _, ok = FindTitleDate("Summary for May 2025", 2025)
	assert.False(t, ok)
	_, _, ok = FindTitleDate("Pipeline", 2025)
	assert.False(t, ok)
}

package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCSVContent(t *testing.T) {
	assert.True(t, IsCSVContent(weeklyReport))
	assert.True(t, IsCSVContent("a,b,c,d\n1,2,3,4\n5,6,7,8\n"))
}

func TestIsCSVContent_Markers(t *testing.T) {
	tests := []string{
		"Q1 Sales Pipeline\nnotes follow",
		"intro\nSam Patel - Sales\nstuff",
		"Deal,Value\nAtlas",
		"Atlas rail is at $45K now",
	}
	for _, text := range tests {
		assert.True(t, IsCSVContent(text), text)
	}
}

func TestIsCSVContent_Prose(t *testing.T) {
	text := "Hi team,\nHere is the update from this week.\nWe met with Atlas Rail and they liked the reel.\n"
	assert.False(t, IsCSVContent(text))
	assert.False(t, IsCSVContent(""))
}

func TestIsCSVContent_MarkerBeyondFifteenLines(t *testing.T) {
	text := strings.Repeat("plain line\n", 20) + "Sam Patel - Sales\n"
	assert.False(t, IsCSVContent(text))
}

func TestIsBinaryContent(t *testing.T) {
	assert.False(t, IsBinaryContent(""))
	assert.False(t, IsBinaryContent(weeklyReport))
	assert.False(t, IsBinaryContent("line one\n\tindented\r\nline two"))

	binary := "%PDF-1.4\n" + strings.Repeat("\x00\x01\x02\x8f\xff", 50)
	assert.True(t, IsBinaryContent(binary))
}

func TestIsBinaryContent_OnlySamplesPrefix(t *testing.T) {
	text := strings.Repeat("a", 1000) + strings.Repeat("\x00", 500)
	assert.False(t, IsBinaryContent(text))
}

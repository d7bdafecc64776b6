package match

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-import/internal/model"
)

func clients(names ...string) []model.Client {
	out := make([]model.Client, len(names))
	for i, n := range names {
		out[i] = model.Client{ID: fmt.Sprintf("c%d", i+1), Name: n}
	}
	return out
}

func TestFindMatchingClients_BaseName(t *testing.T) {
	got := FindMatchingClients("Saatchi", clients("Saatchi (Toyota)"))
	require.Len(t, got, 1)
	assert.Equal(t, model.ConfidencePartial, got[0].Confidence)
	assert.Equal(t, 85, got[0].Score)
	assert.Equal(t, "c1", got[0].ClientID)
	assert.Equal(t, "Saatchi (Toyota)", got[0].ClientName)
}

func TestFindMatchingClients_Exact(t *testing.T) {
	got := FindMatchingClients("Acme Inc", clients("ACME"))
	require.Len(t, got, 1)
	assert.Equal(t, model.ConfidenceExact, got[0].Confidence)
	assert.Equal(t, 100, got[0].Score)
}

func TestFindMatchingClients_ShortBaseNameIgnored(t *testing.T) {
	// "ab" is too short to count as a shared parent.
	got := FindMatchingClients("AB Foods", clients("AB (Nike)"))
	assert.Empty(t, got)
}

func TestFindMatchingClients_Containment(t *testing.T) {
	got := FindMatchingClients("Harbor", clients("The Harbor Group"))
	require.Len(t, got, 1)
	assert.Equal(t, model.ConfidencePartial, got[0].Confidence)
	assert.Equal(t, 70, got[0].Score)
}

func TestFindMatchingClients_ContainmentBelowFloorFallsThrough(t *testing.T) {
	// 12/17 * 70 rounds to 49, so containment rejects it and edit
	// distance (5 of 17) scores it instead.
	got := FindMatchingClients("Blue Harbor Foods", clients("Harbor Foods"))
	require.Len(t, got, 1)
	assert.Equal(t, model.ConfidenceFuzzy, got[0].Confidence)
	assert.Equal(t, 42, got[0].Score)
}

func TestFindMatchingClients_Fuzzy(t *testing.T) {
	got := FindMatchingClients("Brightline", clients("Brightlane"))
	require.Len(t, got, 1)
	assert.Equal(t, model.ConfidenceFuzzy, got[0].Confidence)
	assert.Equal(t, 54, got[0].Score)
}

func TestFindMatchingClients_NoMatch(t *testing.T) {
	assert.Empty(t, FindMatchingClients("Zebra", clients("Acme")))
}

func TestFindMatchingClients_EmptyPool(t *testing.T) {
	for _, name := range []string{"Acme", "", "Saatchi (Toyota)"} {
		got := FindMatchingClients(name, nil)
		require.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestFindMatchingClients_EmptyDealName(t *testing.T) {
	assert.Empty(t, FindMatchingClients("  ", clients("Acme")))
}

func TestFindMatchingClients_SortedByScore(t *testing.T) {
	got := FindMatchingClients("Harbor", clients("Harbour", "The Harbor Group", "Harbor"))
	require.Len(t, got, 3)
	assert.Equal(t, []int{100, 70, 51}, []int{got[0].Score, got[1].Score, got[2].Score})
	assert.Equal(t, "c3", got[0].ClientID)
	assert.Equal(t, "c2", got[1].ClientID)
	assert.Equal(t, "c1", got[2].ClientID)
}

func TestFindMatchingClients_CapAndStableTies(t *testing.T) {
	pool := clients("Acme", "ACME", "Acme Inc", "Acme LLC", "acme.", "Acme Co", "Acme Ltd")
	got := FindMatchingClients("Acme", pool)
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("c%d", i+1), m.ClientID)
		assert.Equal(t, model.ConfidenceExact, m.Confidence)
	}
}

func TestFindMatchingClients_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.MinSimilarity = 0.95
	got := NewMatcher(th).FindMatchingClients("Brightline", clients("Brightlane"))
	assert.Empty(t, got)
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"acme", "acme studios"},
		{"", "nike"},
		{"café", "cafe"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), p)
	}
}

func TestSimilarity_Values(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("", ""), 1e-9)
	assert.InDelta(t, 1.0, Similarity("acme", "acme"), 1e-9)
	assert.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("", "nike"), 1e-9)
}

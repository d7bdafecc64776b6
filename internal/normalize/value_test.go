package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-import/internal/model"
)

func TestParseDealValue_Shorthand(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1.2M", 1_200_000},
		{"$500K", 500_000},
		{"$950", 950},
		{"1,250,000", 1_250_000},
		{" $ 2.5 m ", 2_500_000},
		{"$75k", 75_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDealValue(tt.in)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 0.001)
		})
	}
}

func TestParseDealValue_Invalid(t *testing.T) {
	for _, in := range []string{"garbage", "", "$", "1.2.3M", "$1.2B", "TBD"} {
		assert.Nil(t, ParseDealValue(in), in)
	}
}

func TestMapStageToEnum(t *testing.T) {
	tests := []struct {
		in   string
		want model.SalesStage
	}{
		{"Discovery", model.StageDiscovery},
		{"intro call", model.StageDiscovery},
		{"Scoping", model.StageScoping},
		{"Scope review", model.StageScoping},
		{"Spec Production", model.StageSpecProduction},
		{"Test shoot", model.StageSpecProduction},
		{"Negotiating", model.StageNegotiation},
		{"In negotiation", model.StageNegotiation},
		{"Proposal Sent", model.StageProposalSent},
		{"Closed Won", model.StageClosedWon},
		{"CLOSED LOST", model.StageClosedLost},
	}
	for _, tt := range tests {
		got := MapStageToEnum(tt.in)
		require.NotNil(t, got, tt.in)
		assert.Equal(t, tt.want, *got, tt.in)
	}
}

func TestMapStageToEnum_FirstRuleWins(t *testing.T) {
	// "spec" is checked before "proposal".
	got := MapStageToEnum("spec proposal")
	require.NotNil(t, got)
	assert.Equal(t, model.StageSpecProduction, *got)
}

func TestMapStageToEnum_NoMatch(t *testing.T) {
	assert.Nil(t, MapStageToEnum(""))
	assert.Nil(t, MapStageToEnum("   "))
	assert.Nil(t, MapStageToEnum("on hold"))
}

func TestExactStage(t *testing.T) {
	tests := []struct {
		in   string
		want model.SalesStage
	}{
		{"Discovery", model.StageDiscovery},
		{" spec  production ", model.StageSpecProduction},
		{"CLOSED_WON", model.StageClosedWon},
		{"Closed-Lost", model.StageClosedLost},
		{"Proposal Sent", model.StageProposalSent},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ExactStage(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	for _, s := range []string{"Prospect Media", "Wonder Foods", "Negotiating", ""} {
		assert.Nil(t, ExactStage(s), s)
	}
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSalesOwner(t *testing.T) {
	tests := []struct {
		in   string
		want SalesOwner
		ok   bool
	}{
		{"Alex", OwnerAlex, true},
		{"  jordan ", OwnerJordan, true},
		{"MORGAN", OwnerMorgan, true},
		{"sam", OwnerSam, true},
		{"Casey", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSalesOwner(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, OwnerSam.Valid())
	assert.False(t, SalesOwner("CASEY").Valid())
	assert.True(t, StageSpecProduction.Valid())
	assert.False(t, SalesStage("WON").Valid())
}

func TestFinalize(t *testing.T) {
	v1, v2 := 1_200_000.0, 250_000.0
	r := &ExtractedSalesReport{
		AllDeals: []ExtractedDeal{
			{DealName: "Harbor Foods", Owner: OwnerAlex, ValueParsed: &v1},
			{DealName: "Harbor Foods Frozen", Owner: OwnerAlex, ValueParsed: &v2, IsSubDeal: true},
			{DealName: "Northwind", Owner: OwnerJordan},
			{DealName: "  ", Owner: OwnerSam, ValueParsed: &v1},
			{DealName: "Mystery Co", Owner: "CASEY", ValueParsed: &v1},
		},
	}
	r.Finalize()

	assert.Len(t, r.AllDeals, 3)
	assert.Len(t, r.DealsByOwner[OwnerAlex], 2)
	assert.Len(t, r.DealsByOwner[OwnerJordan], 1)
	assert.NotContains(t, r.DealsByOwner, OwnerSam)
	assert.InDelta(t, 1_450_000, r.TotalValue, 0.01)
	assert.NotNil(t, r.AllLeads)
	assert.NotNil(t, r.AllMeetings)
	assert.False(t, r.IsEmpty())

	r.Finalize()
	assert.InDelta(t, 1_450_000, r.TotalValue, 0.01, "finalize is idempotent")
}

func TestIsEmpty(t *testing.T) {
	r := &ExtractedSalesReport{}
	assert.True(t, r.IsEmpty())

	r.AllLeads = []ExtractedLead{{Name: "Blue Pine", Owner: OwnerSam}}
	assert.False(t, r.IsEmpty())
}

func TestSalesReportImport_HasErrors(t *testing.T) {
	assert.False(t, SalesReportImport{}.HasErrors())
	assert.True(t, SalesReportImport{Errors: []string{`Deal "X": boom`}}.HasErrors())
}

func TestDefaultImportOptions(t *testing.T) {
	opts := DefaultImportOptions()
	assert.True(t, opts.CreateNewClients)
	assert.True(t, opts.UpdateExisting)
	assert.True(t, opts.CreateTasks)
	assert.False(t, opts.DryRun)
}

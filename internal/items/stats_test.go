package items

import (
	"reflect"
	"testing"
)

func expansionForStats() Expansion {
	columns := []string{"case_id", "item_index", "item_description", "item_unit_price", "item_quantity", "item_line_total"}
	return Expansion{
		Columns:  columns,
		Expanded: true,
		Rows: [][]any{
			{"C-1", 1, "Support", 100.0, 1.0, 100.0},
			{"C-1", 2, "Training", 50.0, 2.0, 100.0},
			{"C-2", 1, "Training", 50.0, 1.0, 50.0},
			{"C-2", 2, "Hosting", 25.0, 4.0, 100.0},
			{"C-3", nil, nil, nil, nil, nil},
		},
		ExpandedRows: 5,
	}
}

func TestSummarizeAggregates(t *testing.T) {
	stats := Summarize(expansionForStats())
	if stats.TotalLineItems != 4 {
		t.Fatalf("TotalLineItems = %d, want 4 (passthrough row excluded)", stats.TotalLineItems)
	}
	if stats.DistinctItems != 3 {
		t.Fatalf("DistinctItems = %d, want 3", stats.DistinctItems)
	}
	if stats.TotalLineValue != 350.0 {
		t.Fatalf("TotalLineValue = %v, want 350", stats.TotalLineValue)
	}
	if stats.AverageUnitPrice != 56.25 {
		t.Fatalf("AverageUnitPrice = %v, want 56.25", stats.AverageUnitPrice)
	}
}

func TestSummarizeRanksByFrequencyWithFirstSeenTieBreak(t *testing.T) {
	stats := Summarize(expansionForStats())
	want := []ItemCount{
		{Item: "Training", Count: 2},
		{Item: "Support", Count: 1},
		{Item: "Hosting", Count: 1},
	}
	if !reflect.DeepEqual(stats.TopItems, want) {
		t.Fatalf("TopItems = %v, want %v", stats.TopItems, want)
	}
}

func TestSummarizeUnexpandedIsEmpty(t *testing.T) {
	stats := Summarize(Expansion{Expanded: false, Rows: [][]any{{1}}})
	if stats.TotalLineItems != 0 || stats.TopItems != nil {
		t.Fatalf("stats = %+v, want zero value", stats)
	}
}

package items

import (
	"reflect"
	"testing"
)

func defaultGroups() []FieldGroup {
	return []FieldGroup{{
		Description: "items_description",
		UnitPrice:   "items_unit_price",
		Quantity:    "items_quantity",
	}}
}

func TestExpandAlignedArrays(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"case_id", "items_description", "items_unit_price", "items_quantity"}
	rows := [][]any{
		{"C-1", `["A","B"]`, `[10,20]`, `[2,1]`},
	}

	expansion := expander.Expand(columns, rows)
	if !expansion.Expanded {
		t.Fatal("item columns present, expansion expected")
	}
	wantColumns := []string{"case_id", "item_index", "item_description", "item_unit_price", "item_quantity", "item_line_total"}
	if !reflect.DeepEqual(expansion.Columns, wantColumns) {
		t.Fatalf("columns = %v, want %v", expansion.Columns, wantColumns)
	}
	wantRows := [][]any{
		{"C-1", 1, "A", 10.0, 2.0, 20.0},
		{"C-1", 2, "B", 20.0, 1.0, 20.0},
	}
	if !reflect.DeepEqual(expansion.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", expansion.Rows, wantRows)
	}
	if expansion.OriginalRows != 1 || expansion.ExpandedRows != 2 {
		t.Fatalf("row counts = %d/%d, want 1/2", expansion.OriginalRows, expansion.ExpandedRows)
	}
}

func TestExpandMixedEncodings(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"case_id", "items_description", "items_unit_price", "items_quantity"}
	rows := [][]any{
		{"C-1", "A,B", `[10,20]`, "2;1"},
	}

	expansion := expander.Expand(columns, rows)
	wantRows := [][]any{
		{"C-1", 1, "A", 10.0, 2.0, 20.0},
		{"C-1", 2, "B", 20.0, 1.0, 20.0},
	}
	if !reflect.DeepEqual(expansion.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", expansion.Rows, wantRows)
	}
}

func TestExpandUnequalLengthsZeroFills(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"case_id", "items_description", "items_unit_price", "items_quantity"}
	rows := [][]any{
		{"C-1", `["A","B","C"]`, `[10]`, `[2,1]`},
	}

	expansion := expander.Expand(columns, rows)
	wantRows := [][]any{
		{"C-1", 1, "A", 10.0, 2.0, 20.0},
		{"C-1", 2, "B", 0.0, 1.0, 0.0},
		{"C-1", 3, "C", 0.0, 0.0, 0.0},
	}
	if !reflect.DeepEqual(expansion.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", expansion.Rows, wantRows)
	}
}

func TestExpandWithoutItemColumnsPassesThrough(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"case_id", "total"}
	rows := [][]any{{"C-1", 99.0}}

	expansion := expander.Expand(columns, rows)
	if expansion.Expanded {
		t.Fatal("no item columns, expansion must not trigger")
	}
	if !reflect.DeepEqual(expansion.Columns, columns) || !reflect.DeepEqual(expansion.Rows, rows) {
		t.Fatal("result set should pass through untouched")
	}
}

func TestExpandEmptyItemFieldsPassRowThrough(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"case_id", "items_description", "items_unit_price", "items_quantity"}
	rows := [][]any{
		{"C-1", "", "", ""},
		{"C-2", `["A"]`, `[5]`, `[3]`},
	}

	expansion := expander.Expand(columns, rows)
	wantRows := [][]any{
		{"C-1", nil, nil, nil, nil, nil},
		{"C-2", 1, "A", 5.0, 3.0, 15.0},
	}
	if !reflect.DeepEqual(expansion.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", expansion.Rows, wantRows)
	}
}

func TestExpandCountsParseWarnings(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"items_description", "items_unit_price", "items_quantity"}
	rows := [][]any{
		{`["A","B"]`, "free, 5", `[1,1]`},
	}

	expansion := expander.Expand(columns, rows)
	if expansion.Warnings != 1 {
		t.Fatalf("warnings = %d, want 1", expansion.Warnings)
	}
}

func TestExpandMatchesColumnsCaseInsensitively(t *testing.T) {
	expander := NewExpander(defaultGroups())
	columns := []string{"CASE_ID", "ITEMS_DESCRIPTION", "ITEMS_UNIT_PRICE", "ITEMS_QUANTITY"}
	rows := [][]any{{"C-1", `["A"]`, `[2]`, `[3]`}}

	expansion := expander.Expand(columns, rows)
	if !expansion.Expanded {
		t.Fatal("column match should ignore case")
	}
	want := []any{"C-1", 1, "A", 2.0, 3.0, 6.0}
	if !reflect.DeepEqual(expansion.Rows[0], want) {
		t.Fatalf("row = %v, want %v", expansion.Rows[0], want)
	}
}

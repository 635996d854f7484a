package items

import "strings"

// FieldGroup names the parallel columns holding one invoice's item arrays.
type FieldGroup struct {
	Description string
	UnitPrice   string
	Quantity    string
}

// Column names appended to every expanded result set.
const (
	ColumnItemIndex       = "item_index"
	ColumnItemDescription = "item_description"
	ColumnItemUnitPrice   = "item_unit_price"
	ColumnItemQuantity    = "item_quantity"
	ColumnItemLineTotal   = "item_line_total"
)

var itemColumns = []string{
	ColumnItemIndex,
	ColumnItemDescription,
	ColumnItemUnitPrice,
	ColumnItemQuantity,
	ColumnItemLineTotal,
}

// Expansion is the per-item view of a result set. When no configured item
// column is present, Expanded is false and the input passes through intact.
type Expansion struct {
	Columns      []string
	Rows         [][]any
	Expanded     bool
	OriginalRows int
	ExpandedRows int
	Warnings     int
}

// Expander applies virtual row expansion using the configured field groups.
// The first group with at least one column present in the result set wins.
type Expander struct {
	groups []FieldGroup
}

func NewExpander(groups []FieldGroup) *Expander {
	return &Expander{groups: groups}
}

// Expand turns each row's aligned item arrays into one row per item index.
// Arrays of unequal length expand to the maximum observed length, missing
// descriptions becoming empty and missing numbers zero. A row whose item
// fields are all empty passes through as a single row with nil item fields.
func (e *Expander) Expand(columns []string, rows [][]any) Expansion {
	group, positions, ok := e.matchGroup(columns)
	if !ok {
		return Expansion{
			Columns:      columns,
			Rows:         rows,
			OriginalRows: len(rows),
			ExpandedRows: len(rows),
		}
	}

	outColumns := make([]string, 0, len(columns)+len(itemColumns))
	keep := make([]int, 0, len(columns))
	for i, column := range columns {
		if _, isItem := positions[i]; isItem {
			continue
		}
		keep = append(keep, i)
		outColumns = append(outColumns, column)
	}
	outColumns = append(outColumns, itemColumns...)

	expansion := Expansion{
		Columns:      outColumns,
		Expanded:     true,
		OriginalRows: len(rows),
	}

	descriptionIdx := columnIndex(columns, group.Description)
	unitPriceIdx := columnIndex(columns, group.UnitPrice)
	quantityIdx := columnIndex(columns, group.Quantity)

	for _, row := range rows {
		descriptions, warned := parseAt(row, descriptionIdx)
		if warned {
			expansion.Warnings++
		}
		unitPrices, warned := parseNumbersAt(row, unitPriceIdx)
		if warned {
			expansion.Warnings++
		}
		quantities, warned := parseNumbersAt(row, quantityIdx)
		if warned {
			expansion.Warnings++
		}

		slots := maxLen(len(descriptions), len(unitPrices), len(quantities))
		if slots == 0 {
			passthrough := projectRow(row, keep)
			passthrough = append(passthrough, nil, nil, nil, nil, nil)
			expansion.Rows = append(expansion.Rows, passthrough)
			continue
		}

		for i := 0; i < slots; i++ {
			description := ""
			if i < len(descriptions) {
				description = descriptions[i]
			}
			unitPrice := 0.0
			if i < len(unitPrices) {
				unitPrice = unitPrices[i]
			}
			quantity := 0.0
			if i < len(quantities) {
				quantity = quantities[i]
			}

			out := projectRow(row, keep)
			out = append(out, i+1, description, unitPrice, quantity, unitPrice*quantity)
			expansion.Rows = append(expansion.Rows, out)
		}
	}

	expansion.ExpandedRows = len(expansion.Rows)
	return expansion
}

// matchGroup finds the first field group with any column in the result set
// and the set of column positions belonging to it.
func (e *Expander) matchGroup(columns []string) (FieldGroup, map[int]struct{}, bool) {
	for _, group := range e.groups {
		positions := map[int]struct{}{}
		for i, column := range columns {
			lower := strings.ToLower(column)
			if lower == strings.ToLower(group.Description) ||
				lower == strings.ToLower(group.UnitPrice) ||
				lower == strings.ToLower(group.Quantity) {
				positions[i] = struct{}{}
			}
		}
		if len(positions) > 0 {
			return group, positions, true
		}
	}
	return FieldGroup{}, nil, false
}

func columnIndex(columns []string, name string) int {
	for i, column := range columns {
		if strings.EqualFold(column, name) {
			return i
		}
	}
	return -1
}

func parseAt(row []any, idx int) ([]string, bool) {
	if idx < 0 || idx >= len(row) {
		return nil, false
	}
	return ParseStrings(row[idx])
}

func parseNumbersAt(row []any, idx int) ([]float64, bool) {
	if idx < 0 || idx >= len(row) {
		return nil, false
	}
	return ParseNumbers(row[idx])
}

func projectRow(row []any, keep []int) []any {
	out := make([]any, 0, len(keep)+len(itemColumns))
	for _, idx := range keep {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func maxLen(lengths ...int) int {
	max := 0
	for _, length := range lengths {
		if length > max {
			max = length
		}
	}
	return max
}

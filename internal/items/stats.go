package items

// ItemCount is one entry of the item-frequency ranking.
type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Statistics summarizes an expanded row set.
type Statistics struct {
	TotalLineItems   int         `json:"total_line_items"`
	DistinctItems    int         `json:"distinct_items"`
	TotalLineValue   float64     `json:"total_line_value"`
	AverageUnitPrice float64     `json:"average_unit_price"`
	TopItems         []ItemCount `json:"top_items,omitempty"`
}

const topItemLimit = 5

// Summarize computes line-item statistics over an expansion. Passthrough
// rows (no item data) are excluded from every aggregate.
func Summarize(expansion Expansion) Statistics {
	if !expansion.Expanded {
		return Statistics{}
	}

	descriptionIdx := columnIndex(expansion.Columns, ColumnItemDescription)
	unitPriceIdx := columnIndex(expansion.Columns, ColumnItemUnitPrice)
	lineTotalIdx := columnIndex(expansion.Columns, ColumnItemLineTotal)

	stats := Statistics{}
	counts := map[string]int{}
	firstSeen := map[string]int{}
	var order []string
	priceSum := 0.0
	priced := 0

	for _, row := range expansion.Rows {
		description, ok := valueAt(row, descriptionIdx).(string)
		if !ok || description == "" {
			continue
		}
		stats.TotalLineItems++

		if _, seen := counts[description]; !seen {
			firstSeen[description] = len(order)
			order = append(order, description)
		}
		counts[description]++

		if total, ok := valueAt(row, lineTotalIdx).(float64); ok {
			stats.TotalLineValue += total
		}
		if price, ok := valueAt(row, unitPriceIdx).(float64); ok {
			priceSum += price
			priced++
		}
	}

	stats.DistinctItems = len(counts)
	if priced > 0 {
		stats.AverageUnitPrice = priceSum / float64(priced)
	}

	// Rank by frequency, ties broken by first appearance.
	ranked := make([]string, len(order))
	copy(ranked, order)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0; j-- {
			a, b := ranked[j-1], ranked[j]
			if counts[b] > counts[a] || (counts[b] == counts[a] && firstSeen[b] < firstSeen[a]) {
				ranked[j-1], ranked[j] = b, a
				continue
			}
			break
		}
	}
	for i, item := range ranked {
		if i >= topItemLimit {
			break
		}
		stats.TopItems = append(stats.TopItems, ItemCount{Item: item, Count: counts[item]})
	}
	return stats
}

func valueAt(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

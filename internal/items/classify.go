package items

import (
	"regexp"
	"strings"

	"github.com/ledgergate/ledgergate/internal/keyword"
)

// itemQueryPhrases mark a question as asking about individual line items
// rather than whole invoices. Matching is case-insensitive substring search.
var itemQueryPhrases = []string{
	"item",
	"product",
	"service list",
	"services",
	"line item",
	"line by line",
	"breakdown",
	"itemized",
	"unit price",
	"quantity",
	"what was billed",
	"what did i buy",
	"per item",
	"each item",
	"individual cost",
}

var quotedPhrasePattern = regexp.MustCompile(`["']([^"']+)["']`)

// Classifier decides when a question needs the expanded per-item view and
// which product names it singles out.
type Classifier struct {
	vocabulary *keyword.Index
}

func NewClassifier(vocabulary *keyword.Index) *Classifier {
	return &Classifier{vocabulary: vocabulary}
}

// IsItemQuery reports whether the question asks about individual items,
// either by phrasing or by naming a known product.
func (c *Classifier) IsItemQuery(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range itemQueryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return c.vocabulary != nil && c.vocabulary.Contains(lower)
}

// ProductFilters extracts candidate product names from the question: quoted
// phrases first, then known vocabulary terms. At most five names come back,
// longest first, without duplicates or subsets of longer matches.
func (c *Classifier) ProductFilters(text string) []string {
	var candidates []string
	for _, match := range quotedPhrasePattern.FindAllStringSubmatch(text, -1) {
		phrase := strings.ToLower(strings.TrimSpace(match[1]))
		if len(phrase) >= 3 {
			candidates = append(candidates, phrase)
		}
	}
	if c.vocabulary != nil {
		candidates = append(candidates, c.vocabulary.Candidates(text)...)
	}

	var filters []string
	for _, candidate := range candidates {
		subset := false
		for _, existing := range filters {
			if strings.Contains(existing, candidate) {
				subset = true
				break
			}
		}
		if subset {
			continue
		}
		filters = append(filters, candidate)
		if len(filters) >= 5 {
			break
		}
	}
	return filters
}

// FilterRows keeps only expanded rows whose item description contains one of
// the product filters. Unexpanded results and empty filter lists pass
// through untouched.
func FilterRows(expansion Expansion, filters []string) Expansion {
	if !expansion.Expanded || len(filters) == 0 {
		return expansion
	}
	descriptionIdx := columnIndex(expansion.Columns, ColumnItemDescription)
	if descriptionIdx < 0 {
		return expansion
	}

	filtered := make([][]any, 0, len(expansion.Rows))
	for _, row := range expansion.Rows {
		description, _ := row[descriptionIdx].(string)
		lower := strings.ToLower(description)
		for _, filter := range filters {
			if strings.Contains(lower, filter) {
				filtered = append(filtered, row)
				break
			}
		}
	}

	expansion.Rows = filtered
	expansion.ExpandedRows = len(filtered)
	return expansion
}

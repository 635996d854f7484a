// Package keyword holds the static vocabulary used to interpret invoice
// questions: known product/service terms and user phrasings for schema
// columns. The vocabulary is data, not heuristics, so it lives apart from
// the classifiers that consume it.
package keyword

import (
	"sort"
	"strings"
)

// defaultProductTerms are the product and service names that commonly appear
// in invoice line items. Matching is case-insensitive substring search.
var defaultProductTerms = []string{
	"cloud storage",
	"web hosting",
	"mobile app",
	"data backup",
	"ssl certificate",
	"cloud",
	"storage",
	"support",
	"license",
	"licenses",
	"training",
	"software",
	"consulting",
	"hosting",
	"backup",
	"security",
	"email",
	"database",
	"domain",
	"server",
}

// columnSynonyms maps user phrasings to the invoice column they refer to,
// used to seed schema hints for translation.
var columnSynonyms = map[string]string{
	"vendor":         "vendor_id",
	"supplier":       "vendor_id",
	"customer":       "customer_id",
	"client":         "customer_id",
	"invoice number": "invoice_id",
	"invoice":        "invoice_id",
	"bill":           "bill_id",
	"case":           "case_id",
	"due date":       "due_date",
	"deadline":       "due_date",
	"bill date":      "bill_date",
	"received":       "receiving_date",
	"total":          "total",
	"amount":         "total",
	"status":         "status",
	"items":          "items_description",
	"products":       "items_description",
	"quantity":       "items_quantity",
	"unit price":     "items_unit_price",
}

// Index answers membership questions over a fixed term list. Longer terms
// win over shorter ones so "cloud storage" beats "cloud" and "storage".
type Index struct {
	terms []string
}

// NewIndex builds an index over the given terms. Terms shorter than three
// characters are dropped; everything is matched lowercase.
func NewIndex(terms []string) *Index {
	cleaned := make([]string, 0, len(terms))
	seen := map[string]struct{}{}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) < 3 {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		cleaned = append(cleaned, term)
	}
	sort.Slice(cleaned, func(i, j int) bool {
		if len(cleaned[i]) != len(cleaned[j]) {
			return len(cleaned[i]) > len(cleaned[j])
		}
		return cleaned[i] < cleaned[j]
	})
	return &Index{terms: cleaned}
}

// DefaultIndex returns an index over the built-in product vocabulary.
func DefaultIndex() *Index {
	return NewIndex(defaultProductTerms)
}

// Candidates returns the vocabulary terms found in the text, longest first.
// A term that is a substring of an already matched longer term is skipped,
// and at most five candidates are returned.
func (ix *Index) Candidates(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, term := range ix.terms {
		if !strings.Contains(lower, term) {
			continue
		}
		subset := false
		for _, existing := range matched {
			if strings.Contains(existing, term) {
				subset = true
				break
			}
		}
		if subset {
			continue
		}
		matched = append(matched, term)
		if len(matched) >= 5 {
			break
		}
	}
	return matched
}

// Contains reports whether any vocabulary term appears in the text.
func (ix *Index) Contains(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range ix.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ColumnHints maps phrasings found in the question to schema columns, for
// use as translation hints. Results are sorted for stable prompts.
func ColumnHints(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]struct{}{}
	for phrase, column := range columnSynonyms {
		if strings.Contains(lower, phrase) {
			seen[column] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for column := range seen {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

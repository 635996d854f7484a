// Package items turns invoice rows holding parallel delimited item arrays
// into one row per line item, and classifies questions that need that view.
package items

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// commonDelimiters in priority order; detection picks the one occurring most
// often, earlier entries winning ties.
var commonDelimiters = []string{",", ";", "|", "\n", "\t", "||", ";;"}

var nonNumericPattern = regexp.MustCompile(`[^\d.-]`)

// ParseStrings decodes one item field into its element list. Native arrays
// pass through, JSON-array text is trial-parsed, and anything else falls
// back to delimiter splitting. warned reports a value that looked like JSON
// but failed to decode.
func ParseStrings(value any) (elements []string, warned bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []any:
		return cleanElements(stringifyAll(v)), false
	case []string:
		return cleanElements(v), false
	case string:
		return parseStringField(v)
	default:
		return cleanElements([]string{fmt.Sprint(v)}), false
	}
}

// ParseNumbers decodes one numeric item field. Elements are stripped of
// currency symbols before conversion; anything that still fails becomes 0
// and raises the warning flag.
func ParseNumbers(value any) (numbers []float64, warned bool) {
	elements, warned := ParseStrings(value)
	if len(elements) == 0 {
		return nil, warned
	}
	numbers = make([]float64, len(elements))
	for i, element := range elements {
		number, ok := ParseNumber(element)
		if !ok {
			warned = true
		}
		numbers[i] = number
	}
	return numbers, warned
}

// ParseNumber converts one element to a decimal, tolerating currency symbols
// and grouping characters. Unparseable input yields 0.
func ParseNumber(element string) (float64, bool) {
	cleaned := nonNumericPattern.ReplaceAllString(element, "")
	if cleaned == "" {
		return 0, false
	}
	number, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}

func parseStringField(text string) ([]string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	warned := false
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		var decoded []any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return cleanElements(stringifyAll(decoded)), false
		}
		// Looked like a JSON array but was not one; fall back to splitting.
		warned = true
	}

	delimiter := detectDelimiter(trimmed)
	parts := strings.Split(trimmed, delimiter)
	elements := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		if part == "" {
			continue
		}
		elements = append(elements, part)
	}
	return elements, warned
}

func detectDelimiter(text string) string {
	best := ","
	bestCount := 0
	for _, delimiter := range commonDelimiters {
		if count := strings.Count(text, delimiter); count > bestCount {
			best = delimiter
			bestCount = count
		}
	}
	return best
}

func stringifyAll(values []any) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func cleanElements(elements []string) []string {
	out := make([]string, 0, len(elements))
	for _, element := range elements {
		element = strings.TrimSpace(element)
		if element == "" {
			continue
		}
		out = append(out, element)
	}
	return out
}

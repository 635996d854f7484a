package sqlguard

import (
	"fmt"
	"strings"
)

// tenantScan counts equality comparisons of the tenant column against the
// bound tenant within the given tokens, and reports whether any comparison
// binds a different tenant. The scan covers every depth: a predicate for
// another tenant anywhere in the statement is grounds for rejection.
func tenantScan(tokens []token, column, tenantID string) (matches int, mismatch bool) {
	for i := 0; i+2 < len(tokens); i++ {
		value, ok := tenantComparisonAt(tokens, i, column)
		if !ok {
			continue
		}
		if value == tenantID {
			matches++
		} else {
			mismatch = true
		}
	}
	return matches, mismatch
}

// tenantComparisonAt reports the literal of a `column = 'value'` comparison
// starting at token i.
func tenantComparisonAt(tokens []token, i int, column string) (string, bool) {
	if i+2 >= len(tokens) || !isTenantColumn(tokens[i], column) {
		return "", false
	}
	if tokens[i+1].kind != tokenOperator || tokens[i+1].text != "=" {
		return "", false
	}
	if tokens[i+2].kind != tokenString {
		return "", false
	}
	return tokens[i+2].value, true
}

// scopedMatches counts tenant comparisons that constrain the entire clause.
// A comparison under a NOT, or inside a parenthesized group that carries its
// own OR, can be widened past the tenant, so it does not count; the caller
// then appends a conjunct that does. A redundant predicate is harmless, a
// missed widening is not.
func scopedMatches(tokens []token, column, tenantID string) int {
	if len(tokens) == 0 {
		return 0
	}
	base := clauseDepth(tokens)
	count := 0
	negated := false
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.depth != base {
			continue
		}
		switch {
		case tok.kind == tokenWord && tok.upper == "OR":
			return 0
		case tok.kind == tokenWord && tok.upper == "NOT":
			negated = true
		case tok.kind == tokenWord && tok.upper == "AND":
			negated = false
		case tok.kind == tokenOperator && tok.text == "(":
			end := closeParen(tokens, i, base)
			if !negated {
				count += scopedMatches(tokens[i+1:end], column, tenantID)
			}
			negated = false
			i = end
		default:
			value, ok := tenantComparisonAt(tokens, i, column)
			if !ok {
				continue
			}
			if !negated && value == tenantID {
				count++
			}
			negated = false
			i += 2
		}
	}
	return count
}

func closeParen(tokens []token, open, depth int) int {
	for i := open + 1; i < len(tokens); i++ {
		if tokens[i].kind == tokenOperator && tokens[i].text == ")" && tokens[i].depth == depth {
			return i
		}
	}
	return len(tokens)
}

func clauseDepth(tokens []token) int {
	depth := tokens[0].depth
	for _, tok := range tokens[1:] {
		if tok.depth < depth {
			depth = tok.depth
		}
	}
	return depth
}

func isTenantColumn(tok token, column string) bool {
	if tok.kind != tokenWord {
		return false
	}
	name := strings.ToLower(tok.text)
	column = strings.ToLower(column)
	return name == column || strings.HasSuffix(name, "."+column)
}

// outsideSubqueries filters a token slice down to the tokens that are not
// inside a nested SELECT. A tenant predicate within a subquery constrains
// only that subquery, so it must not satisfy the outer statement's scoping.
func outsideSubqueries(tokens []token) []token {
	out := make([]token, 0, len(tokens))
	sub := -1
	for _, tok := range tokens {
		if sub >= 0 {
			if tok.depth >= sub {
				continue
			}
			sub = -1
		}
		if tok.kind == tokenWord && tok.upper == "SELECT" {
			sub = tok.depth
			continue
		}
		out = append(out, tok)
	}
	return out
}

// splitOrBranches divides a WHERE clause on top-level OR keywords. A clause
// with no top-level OR comes back as a single branch.
func splitOrBranches(where []token) [][]token {
	if len(where) == 0 {
		return nil
	}
	base := where[0].depth
	var branches [][]token
	start := 0
	for i, tok := range where {
		if tok.kind == tokenWord && tok.depth == base && tok.upper == "OR" {
			branches = append(branches, where[start:i])
			start = i + 1
		}
	}
	branches = append(branches, where[start:])
	return branches
}

// tenantPredicate renders the equality predicate appended or inserted when a
// statement arrives without tenant scoping. Single quotes in the tenant id
// are doubled so the literal cannot break out of its quoting.
func tenantPredicate(column, tenantID string) string {
	return fmt.Sprintf("%s = '%s'", column, strings.ReplaceAll(tenantID, "'", "''"))
}

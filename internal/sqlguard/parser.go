package sqlguard

import "strings"

// shape holds the clause boundaries of one SELECT branch as token indexes.
// whereKeyword is -1 when the statement has no WHERE clause; tailStart points
// at the first trailing clause (GROUP BY, ORDER BY, LIMIT, ...) or one past
// the last token.
type shape struct {
	whereKeyword int
	whereStart   int
	whereEnd     int
	tailStart    int
}

var trailingClauseKeywords = map[string]struct{}{
	"GROUP":  {},
	"HAVING": {},
	"ORDER":  {},
	"LIMIT":  {},
	"OFFSET": {},
	"FETCH":  {},
}

var joinKeywords = map[string]struct{}{
	"JOIN":    {},
	"INNER":   {},
	"OUTER":   {},
	"LEFT":    {},
	"RIGHT":   {},
	"FULL":    {},
	"CROSS":   {},
	"NATURAL": {},
}

// parseShape checks one union-free SELECT branch against the accepted
// statement shape: a select list, a single allowed table, an optional WHERE
// boolean tree, and optional trailing clauses. Joins, derived tables, and
// table sources outside the allow list are rejected. Subqueries are walked
// the same way: every SELECT at any depth must read from an allowed table.
func parseShape(tokens []token, allowed map[string]struct{}) (shape, Reason) {
	result := shape{whereKeyword: -1, whereStart: -1, whereEnd: -1, tailStart: len(tokens)}
	if len(tokens) == 0 {
		return result, ReasonMalformed
	}
	if tokens[0].kind != tokenWord || tokens[0].upper != "SELECT" {
		return result, ReasonNotSelect
	}

	for _, tok := range tokens {
		if tok.kind == tokenWord {
			if _, ok := joinKeywords[tok.upper]; ok {
				return result, ReasonMalformed
			}
		}
	}

	topFrom := -1
	for i, tok := range tokens {
		if tok.kind != tokenWord || tok.upper != "SELECT" {
			continue
		}
		fromIdx, reason := checkTableSource(tokens, i, allowed)
		if reason != ReasonNone {
			return result, reason
		}
		if i == 0 {
			topFrom = fromIdx
		}
	}
	if topFrom <= 1 {
		// Empty select list, or FROM never found for the outer SELECT.
		return result, ReasonMalformed
	}

	for i := topFrom; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.kind != tokenWord || tok.depth != 0 {
			continue
		}
		if tok.upper == "WHERE" {
			result.whereKeyword = i
			result.whereStart = i + 1
			continue
		}
		if _, ok := trailingClauseKeywords[tok.upper]; ok {
			if result.whereKeyword >= 0 && result.whereEnd < 0 {
				result.whereEnd = i
			}
			if i < result.tailStart {
				result.tailStart = i
			}
		}
	}
	if result.whereKeyword >= 0 {
		if result.whereEnd < 0 {
			result.whereEnd = len(tokens)
		}
		if result.whereStart >= result.whereEnd {
			return result, ReasonMalformed
		}
	}
	return result, ReasonNone
}

// checkTableSource verifies the FROM clause belonging to the SELECT at
// selectIdx: the source must be a single bare table on the allow list,
// optionally aliased, immediately followed by a clause keyword or the end of
// the enclosing scope. Returns the index of the FROM token.
func checkTableSource(tokens []token, selectIdx int, allowed map[string]struct{}) (int, Reason) {
	depth := tokens[selectIdx].depth
	fromIdx := -1
	for i := selectIdx + 1; i < len(tokens); i++ {
		if tokens[i].depth < depth {
			break
		}
		if tokens[i].depth == depth && tokens[i].kind == tokenWord && tokens[i].upper == "FROM" {
			fromIdx = i
			break
		}
	}
	if fromIdx < 0 || fromIdx+1 >= len(tokens) {
		return -1, ReasonMalformed
	}

	tableTok := tokens[fromIdx+1]
	if tableTok.kind != tokenWord {
		return -1, ReasonMalformed
	}
	if _, ok := allowed[normalizeTable(tableTok.text)]; !ok {
		return -1, ReasonTableNotAllowed
	}

	next := fromIdx + 2
	if next < len(tokens) && tokens[next].kind == tokenWord && tokens[next].upper == "AS" {
		next++
	}
	if next < len(tokens) && tokens[next].kind == tokenWord && !isClauseKeyword(tokens[next].upper) && tokens[next].depth == depth {
		next++ // bare alias
	}
	if next >= len(tokens) || tokens[next].depth < depth {
		return fromIdx, ReasonNone
	}
	if tokens[next].kind == tokenWord && isClauseKeyword(tokens[next].upper) {
		return fromIdx, ReasonNone
	}
	return -1, ReasonMalformed
}

func isClauseKeyword(upper string) bool {
	if upper == "WHERE" || upper == "UNION" {
		return true
	}
	_, ok := trailingClauseKeywords[upper]
	return ok
}

func normalizeTable(name string) string {
	name = strings.ToLower(name)
	return strings.TrimPrefix(name, "public.")
}

// splitUnionBranches divides a statement on top-level UNION [ALL|DISTINCT]
// boundaries. separators[i] is the keyword text joining branch i and i+1.
func splitUnionBranches(tokens []token) (branches [][]token, separators []string) {
	start := 0
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if tok.kind == tokenWord && tok.depth == 0 && tok.upper == "UNION" {
			branches = append(branches, tokens[start:i])
			separator := "UNION"
			i++
			if i < len(tokens) && tokens[i].kind == tokenWord && (tokens[i].upper == "ALL" || tokens[i].upper == "DISTINCT") {
				separator += " " + tokens[i].upper
				i++
			}
			separators = append(separators, separator)
			start = i
			continue
		}
		i++
	}
	branches = append(branches, tokens[start:])
	return branches, separators
}

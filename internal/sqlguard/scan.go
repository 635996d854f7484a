package sqlguard

import (
	"errors"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenNumber
	tokenString
	tokenOperator
)

// token is one lexical unit of a statement. start/end are byte offsets into
// the scanned text so clauses can be sliced back out verbatim for rewriting.
type token struct {
	kind  tokenKind
	text  string
	upper string // uppercased text, words only
	value string // unquoted content, string literals only
	depth int    // parenthesis nesting depth
	start int
	end   int
}

var (
	errUnterminatedString = errors.New("unterminated string literal")
	errUnbalancedParens   = errors.New("unbalanced parentheses")
	errCommentMarker      = errors.New("comment marker")
)

// scan tokenizes a statement. Comment markers outside string literals abort
// the scan: obfuscation via -- or /* is rejected rather than interpreted.
func scan(sql string) ([]token, error) {
	var tokens []token
	depth := 0
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			literal, width, ok := scanStringLiteral(sql[i:])
			if !ok {
				return nil, errUnterminatedString
			}
			tokens = append(tokens, token{kind: tokenString, text: sql[i : i+width], value: literal, depth: depth, start: i, end: i + width})
			i += width
		case c == '"':
			end := strings.IndexByte(sql[i+1:], '"')
			if end < 0 {
				return nil, errUnterminatedString
			}
			inner := sql[i+1 : i+1+end]
			width := end + 2
			tokens = append(tokens, token{kind: tokenWord, text: sql[i : i+width], upper: strings.ToUpper(inner), depth: depth, start: i, end: i + width})
			i += width
		case c == '(':
			tokens = append(tokens, token{kind: tokenOperator, text: "(", depth: depth, start: i, end: i + 1})
			depth++
			i++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, errUnbalancedParens
			}
			tokens = append(tokens, token{kind: tokenOperator, text: ")", depth: depth, start: i, end: i + 1})
			i++
		case c == '-' && i+1 < n && sql[i+1] == '-':
			return nil, errCommentMarker
		case c == '/' && i+1 < n && sql[i+1] == '*':
			return nil, errCommentMarker
		case isIdentStart(rune(c)):
			j := i + 1
			for j < n && isIdentPart(rune(sql[j])) {
				j++
			}
			word := sql[i:j]
			tokens = append(tokens, token{kind: tokenWord, text: word, upper: strings.ToUpper(word), depth: depth, start: i, end: j})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < n && (sql[j] >= '0' && sql[j] <= '9' || sql[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: sql[i:j], depth: depth, start: i, end: j})
			i = j
		default:
			j := i + 1
			// Fold two-character comparison operators into one token.
			if j < n && (c == '<' || c == '>' || c == '!') && (sql[j] == '=' || sql[j] == '>') {
				j++
			}
			tokens = append(tokens, token{kind: tokenOperator, text: sql[i:j], depth: depth, start: i, end: j})
			i = j
		}
	}

	if depth != 0 {
		return nil, errUnbalancedParens
	}
	return tokens, nil
}

// scanStringLiteral consumes a single-quoted literal starting at s[0] == '\''.
// Doubled quotes escape. Returns the unescaped value and the consumed width.
func scanStringLiteral(s string) (string, int, bool) {
	var value strings.Builder
	i := 1
	for i < len(s) {
		if s[i] == '\'' {
			if i+1 < len(s) && s[i+1] == '\'' {
				value.WriteByte('\'')
				i += 2
				continue
			}
			return value.String(), i + 1, true
		}
		value.WriteByte(s[i])
		i++
	}
	return "", 0, false
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$'
}

// splitStatements divides a token stream on top-level semicolons. Empty
// segments (trailing terminators) are dropped.
func splitStatements(tokens []token) [][]token {
	var segments [][]token
	start := 0
	for i, tok := range tokens {
		if tok.kind == tokenOperator && tok.text == ";" && tok.depth == 0 {
			if i > start {
				segments = append(segments, tokens[start:i])
			}
			start = i + 1
		}
	}
	if start < len(tokens) {
		segments = append(segments, tokens[start:])
	}
	return segments
}

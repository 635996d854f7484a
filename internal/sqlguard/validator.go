package sqlguard

import (
	"errors"
	"strings"
)

const defaultMaxStatementLength = 4096

// blockedKeywords are rejected wherever they appear outside string literals.
// Statement-leading DML/DDL is already caught by the shape check; scanning
// every token closes off nested and chained variants.
var blockedKeywords = map[string]struct{}{
	"DROP":     {},
	"DELETE":   {},
	"UPDATE":   {},
	"INSERT":   {},
	"ALTER":    {},
	"CREATE":   {},
	"TRUNCATE": {},
	"GRANT":    {},
	"REVOKE":   {},
	"EXEC":     {},
	"EXECUTE":  {},
	"INTO":     {},
}

// Validator screens candidate SQL before it may reach the database. It
// accepts only a single SELECT over the configured allow-listed tables and
// guarantees the returned statement carries the bound tenant's predicate.
type Validator struct {
	tenantColumn  string
	allowedTables map[string]struct{}
	maxLength     int
}

func New(tenantColumn string, allowedTables []string) *Validator {
	allowed := make(map[string]struct{}, len(allowedTables))
	for _, table := range allowedTables {
		allowed[normalizeTable(strings.TrimSpace(table))] = struct{}{}
	}
	return &Validator{
		tenantColumn:  tenantColumn,
		allowedTables: allowed,
		maxLength:     defaultMaxStatementLength,
	}
}

// Validate screens one candidate statement for the given tenant. On success
// the verdict's SQL is safe to execute verbatim: it reads only allow-listed
// tables and every union branch is scoped to the tenant. A missing tenant
// predicate is repaired by rewriting; one bound to another tenant rejects.
func (v *Validator) Validate(sql, tenantID string) Verdict {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return reject(ReasonEmptyStatement)
	}
	if tenantID == "" {
		return reject(ReasonTenantMissing)
	}
	if len(trimmed) > v.maxLength {
		return reject(ReasonTooLong)
	}

	tokens, err := scan(trimmed)
	if err != nil {
		if errors.Is(err, errCommentMarker) {
			return reject(ReasonCommentMarker)
		}
		return reject(ReasonMalformed)
	}

	statements := splitStatements(tokens)
	if len(statements) == 0 {
		return reject(ReasonEmptyStatement)
	}
	if len(statements) > 1 {
		return reject(ReasonMultiStatement)
	}
	statement := statements[0]

	for _, tok := range statement {
		if tok.kind != tokenWord {
			continue
		}
		if _, blocked := blockedKeywords[tok.upper]; blocked {
			return reject(ReasonBlockedKeyword)
		}
	}

	branches, separators := splitUnionBranches(statement)
	rewrittenAny := false
	parts := make([]string, 0, len(branches)*2-1)
	for i, branch := range branches {
		branchSQL, rewritten, reason := v.checkBranch(trimmed, branch, tenantID)
		if reason != ReasonNone {
			if len(branches) > 1 && reason == ReasonTableNotAllowed {
				reason = ReasonUnionNotAllowed
			}
			return reject(reason)
		}
		if i > 0 {
			parts = append(parts, separators[i-1])
		}
		parts = append(parts, branchSQL)
		rewrittenAny = rewrittenAny || rewritten
	}

	return Verdict{Allowed: true, SQL: strings.Join(parts, " "), Rewritten: rewrittenAny}
}

// checkBranch validates a single union-free SELECT branch and returns it with
// tenant scoping guaranteed, rewriting when the predicate is absent.
func (v *Validator) checkBranch(src string, tokens []token, tenantID string) (string, bool, Reason) {
	parsed, reason := parseShape(tokens, v.allowedTables)
	if reason != ReasonNone {
		return "", false, reason
	}

	if _, mismatch := tenantScan(tokens, v.tenantColumn, tenantID); mismatch {
		return "", false, ReasonTenantMismatch
	}

	branchStart := tokens[0].start
	branchEnd := tokens[len(tokens)-1].end
	predicate := tenantPredicate(v.tenantColumn, tenantID)

	if parsed.whereKeyword < 0 {
		// No WHERE clause: insert one ahead of any trailing clauses.
		insertAt := branchEnd
		if parsed.tailStart < len(tokens) {
			insertAt = tokens[parsed.tailStart].start
		}
		head := strings.TrimRight(src[branchStart:insertAt], " \t\n\r")
		rewritten := head + " WHERE " + predicate
		if insertAt < branchEnd {
			rewritten += " " + src[insertAt:branchEnd]
		}
		return rewritten, true, ReasonNone
	}

	where := tokens[parsed.whereStart:parsed.whereEnd]
	orBranches := splitOrBranches(where)
	if len(orBranches) > 1 {
		// Every top-level OR branch must carry the tenant predicate itself;
		// appending AND to a disjunction would not constrain all branches.
		for _, orBranch := range orBranches {
			if scopedMatches(outsideSubqueries(orBranch), v.tenantColumn, tenantID) == 0 {
				return "", false, ReasonUnsafeOr
			}
		}
		return src[branchStart:branchEnd], false, ReasonNone
	}

	if scopedMatches(outsideSubqueries(where), v.tenantColumn, tenantID) > 0 {
		return src[branchStart:branchEnd], false, ReasonNone
	}

	appendAt := where[len(where)-1].end
	rewritten := src[branchStart:appendAt] + " AND " + predicate
	if appendAt < branchEnd {
		rewritten += " " + strings.TrimLeft(src[appendAt:branchEnd], " \t\n\r")
	}
	return rewritten, true, ReasonNone
}

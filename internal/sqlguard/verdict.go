package sqlguard

// Reason is a machine-readable rejection code. Reasons feed audit logs and
// metrics only; user-facing responses carry a generic message instead.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonEmptyStatement  Reason = "empty_statement"
	ReasonTooLong         Reason = "statement_too_long"
	ReasonMultiStatement  Reason = "multi_statement"
	ReasonNotSelect       Reason = "not_select"
	ReasonBlockedKeyword  Reason = "blocked_keyword"
	ReasonCommentMarker   Reason = "comment_marker"
	ReasonTableNotAllowed Reason = "table_not_allowed"
	ReasonUnionNotAllowed Reason = "union_not_allowed"
	ReasonMalformed       Reason = "malformed_statement"
	ReasonTenantMissing   Reason = "tenant_not_bound"
	ReasonTenantMismatch  Reason = "tenant_mismatch"
	ReasonUnsafeOr        Reason = "unsafe_or_branch"
)

// Verdict is the outcome of validating one candidate statement. When Allowed
// is true, SQL holds the statement that may reach the executor; it differs
// from the input iff Rewritten is true.
type Verdict struct {
	Allowed   bool
	Reason    Reason
	SQL       string
	Rewritten bool
}

func reject(reason Reason) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}

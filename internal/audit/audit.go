// Package audit records every governed query decision. Audit records are the
// only place raw SQL, rejection reasons, and tenant ids appear together;
// user-facing responses never carry them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Outcome values for one governed request.
const (
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeCacheHit    = "cache_hit"
	OutcomeExecuted    = "executed"
	OutcomeFailed      = "failed"
)

type Record struct {
	ID           string        `json:"id"`
	Time         time.Time     `json:"time"`
	TraceID      string        `json:"trace_id,omitempty"`
	TenantID     string        `json:"tenant_id"`
	SessionID    string        `json:"session_id"`
	Question     string        `json:"question,omitempty"`
	CandidateSQL string        `json:"candidate_sql,omitempty"`
	ExecutedSQL  string        `json:"executed_sql,omitempty"`
	Outcome      string        `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	Rewritten    bool          `json:"rewritten,omitempty"`
	RowCount     int           `json:"row_count,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Archiver persists records beyond the process log, typically to object
// storage for retention.
type Archiver interface {
	Archive(ctx context.Context, record Record) error
}

// Recorder writes records to the structured log and, when configured,
// forwards them to an archiver. Archival failures are logged and swallowed:
// an audit sink outage must not fail the request it describes.
type Recorder struct {
	logger   *slog.Logger
	archiver Archiver
}

func NewRecorder(logger *slog.Logger, archiver Archiver) *Recorder {
	return &Recorder{logger: logger, archiver: archiver}
}

func (r *Recorder) Record(ctx context.Context, record Record) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Time.IsZero() {
		record.Time = time.Now().UTC()
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "query_audit",
			slog.String("audit_id", record.ID),
			slog.String("trace_id", record.TraceID),
			slog.String("tenant_id", record.TenantID),
			slog.String("session_id", record.SessionID),
			slog.String("outcome", record.Outcome),
			slog.String("reason", record.Reason),
			slog.Bool("rewritten", record.Rewritten),
			slog.String("candidate_sql", record.CandidateSQL),
			slog.String("executed_sql", record.ExecutedSQL),
			slog.Int("row_count", record.RowCount),
			slog.String("duration", record.Duration.String()),
		)
	}

	if r.archiver == nil {
		return
	}
	if err := r.archiver.Archive(ctx, record); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "audit archive failed",
			slog.String("audit_id", record.ID),
			slog.String("error", err.Error()),
		)
	}
}

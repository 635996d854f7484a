// Package governor runs a candidate statement through the full governance
// pipeline: validation, rate limiting, cache lookup, execution, and item
// expansion. It is the only path by which translated SQL may reach the
// database.
package governor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgergate/ledgergate/internal/audit"
	"github.com/ledgergate/ledgergate/internal/cache"
	"github.com/ledgergate/ledgergate/internal/executor"
	"github.com/ledgergate/ledgergate/internal/items"
	"github.com/ledgergate/ledgergate/internal/observability"
	"github.com/ledgergate/ledgergate/internal/ratelimit"
	"github.com/ledgergate/ledgergate/internal/sqlguard"
)

type Request struct {
	Question     string
	TenantID     string
	SessionID    string
	CandidateSQL string
}

type Response struct {
	Columns  []string
	Rows     [][]any
	Expanded bool
	Stats    *items.Statistics
	CacheHit bool
	CacheAge time.Duration
}

// Dependencies are the collaborators one Governor coordinates.
type Dependencies struct {
	Validator  *sqlguard.Validator
	Limiter    *ratelimit.Limiter
	Cache      cache.Store
	Engine     executor.Engine
	Expander   *items.Expander
	Classifier *items.Classifier
	Recorder   *audit.Recorder
	Logger     *slog.Logger
	MaxRows    int
}

type Governor struct {
	deps Dependencies
}

func New(deps Dependencies) *Governor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Governor{deps: deps}
}

// Govern processes one question end to end. Rejections happen before any
// database work; results are cached pre-expansion, and expansion plus
// product filtering are recomputed per request.
func (g *Governor) Govern(ctx context.Context, req Request) (Response, error) {
	traceID := observability.TraceIDFromContext(ctx)

	verdict := g.deps.Validator.Validate(req.CandidateSQL, req.TenantID)
	observability.ObserveVerdict(verdict.Allowed, string(verdict.Reason))
	if !verdict.Allowed {
		g.deps.Recorder.Record(ctx, audit.Record{
			TraceID:      traceID,
			TenantID:     req.TenantID,
			SessionID:    req.SessionID,
			Question:     req.Question,
			CandidateSQL: req.CandidateSQL,
			Outcome:      audit.OutcomeRejected,
			Reason:       string(verdict.Reason),
		})
		return Response{}, &ValidationError{Reason: verdict.Reason}
	}

	decision := g.deps.Limiter.Allow(req.TenantID + ":" + req.SessionID)
	if !decision.Allowed {
		observability.IncrementRateLimitRejection()
		g.deps.Recorder.Record(ctx, audit.Record{
			TraceID:   traceID,
			TenantID:  req.TenantID,
			SessionID: req.SessionID,
			Question:  req.Question,
			Outcome:   audit.OutcomeRateLimited,
		})
		return Response{}, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	key := cache.Key(req.TenantID, verdict.SQL)
	entry, age, hit, err := g.deps.Cache.Get(ctx, key)
	if err != nil {
		g.deps.Logger.WarnContext(ctx, "cache lookup failed", slog.String("error", err.Error()))
		hit = false
	}
	observability.ObserveCacheLookup(hit)

	var result executor.Result
	if hit {
		result = executor.Result{Columns: entry.Columns, Rows: entry.Rows}
		g.deps.Recorder.Record(ctx, audit.Record{
			TraceID:     traceID,
			TenantID:    req.TenantID,
			SessionID:   req.SessionID,
			Question:    req.Question,
			ExecutedSQL: verdict.SQL,
			Outcome:     audit.OutcomeCacheHit,
			Rewritten:   verdict.Rewritten,
			RowCount:    len(result.Rows),
		})
	} else {
		result, err = g.deps.Engine.Execute(ctx, executor.Request{SQL: verdict.SQL, RowLimit: g.deps.MaxRows})
		if err != nil {
			g.deps.Recorder.Record(ctx, audit.Record{
				TraceID:     traceID,
				TenantID:    req.TenantID,
				SessionID:   req.SessionID,
				Question:    req.Question,
				ExecutedSQL: verdict.SQL,
				Outcome:     audit.OutcomeFailed,
				Reason:      err.Error(),
			})
			return Response{}, &ExecutionError{Err: err, Retryable: true}
		}
		observability.ObserveExecutorLatency(result.Duration)

		// A cancelled request must not leave a partial cache entry behind.
		if ctx.Err() != nil {
			return Response{}, &ExecutionError{Err: ctx.Err(), Retryable: true}
		}
		if err := g.deps.Cache.Put(ctx, key, cache.Entry{Columns: result.Columns, Rows: result.Rows}); err != nil {
			g.deps.Logger.WarnContext(ctx, "cache store failed", slog.String("error", err.Error()))
		}
		g.deps.Recorder.Record(ctx, audit.Record{
			TraceID:     traceID,
			TenantID:    req.TenantID,
			SessionID:   req.SessionID,
			Question:    req.Question,
			ExecutedSQL: verdict.SQL,
			Outcome:     audit.OutcomeExecuted,
			Rewritten:   verdict.Rewritten,
			RowCount:    len(result.Rows),
			Duration:    result.Duration,
		})
	}

	response := Response{
		Columns:  result.Columns,
		Rows:     result.Rows,
		CacheHit: hit,
		CacheAge: age,
	}

	if g.deps.Classifier.IsItemQuery(req.Question) {
		expansion := g.deps.Expander.Expand(result.Columns, result.Rows)
		for i := 0; i < expansion.Warnings; i++ {
			observability.IncrementItemParseWarning()
		}
		if expansion.Warnings > 0 {
			g.deps.Logger.WarnContext(ctx, "item field parse warnings",
				slog.Int("count", expansion.Warnings),
				slog.String("tenant_id", req.TenantID),
			)
		}
		if expansion.Expanded {
			observability.ObserveExpansion(len(expansion.Rows))
			expansion = items.FilterRows(expansion, g.deps.Classifier.ProductFilters(req.Question))
			stats := items.Summarize(expansion)
			response.Columns = expansion.Columns
			response.Rows = expansion.Rows
			response.Expanded = true
			response.Stats = &stats
		}
	}

	return response, nil
}

// Flush drops the tenant's cached results.
func (g *Governor) Flush(ctx context.Context, tenantID string) (int, error) {
	return g.deps.Cache.Flush(ctx, tenantID)
}

// EndSession releases per-session limiter state.
func (g *Governor) EndSession(tenantID, sessionID string) {
	g.deps.Limiter.Forget(tenantID + ":" + sessionID)
}

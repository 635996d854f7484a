// Package executor defines the contract for running validated statements
// against the invoice store.
package executor

import (
	"context"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Engine runs one validated SELECT. Implementations must honor ctx
// cancellation and cap the returned row count at Request.RowLimit.
type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

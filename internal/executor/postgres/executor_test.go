package postgres

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ledgergate/ledgergate/internal/executor"
)

func TestExecuteWrapsStatementWithRowLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM (SELECT case_id, total FROM ai_invoice WHERE vendor_id = 'acme') AS q LIMIT 1000`,
	)).WillReturnRows(sqlmock.NewRows([]string{"case_id", "total"}).
		AddRow("C-1", 120.5).
		AddRow("C-2", 75.0))

	engine := NewEngine(db, 30*time.Second)
	result, err := engine.Execute(context.Background(), executor.Request{
		SQL:      "SELECT case_id, total FROM ai_invoice WHERE vendor_id = 'acme';",
		RowLimit: 1000,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(result.Columns, []string{"case_id", "total"}) {
		t.Fatalf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %v, want 2", result.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteNormalizesByteSlices(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT items_description FROM ai_invoice WHERE vendor_id = 'acme'`)).
		WillReturnRows(sqlmock.NewRows([]string{"items_description"}).AddRow([]byte(`["A","B"]`)))

	engine := NewEngine(db, time.Second)
	result, err := engine.Execute(context.Background(), executor.Request{
		SQL: "SELECT items_description FROM ai_invoice WHERE vendor_id = 'acme'",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != `["A","B"]` {
		t.Fatalf("value = %#v, want string", result.Rows[0][0])
	}
}

func TestExecuteEmptySQL(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	engine := NewEngine(db, time.Second)
	if _, err := engine.Execute(context.Background(), executor.Request{SQL: " ; "}); err == nil {
		t.Fatal("empty statement should error")
	}
}

func TestExecutePropagatesQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	failure := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total FROM ai_invoice WHERE vendor_id = 'acme'`)).
		WillReturnError(failure)

	engine := NewEngine(db, time.Second)
	if _, err := engine.Execute(context.Background(), executor.Request{
		SQL: "SELECT total FROM ai_invoice WHERE vendor_id = 'acme'",
	}); !errors.Is(err, failure) {
		t.Fatalf("err = %v, want wrapped %v", err, failure)
	}
}

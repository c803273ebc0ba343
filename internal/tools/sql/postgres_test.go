package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresHandlerRunReadOnlyReturnsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "alice").
		AddRow(2, "bob")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)
	mock.ExpectRollback()

	h := NewPostgresHandler(PostgresConfig{MaxRowLimit: 10})
	out, err := h.runReadOnly(context.Background(), db, "SELECT id, name FROM users LIMIT 10", 10)
	if err != nil {
		t.Fatalf("runReadOnly: %v", err)
	}
	if out.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", out.RowCount)
	}
	if out.Truncated {
		t.Fatal("expected Truncated=false when under the limit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresHandlerRunReadOnlyTruncatesAtLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery("SELECT id FROM users").WillReturnRows(rows)
	mock.ExpectRollback()

	h := NewPostgresHandler(PostgresConfig{MaxRowLimit: 10})
	out, err := h.runReadOnly(context.Background(), db, "SELECT id FROM users LIMIT 2", 2)
	if err != nil {
		t.Fatalf("runReadOnly: %v", err)
	}
	if out.RowCount != 2 {
		t.Fatalf("expected 2 rows after truncation, got %d", out.RowCount)
	}
	if !out.Truncated {
		t.Fatal("expected Truncated=true when rows exceed the limit")
	}
}

func TestValidateConnectionStringRejectsNonPostgresScheme(t *testing.T) {
	if err := validateConnectionString("mysql://user@host/db"); err == nil {
		t.Fatal("expected error for non-postgres scheme")
	}
}

func TestValidateConnectionStringRequiresHost(t *testing.T) {
	if err := validateConnectionString("postgres:///db"); err == nil {
		t.Fatal("expected error for missing host")
	}
}

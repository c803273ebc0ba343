package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/nocodo/manager/internal/tools"
)

const (
	postgresDefaultLimit     = 100
	postgresMaxLimit         = 1000
	postgresStatementTimeout = 5 * time.Second
)

// PostgresConfig controls the postgres_reader tool's row limit. The
// connection_string argument, unlike the sql tool's database argument, is
// not resolved under a base directory: it names a network endpoint, not a
// filesystem path.
type PostgresConfig struct {
	MaxRowLimit int
}

// PostgresHandler implements the postgres_reader tool (§4.3): read-only
// access to a PostgreSQL database, either via an arbitrary validated SELECT
// query or via a fixed set of schema-reflection targets that query
// INFORMATION_SCHEMA and the pg_catalog system views. Every query runs
// inside a BEGIN READ ONLY transaction with a statement_timeout, which is
// always rolled back afterward.
type PostgresHandler struct {
	maxRowLimit int
}

// NewPostgresHandler builds a postgres_reader handler from cfg.
func NewPostgresHandler(cfg PostgresConfig) *PostgresHandler {
	max := cfg.MaxRowLimit
	if max <= 0 {
		max = postgresMaxLimit
	}
	return &PostgresHandler{maxRowLimit: max}
}

type postgresArgs struct {
	ConnectionString string `json:"connection_string"`
	Query            string `json:"query"`
	Reflect          string `json:"reflect"`
	Schema           string `json:"schema"`
	Table            string `json:"table"`
	Limit            int    `json:"limit"`
}

type postgresOutput struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	Query     string   `json:"query"`
}

func (h *PostgresHandler) Execute(ctx context.Context, call tools.Call) tools.Result {
	var args postgresArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return tools.Result{Err: fmt.Errorf("invalid arguments: %w", err)}
	}
	if err := validateConnectionString(args.ConnectionString); err != nil {
		return tools.Result{Err: err}
	}
	if args.Query == "" && args.Reflect == "" {
		return tools.Result{Err: fmt.Errorf("either query or reflect is required")}
	}

	var query string
	var isCatalog bool
	if args.Reflect != "" {
		built, err := buildReflectionQuery(args.Reflect, args.Schema, args.Table)
		if err != nil {
			return tools.Result{Err: err}
		}
		query = built
		isCatalog = true
	} else {
		upper := strings.ToUpper(args.Query)
		isCatalog = strings.Contains(upper, "INFORMATION_SCHEMA") || strings.Contains(upper, "PG_CATALOG") ||
			strings.HasPrefix(strings.TrimSpace(upper), "SELECT * FROM PG_")
		if isCatalog {
			if err := ValidateInformationSchemaQuery(args.Query); err != nil {
				return tools.Result{Err: err}
			}
		} else {
			if err := ValidateQuery(args.Query); err != nil {
				return tools.Result{Err: err}
			}
		}
		query = args.Query
	}

	limit := args.Limit
	if limit <= 0 {
		limit = postgresDefaultLimit
	}
	if limit > h.maxRowLimit {
		limit = h.maxRowLimit
	}
	if !isCatalog {
		query = ApplyLimit(query, limit)
	} else {
		query = strings.TrimRight(strings.TrimSpace(query), ";")
	}

	db, err := sql.Open("postgres", args.ConnectionString)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("postgres: open connection: %w", err)}
	}
	defer db.Close()

	out, err := h.runReadOnly(ctx, db, query, limit)
	if err != nil {
		return tools.Result{Err: err}
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("encode result: %w", err)}
	}
	return tools.Result{Payload: payload}
}

// runReadOnly executes query inside a read-only transaction with a
// statement timeout, rolling back unconditionally once rows have been
// collected (the transaction never commits, since it never writes).
func (h *PostgresHandler) runReadOnly(ctx context.Context, db *sql.DB, query string, limit int) (postgresOutput, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return postgresOutput{}, fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer tx.Rollback()

	timeoutMS := postgresStatementTimeout.Milliseconds()
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = %d", timeoutMS)); err != nil {
		return postgresOutput{}, fmt.Errorf("postgres: set statement_timeout: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return postgresOutput{}, fmt.Errorf("postgres: query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return postgresOutput{}, fmt.Errorf("postgres: read columns: %w", err)
	}

	out := postgresOutput{Columns: cols, Rows: [][]any{}, Query: query}
	for rows.Next() {
		if len(out.Rows) >= limit {
			out.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return postgresOutput{}, fmt.Errorf("postgres: scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return postgresOutput{}, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	out.RowCount = len(out.Rows)
	return out, nil
}

func validateConnectionString(conn string) error {
	if conn == "" {
		return fmt.Errorf("postgres: connection_string is required")
	}
	if !strings.HasPrefix(conn, "postgres://") && !strings.HasPrefix(conn, "postgresql://") {
		return fmt.Errorf("postgres: connection_string must start with postgres:// or postgresql://")
	}
	u, err := url.Parse(conn)
	if err != nil {
		return fmt.Errorf("postgres: invalid connection_string: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("postgres: connection_string must include a host")
	}
	return nil
}

// buildReflectionQuery builds the fixed INFORMATION_SCHEMA/pg_catalog query
// for one of the supported reflection targets.
func buildReflectionQuery(target, schema, table string) (string, error) {
	if schema == "" {
		schema = "public"
	}
	schema = strings.ReplaceAll(schema, "'", "''")
	table = strings.ReplaceAll(table, "'", "''")

	switch strings.ToLower(target) {
	case "schema":
		return "SELECT schema_name FROM INFORMATION_SCHEMA.SCHEMATA WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast') ORDER BY schema_name", nil
	case "tables":
		return fmt.Sprintf("SELECT table_name, table_type FROM INFORMATION_SCHEMA.TABLES WHERE table_schema = '%s' ORDER BY table_name", schema), nil
	case "table_info":
		if table == "" {
			return "", fmt.Errorf("postgres: table is required for table_info reflection")
		}
		return fmt.Sprintf("SELECT column_name, data_type, is_nullable, column_default FROM INFORMATION_SCHEMA.COLUMNS WHERE table_schema = '%s' AND table_name = '%s' ORDER BY ordinal_position", schema, table), nil
	case "indexes":
		if table != "" {
			return fmt.Sprintf("SELECT indexname, indexdef FROM pg_indexes WHERE schemaname = '%s' AND tablename = '%s' ORDER BY indexname", schema, table), nil
		}
		return fmt.Sprintf("SELECT indexname, tablename, indexdef FROM pg_indexes WHERE schemaname = '%s' ORDER BY tablename, indexname", schema), nil
	case "views":
		return fmt.Sprintf("SELECT table_name, view_definition FROM INFORMATION_SCHEMA.VIEWS WHERE table_schema = '%s' ORDER BY table_name", schema), nil
	case "foreign_keys":
		if table == "" {
			return "", fmt.Errorf("postgres: table is required for foreign_keys reflection")
		}
		return fmt.Sprintf(`SELECT tc.constraint_name, kcu.column_name, ccu.table_name AS foreign_table_name, ccu.column_name AS foreign_column_name
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS AS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE AS kcu ON tc.constraint_name = kcu.constraint_name
JOIN INFORMATION_SCHEMA.CONSTRAINT_COLUMN_USAGE AS ccu ON ccu.constraint_name = tc.constraint_name
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = '%s' AND tc.table_name = '%s'
ORDER BY tc.constraint_name`, schema, table), nil
	case "constraints":
		if table == "" {
			return "", fmt.Errorf("postgres: table is required for constraints reflection")
		}
		return fmt.Sprintf("SELECT constraint_name, constraint_type FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS WHERE table_schema = '%s' AND table_name = '%s' ORDER BY constraint_type, constraint_name", schema, table), nil
	case "stats":
		if table != "" {
			return fmt.Sprintf("SELECT schemaname, tablename, n_live_tup AS row_count, n_dead_tup AS dead_tuples, last_autovacuum, last_analyze FROM pg_stat_user_tables WHERE schemaname = '%s' AND tablename = '%s' ORDER BY tablename", schema, table), nil
		}
		return fmt.Sprintf("SELECT schemaname, tablename, n_live_tup AS row_count, n_dead_tup AS dead_tuples FROM pg_stat_user_tables WHERE schemaname = '%s' ORDER BY tablename", schema), nil
	default:
		return "", fmt.Errorf("postgres: unknown reflection target %q (valid: schema, tables, table_info, indexes, views, foreign_keys, constraints, stats)", target)
	}
}

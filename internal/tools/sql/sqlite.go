package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nocodo/manager/internal/tools"
	"github.com/nocodo/manager/internal/tools/files"
)

const defaultRowLimit = 500

// SQLiteConfig controls the sql tool's target database and row cap.
type SQLiteConfig struct {
	BaseDir  string
	RowLimit int
}

// SQLiteHandler implements the sql tool (§4.3) against a sqlite database
// resolved under BaseDir. Every query is validated read-only before
// execution; PRAGMA statements are accepted under a separate, narrower
// validation path.
type SQLiteHandler struct {
	resolver files.Resolver
	rowLimit int
}

// NewSQLiteHandler builds a sql tool handler from cfg.
func NewSQLiteHandler(cfg SQLiteConfig) *SQLiteHandler {
	limit := cfg.RowLimit
	if limit <= 0 {
		limit = defaultRowLimit
	}
	return &SQLiteHandler{
		resolver: files.Resolver{Root: cfg.BaseDir},
		rowLimit: limit,
	}
}

type sqliteArgs struct {
	Database string `json:"database"`
	Query    string `json:"query"`
}

type sqliteOutput struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Count   int      `json:"row_count"`
	Query   string   `json:"query"`
}

func (h *SQLiteHandler) Execute(ctx context.Context, call tools.Call) tools.Result {
	var args sqliteArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return tools.Result{Err: fmt.Errorf("invalid arguments: %w", err)}
	}
	if args.Database == "" {
		return tools.Result{Err: fmt.Errorf("database is required")}
	}
	if args.Query == "" {
		return tools.Result{Err: fmt.Errorf("query is required")}
	}

	dbPath, err := h.resolver.Resolve(args.Database)
	if err != nil {
		return tools.Result{Err: err}
	}

	isPragma := isPragmaStatement(args.Query)
	if isPragma {
		if err := ValidatePragma(args.Query); err != nil {
			return tools.Result{Err: err}
		}
	} else {
		if err := ValidateQuery(args.Query); err != nil {
			return tools.Result{Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("sql: open database: %w", err)}
	}
	defer db.Close()

	query := args.Query
	if !isPragma {
		query = ApplyLimit(query, h.rowLimit)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("sql: query failed: %w", err)}
	}
	defer rows.Close()

	out, err := collectRows(rows)
	if err != nil {
		return tools.Result{Err: err}
	}
	out.Query = query

	payload, err := json.Marshal(out)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("encode result: %w", err)}
	}
	return tools.Result{Payload: payload}
}

func isPragmaStatement(query string) bool {
	trimmed := query
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n') {
		trimmed = trimmed[1:]
	}
	return len(trimmed) >= 6 && (trimmed[:6] == "PRAGMA" || trimmed[:6] == "pragma")
}

func collectRows(rows *sql.Rows) (sqliteOutput, error) {
	cols, err := rows.Columns()
	if err != nil {
		return sqliteOutput{}, fmt.Errorf("sql: read columns: %w", err)
	}
	out := sqliteOutput{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return sqliteOutput{}, fmt.Errorf("sql: scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return sqliteOutput{}, fmt.Errorf("sql: iterate rows: %w", err)
	}
	out.Count = len(out.Rows)
	return out, nil
}

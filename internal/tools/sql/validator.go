// Package sql implements the sql and postgres_reader tools (§4.3): a
// read-only query validator shared by both backends, plus a sqlite
// executor and a read-only Postgres executor.
package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// dangerousKeywords is the final defense-in-depth scan: even a query that
// parsed as a single SELECT statement is rejected if one of these appears
// as a bare keyword, since they have no legitimate place in a read-only
// query (UNION is allowed only alongside a SELECT, per scanDangerousKeywords).
var dangerousKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "EXECUTE", "UNION", "MERGE", "CALL",
	"COPY", "GRANT", "REVOKE",
}

var wordBoundary = func(kw string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + kw + `\b`)
}

// ValidateQuery validates a single read-only SQL statement (§4.3): it
// rejects multiple statements, parses the statement to confirm it is a
// plain query (not PRAGMA — see ValidatePragma for that), recursively
// walks subqueries and joins, and performs a final dangerous-keyword scan.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("sql: empty query")
	}

	if err := rejectMultipleStatements(trimmed); err != nil {
		return err
	}

	stmt, err := sqlparser.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("sql: parse error: %w", err)
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		if err := walkSelect(s); err != nil {
			return err
		}
	case *sqlparser.Union:
		if err := walkSelectStatement(s.Left); err != nil {
			return err
		}
		if err := walkSelectStatement(s.Right); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sql: only SELECT queries are allowed")
	}

	return scanDangerousKeywords(trimmed)
}

// ValidatePragma validates a PRAGMA statement (sqlite-only): PRAGMA is not
// standard SQL so it bypasses the AST parser entirely and is checked by
// the dangerous-keyword scan, with UNION not counted as dangerous.
func ValidatePragma(query string) error {
	trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
	if !strings.HasPrefix(strings.ToUpper(trimmed), "PRAGMA") {
		return fmt.Errorf("sql: not a PRAGMA statement")
	}
	if err := rejectMultipleStatements(trimmed); err != nil {
		return err
	}
	return scanDangerousKeywordsExceptUnion(trimmed)
}

func rejectMultipleStatements(query string) error {
	body := strings.TrimRight(query, ";")
	if strings.Count(body, ";") > 0 {
		return fmt.Errorf("sql: multiple SQL statements are not allowed")
	}
	return nil
}

func walkSelectStatement(stmt sqlparser.SelectStatement) error {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return walkSelect(s)
	case *sqlparser.Union:
		if err := walkSelectStatement(s.Left); err != nil {
			return err
		}
		return walkSelectStatement(s.Right)
	case *sqlparser.ParenSelect:
		return walkSelectStatement(s.Select)
	default:
		return nil
	}
}

// walkSelect recurses through FROM/JOIN table expressions and the WHERE
// clause looking for nested subqueries, mirroring the original
// validate_query_body/validate_table_factor/validate_expr recursion. Every
// node type it descends into is inert on its own; the actual rejection
// happens in scanDangerousKeywords, this walk exists to make sure a
// subquery buried in a join or expression still gets visited (defense in
// depth for drivers that accept dialect extensions the keyword scan
// might miss).
func walkSelect(s *sqlparser.Select) error {
	var walkErr error
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.Select:
			if n != s {
				// a nested SELECT (subquery) — recurse explicitly so a
				// deeply nested dangerous statement cannot hide behind a
				// node type Walk does not traverse into on its own.
				if err := walkSelect(n); err != nil {
					walkErr = err
					return false, err
				}
			}
		}
		return true, nil
	}, s)
	return walkErr
}

func scanDangerousKeywords(query string) error {
	upper := strings.ToUpper(query)
	hasSelect := wordBoundary("SELECT").MatchString(upper)
	for _, kw := range dangerousKeywords {
		if !wordBoundary(kw).MatchString(upper) {
			continue
		}
		if kw == "UNION" && hasSelect {
			continue // a UNION of SELECTs is a safe read-only construct
		}
		return fmt.Errorf("sql: query contains disallowed keyword %q", kw)
	}
	return nil
}

func scanDangerousKeywordsExceptUnion(query string) error {
	upper := strings.ToUpper(query)
	for _, kw := range dangerousKeywords {
		if kw == "UNION" {
			continue
		}
		if wordBoundary(kw).MatchString(upper) {
			return fmt.Errorf("sql: query contains disallowed keyword %q", kw)
		}
	}
	return nil
}

// ValidateInformationSchemaQuery validates a caller-supplied query that
// targets INFORMATION_SCHEMA or a pg_* system catalog. Such queries are
// not AST-parsed, since the sqlite-oriented parser does not understand
// every catalog-specific construct Postgres allows; they pass only the
// multiple-statement check and the dangerous-keyword scan. Queries built
// by buildReflectionQuery are not passed through it.
func ValidateInformationSchemaQuery(query string) error {
	if err := rejectMultipleStatements(query); err != nil {
		return err
	}
	return scanDangerousKeywords(query)
}

// ApplyLimit appends "LIMIT n" to query unless it already has a LIMIT
// clause, mirroring the original's textual LIMIT injection.
func ApplyLimit(query string, limit int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
	upper := strings.ToUpper(trimmed)
	if strings.Contains(upper, " LIMIT ") || strings.HasSuffix(upper, " LIMIT") {
		return trimmed
	}
	if regexp.MustCompile(`(?i)\bLIMIT\s+\d+`).MatchString(trimmed) {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// Package sqlguard executes model-authored SQL against the application
// database under a strict read-only policy.
package sqlguard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/logger"
)

// ErrQueryRejected marks SQL turned away by the static policy before it
// reaches the database.
var ErrQueryRejected = errors.New("query rejected by read-only policy")

// MaxRows caps how many rows a guarded query returns to the model.
const MaxRows = 20

// TruncationNotice is placed in the sentinel row appended when a result
// set exceeds MaxRows.
const TruncationNotice = "-- results truncated at 20 rows --"

// allowedLeadingKeywords are the only statements the guard will run.
var allowedLeadingKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
	"SHOW":    true,
}

// writeKeywords anywhere in the statement cause rejection, even inside
// CTEs, where Postgres permits data-modifying clauses.
var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"COPY":     true,
	"CALL":     true,
	"LOCK":     true,
	"MERGE":    true,
	"SET":      true,
}

// Result is a guarded query's outcome in a shape that encodes compactly
// for a model prompt.
type Result struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Guard validates and executes read-only SQL.
type Guard struct {
	db     *sqlx.DB
	logger logger.Logger
}

// New creates a new SQL guard over db.
func New(db *sqlx.DB, log logger.Logger) *Guard {
	return &Guard{db: db, logger: log}
}

// Execute runs query if it passes the static policy. Execution happens
// inside a read-only transaction as a second line of defense. Result
// sets larger than MaxRows are cut off and a sentinel row is appended.
func (g *Guard) Execute(ctx context.Context, query string) (*Result, error) {
	stmt, err := Validate(query)
	if err != nil {
		g.logger.Warn("rejected model SQL",
			logger.String("reason", err.Error()))
		return nil, err
	}

	tx, err := g.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to keep

	rows, err := tx.QueryxContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("execute guarded query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	result := &Result{Columns: columns, Rows: make([][]any, 0, MaxRows)}
	for rows.Next() {
		if len(result.Rows) == MaxRows {
			result.Truncated = true
			result.Rows = append(result.Rows, sentinelRow(len(columns)))
			break
		}

		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	return result, nil
}

// Validate applies the static read-only policy and returns the cleaned
// statement to execute. All rejections wrap ErrQueryRejected.
func Validate(query string) (string, error) {
	stmt := strings.TrimSpace(stripComments(query))
	stmt = strings.TrimSuffix(stmt, ";")
	stmt = strings.TrimSpace(stmt)

	if stmt == "" {
		return "", fmt.Errorf("%w: empty statement", ErrQueryRejected)
	}
	if strings.Contains(stmt, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrQueryRejected)
	}

	words := strings.Fields(strings.ToUpper(stmt))
	if !allowedLeadingKeywords[strings.Trim(words[0], "(")] {
		return "", fmt.Errorf("%w: statement must start with SELECT, WITH, EXPLAIN or SHOW", ErrQueryRejected)
	}
	for _, w := range words {
		w = strings.Trim(w, "(),;")
		if writeKeywords[w] {
			return "", fmt.Errorf("%w: contains write keyword %s", ErrQueryRejected, w)
		}
	}

	return stmt, nil
}

// stripComments removes -- line comments and /* */ block comments so a
// leading comment cannot hide the statement's first keyword.
func stripComments(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	inLine, inBlock := false, false
	for i := 0; i < len(query); i++ {
		switch {
		case inLine:
			if query[i] == '\n' {
				inLine = false
				b.WriteByte('\n')
			}
		case inBlock:
			if query[i] == '*' && i+1 < len(query) && query[i+1] == '/' {
				inBlock = false
				i++
			}
		case query[i] == '-' && i+1 < len(query) && query[i+1] == '-':
			inLine = true
			i++
		case query[i] == '/' && i+1 < len(query) && query[i+1] == '*':
			inBlock = true
			i++
		default:
			b.WriteByte(query[i])
		}
	}

	return b.String()
}

func sentinelRow(width int) []any {
	if width == 0 {
		return []any{TruncationNotice}
	}
	row := make([]any, width)
	row[0] = TruncationNotice
	for i := 1; i < width; i++ {
		row[i] = ""
	}
	return row
}

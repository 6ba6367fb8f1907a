// Package store holds the SQL for each entity. Functions accept any
// sqlx.ExtContext so they work on a *sqlx.DB or a *sqlx.Tx. Queries are
// written with ? placeholders and rebound for the active driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNoRowsAffected is returned when an update targets an ID that does not exist.
var ErrNoRowsAffected = errors.New("no rows affected")

// Returned by SaveUser when a unique column is already taken.
var (
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
)

// getOne runs a single-row query and reports found=false on sql.ErrNoRows.
func getOne(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func insertReturningID(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// updateOne runs an UPDATE and returns ErrNoRowsAffected if nothing matched.
func updateOne(ctx context.Context, q sqlx.ExtContext, query string, args ...any) error {
	res, err := exec(ctx, q, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

func count(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure on
// table.column, for either supported driver.
func uniqueViolation(err error, table, column string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == table+"_"+column+"_key"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed: "+table+"."+column)
	}
	return false
}

// timeOrNow substitutes the current time for a NULL timestamp. Rows written
// by this service never have one; older rows can.
func timeOrNow(table string, id int64, column string, t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	slog.Warn("null timestamp replaced with current time", "table", table, "id", id, "column", column)
	return time.Now().UTC()
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(term)) + "%"
}

// where joins conditions with AND, or returns "" when there are none.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

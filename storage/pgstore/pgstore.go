// Package pgstore is a storage.Backend backed by PostgreSQL via pgx. Like
// qrypgx.Open/WithTx, it owns a connection pool and offers a transaction
// wrapper that commits on a nil return and rolls back otherwise; unlike
// qrypgx, it speaks the plain parameterized SQL package sqlgen emits
// instead of an xelf query plan.
package pgstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rterr"
	"github.com/bglgwyng/rx-table/storage"
)

// Querier is the subset of pgx's pool/tx API a Store needs. *pgxpool.Pool
// and pgx.Tx both satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Store is a storage.Backend backed by a pgx connection pool.
type Store struct {
	ctx context.Context
	q   Querier
	pool *pgxpool.Pool
}

var _ storage.Backend = (*Store)(nil)

// Open parses dsn, opens a pool, and verifies connectivity with a trivial
// query, the way qrypgx.Open does against the v3 client.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening pgx pool")
	}
	if _, err := pool.Exec(ctx, "SELECT 1"); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "opening first pgx connection")
	}
	return &Store{ctx: ctx, q: pool, pool: pool}, nil
}

// Close releases the underlying pool. It is a no-op on a transaction-scoped
// Store (Close is only meaningful on the Store Open returned).
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Prepare returns a bind-ready handle for sql. pgx's extended query protocol
// already caches server-side plans per statement text on a pooled
// connection, so Prepare here is just a closure capturing sql and the
// active Querier; it does not issue PREPARE itself.
//
// sqlgen emits sql with positional "?" placeholders; pgx's wire protocol
// only understands "$1", "$2", ... . Prepare rewrites one to the other,
// preserving order, before handing sql to pgx.
func (s *Store) Prepare(sql string) (storage.Statement, error) {
	return &stmtHandle{ctx: s.ctx, q: s.q, sql: rewritePlaceholders(sql)}, nil
}

// rewritePlaceholders replaces each "?" in sql, in order, with "$1", "$2",
// and so on, the way qrypgx's Postgres renderer does for the driver it
// targets. sqlgen never emits string literals, so every "?" outside of
// this rewrite is a genuine positional parameter marker.
func rewritePlaceholders(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for _, c := range sql {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Transaction runs fn against a Store scoped to one pgx transaction,
// committing on a nil return and rolling back otherwise — the pgx/v5
// counterpart of qrypgx.WithTx.
func (s *Store) Transaction(fn func(storage.Backend) error) error {
	tx, err := s.pool.Begin(s.ctx)
	if err != nil {
		return rterr.NewBackendError("begin", err)
	}
	defer tx.Rollback(s.ctx)

	scoped := &Store{ctx: s.ctx, q: tx}
	if err := fn(scoped); err != nil {
		return err
	}
	if err := tx.Commit(s.ctx); err != nil {
		return rterr.NewBackendError("commit", err)
	}
	return nil
}

type stmtHandle struct {
	ctx context.Context
	q   Querier
	sql string
}

var _ storage.Statement = (*stmtHandle)(nil)

func (h *stmtHandle) Get(params []expr.Value) (expr.Row, bool, error) {
	rows, err := h.q.Query(h.ctx, h.sql, params...)
	if err != nil {
		return nil, false, rterr.NewBackendError("query", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, false, err
	}
	return row, true, rows.Err()
}

func (h *stmtHandle) All(params []expr.Value) ([]expr.Row, error) {
	rows, err := h.q.Query(h.ctx, h.sql, params...)
	if err != nil {
		return nil, rterr.NewBackendError("query", err)
	}
	defer rows.Close()
	var out []expr.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (h *stmtHandle) Run(params []expr.Value) (storage.RunResult, error) {
	tag, err := h.q.Exec(h.ctx, h.sql, params...)
	if err != nil {
		return storage.RunResult{}, rterr.NewBackendError("exec", err)
	}
	return storage.RunResult{RowsAffected: tag.RowsAffected()}, nil
}

func scanRow(rows pgx.Rows) (expr.Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, rterr.NewBackendError("scan", err)
	}
	fields := rows.FieldDescriptions()
	row := make(expr.Row, len(fields))
	for i, f := range fields {
		row[string(f.Name)] = values[i]
	}
	return row, nil
}

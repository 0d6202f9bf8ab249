package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/franz/gg-curator/internal/metrics"
)

// Tracer receives the text of every statement sent through a Session
type Tracer func(stmt string)

// Session owns the single live connection of a Store. Every statement,
// including transaction control, goes through it one at a time.
type Session struct {
	conn    *sql.Conn
	dialect dialect
	inTx    bool
	trace   Tracer
}

func newSession(ctx context.Context, db *sql.DB, d dialect, trace Tracer) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{conn: conn, dialect: d, trace: trace}, nil
}

// InTx reports whether a transaction is open on the session
func (s *Session) InTx() bool {
	return s.inTx
}

func (s *Session) record(stmt string, err error) {
	if s.trace != nil {
		s.trace(stmt)
	}
	if err != nil {
		metrics.StatementsTotal.WithLabelValues(metrics.Fail).Inc()
	} else {
		metrics.StatementsTotal.WithLabelValues(metrics.Ok).Inc()
	}
}

// Exec runs a statement that returns no rows
func (s *Session) Exec(ctx context.Context, table, query string, args ...any) (sql.Result, error) {
	query = s.dialect.rebind(query)
	res, err := s.conn.ExecContext(ctx, query, args...)
	s.record(query, err)
	if err != nil {
		return nil, &StorageError{Op: "exec", Table: table, Statement: query, Err: err}
	}
	return res, nil
}

// Query runs a statement that returns rows
func (s *Session) Query(ctx context.Context, table, query string, args ...any) (*sql.Rows, error) {
	query = s.dialect.rebind(query)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	s.record(query, err)
	if err != nil {
		return nil, &StorageError{Op: "query", Table: table, Statement: query, Err: err}
	}
	return rows, nil
}

// QueryRow runs a single-row query and scans it into dest. sql.ErrNoRows is
// returned unwrapped so lookups can turn it into an absence.
func (s *Session) QueryRow(ctx context.Context, table, query string, args []any, dest ...any) error {
	query = s.dialect.rebind(query)
	err := s.conn.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		s.record(query, nil)
		return sql.ErrNoRows
	}
	s.record(query, err)
	if err != nil {
		return &StorageError{Op: "query", Table: table, Statement: query, Err: err}
	}
	return nil
}

// begin opens a transaction with the dialect's begin statement. Only the
// lock manager and migrations call it.
func (s *Session) begin(ctx context.Context) error {
	if s.inTx {
		return fmt.Errorf("transaction already open")
	}
	stmt := s.dialect.beginStatement()
	_, err := s.conn.ExecContext(ctx, stmt)
	s.record(stmt, err)
	if err != nil {
		return err
	}
	s.inTx = true
	return nil
}

// Commit makes the open transaction durable. A failed COMMIT leaves the
// session in the transaction so the caller's release rolls it back.
func (s *Session) Commit(ctx context.Context) error {
	if !s.inTx {
		return nil
	}
	const stmt = "COMMIT"
	_, err := s.conn.ExecContext(ctx, stmt)
	s.record(stmt, err)
	if err != nil {
		return &StorageError{Op: "commit", Statement: stmt, Err: err}
	}
	s.inTx = false
	return nil
}

// Rollback discards the open transaction, if any
func (s *Session) Rollback(ctx context.Context) error {
	if !s.inTx {
		return nil
	}
	const stmt = "ROLLBACK"
	// Rollback must still go out when the caller's context is already done.
	_, err := s.conn.ExecContext(context.WithoutCancel(ctx), stmt)
	s.record(stmt, err)
	s.inTx = false
	if err != nil {
		return &StorageError{Op: "rollback", Statement: stmt, Err: err}
	}
	return nil
}

func (s *Session) close() error {
	if s.inTx {
		_ = s.Rollback(context.Background())
	}
	return s.conn.Close()
}

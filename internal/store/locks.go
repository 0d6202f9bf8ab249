package store

import (
	"context"
	"fmt"

	"github.com/franz/gg-curator/internal/metrics"
	"github.com/franz/gg-curator/internal/util"
)

// LockMode is the access requested on a table
type LockMode int

const (
	LockRead LockMode = iota
	LockWrite
)

func (m LockMode) String() string {
	if m == LockWrite {
		return "WRITE"
	}
	return "READ"
}

// TableLock is one entry of a lock request. Alias is optional; when set,
// id allocation for the table addresses it through the alias.
type TableLock struct {
	Table string
	Alias string
	Mode  LockMode
}

// Write is shorthand for an unaliased write lock
func Write(table string) TableLock {
	return TableLock{Table: table, Mode: LockWrite}
}

// Read is shorthand for an unaliased read lock
func Read(table string) TableLock {
	return TableLock{Table: table, Mode: LockRead}
}

// LockManager acquires and releases the table locks of one session. A lock
// set lives exactly as long as the transaction that carries it: COMMIT or
// ROLLBACK ends both.
type LockManager struct {
	session *Session
	held    map[string]string // table -> alias ("" when unaliased)
}

func newLockManager(s *Session) *LockManager {
	return &LockManager{session: s}
}

// Held reports whether this session holds any locks
func (m *LockManager) Held() bool {
	return len(m.held) > 0
}

// Alias returns the alias a table was locked under and whether it is locked
func (m *LockManager) Alias(table string) (string, bool) {
	alias, ok := m.held[table]
	return alias, ok
}

// Acquire locks every listed table with a single locking statement. It is
// not re-entrant: a second Acquire before Release fails with LockError.
func (m *LockManager) Acquire(ctx context.Context, locks ...TableLock) error {
	tables := make([]string, 0, len(locks))
	for _, l := range locks {
		tables = append(tables, l.Table)
	}

	if m.Held() {
		return m.refuse(tables, reasonHeld, nil)
	}
	if len(locks) == 0 {
		return m.refuse(tables, reasonEmpty, nil)
	}
	seen := make(map[string]bool, len(locks))
	for _, l := range locks {
		if !validIdentifier(l.Table) || (l.Alias != "" && !validIdentifier(l.Alias)) {
			return m.refuse(tables, reasonBadName, fmt.Errorf("table %q alias %q", l.Table, l.Alias))
		}
		if seen[l.Table] {
			return m.refuse(tables, reasonRejected, fmt.Errorf("table %q listed twice", l.Table))
		}
		seen[l.Table] = true
	}

	d := m.session.dialect
	if err := m.session.begin(ctx); err != nil {
		return m.refuse(tables, m.classify(err), err)
	}

	if stmt := d.lockStatement(locks); stmt != "" {
		if _, err := m.session.Exec(ctx, "", stmt); err != nil {
			_ = m.session.Rollback(ctx)
			return m.refuse(tables, m.classify(err), err)
		}
	} else {
		// The engine takes no per-table lock, so unknown tables are caught here.
		for _, l := range locks {
			var n int
			if err := m.session.QueryRow(ctx, l.Table, d.tableExistsQuery(), []any{l.Table}, &n); err != nil {
				_ = m.session.Rollback(ctx)
				return m.refuse(tables, reasonRejected, err)
			}
			if n == 0 {
				_ = m.session.Rollback(ctx)
				return m.refuse(tables, reasonUnknown, fmt.Errorf("table %q does not exist", l.Table))
			}
		}
	}

	m.held = make(map[string]string, len(locks))
	for _, l := range locks {
		m.held[l.Table] = l.Alias
	}
	metrics.LockAcquisitionsTotal.WithLabelValues(metrics.Ok).Inc()
	util.DebugLog("locked %v", tables)
	return nil
}

// Release ends the lock scope. When the transaction is still open it is
// rolled back, which is the one statement that drops the locks. After a
// commit the locks are already gone, so no statement is sent and only local
// state is cleared. Calling Release with nothing held is a no-op.
func (m *LockManager) Release(ctx context.Context) error {
	if !m.Held() {
		return nil
	}
	m.held = nil
	if err := m.session.Rollback(ctx); err != nil {
		return fmt.Errorf("failed to release locks: %w", err)
	}
	return nil
}

func (m *LockManager) classify(err error) string {
	d := m.session.dialect
	switch {
	case d.isLockConflict(err):
		return reasonContended
	case d.isUndefinedTable(err):
		return reasonUnknown
	default:
		return reasonRejected
	}
}

func (m *LockManager) refuse(tables []string, reason string, err error) error {
	metrics.LockAcquisitionsTotal.WithLabelValues(metrics.Fail).Inc()
	return &LockError{Tables: tables, Reason: reason, Err: err}
}

package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/franz/gg-curator/internal/util"
)

// LockError reports a lock request that was refused: re-entrant acquisition,
// an unknown table, a table held by another session, or an allocator query
// against a table outside the held lock set.
type LockError struct {
	Tables []string
	Reason string
	Err    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("lock %s: %s", strings.Join(e.Tables, ", "), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LockError) Unwrap() error { return e.Err }

// Temporary reports whether the lock was refused only because another
// session holds it.
func (e *LockError) Temporary() bool {
	return e.Reason == reasonContended
}

const (
	reasonHeld      = "lock already held by this session"
	reasonEmpty     = "no tables requested"
	reasonBadName   = "invalid table identifier"
	reasonUnknown   = "unknown table"
	reasonContended = "table locked by another session"
	reasonRejected  = "lock statement rejected"
	reasonNotLocked = "table is not locked by this session"
)

// StorageError wraps a failed statement with the table and statement text
// that produced it.
type StorageError struct {
	Op        string
	Table     string
	Statement string
	Err       error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Table != "" {
		b.WriteString(" on ")
		b.WriteString(e.Table)
	}
	b.WriteString(" failed")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Statement != "" {
		b.WriteString(" [")
		b.WriteString(compactSQL(e.Statement))
		b.WriteString("]")
	}
	return b.String()
}

func (e *StorageError) Unwrap() error { return e.Err }

// DuplicateRecordError is returned when an accession is already stored
type DuplicateRecordError struct {
	Accession string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("record with accession %q already exists", e.Accession)
}

// Is lets callers match duplicates with util.ErrConflict
func (e *DuplicateRecordError) Is(target error) bool {
	return target == util.ErrConflict
}

// NotFoundError reports a reference to a record, release or representative
// that does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// Is lets callers match with util.ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == util.ErrNotFound
}

// IsLockError reports whether err is (or wraps) a LockError
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}

// compactSQL collapses whitespace so statements fit on one log line
func compactSQL(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}

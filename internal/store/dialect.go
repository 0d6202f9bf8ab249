package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect isolates the statements and error codes that differ between the
// supported engines. Everything else is plain parameterized SQL.
type dialect interface {
	name() string
	driverName() string
	rebind(query string) string
	// beginStatement opens the transaction that scopes a lock.
	beginStatement() string
	// lockStatement returns the statement issued after begin, or "" when
	// the begin statement already is the lock.
	lockStatement(locks []TableLock) string
	// tableExistsQuery takes one parameter, the table name, and returns a count.
	tableExistsQuery() string
	schema(version int) string
	scratchTableDDL(name string) string
	isLockConflict(err error) bool
	isUniqueViolation(err error) bool
	isForeignKeyViolation(err error) bool
	isUndefinedTable(err error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// sqliteDialect targets modernc.org/sqlite. SQLite has no table locks, so
// BEGIN IMMEDIATE (the database write lock) stands in for every lock set.
type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) beginStatement() string { return "BEGIN IMMEDIATE" }

func (sqliteDialect) lockStatement([]TableLock) string { return "" }

func (sqliteDialect) tableExistsQuery() string {
	return `SELECT COUNT(*) FROM (
		SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?1
		UNION ALL
		SELECT name FROM sqlite_temp_master WHERE type = 'table' AND name = ?1
	)`
}

func (sqliteDialect) schema(version int) string {
	switch version {
	case 1:
		return sqliteSchemaV1
	case 2:
		return schemaV2
	}
	return ""
}

func (sqliteDialect) scratchTableDDL(name string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (seq_id INTEGER PRIMARY KEY, sequence TEXT NOT NULL)", name)
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

func (sqliteDialect) isLockConflict(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	primary := code & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}

func (sqliteDialect) isUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
	return false
}

func (sqliteDialect) isForeignKeyViolation(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	return code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "FOREIGN KEY"))
}

func (sqliteDialect) isUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// postgresDialect targets pgx through database/sql.
type postgresDialect struct{}

func (postgresDialect) name() string       { return "postgres" }
func (postgresDialect) driverName() string { return "pgx" }

// rebind rewrites ? placeholders to $1..$n, leaving quoted literals alone.
func (postgresDialect) rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (postgresDialect) beginStatement() string { return "BEGIN" }

// lockStatement takes every table in one statement. A mix of read and write
// locks is granted as EXCLUSIVE for the whole set.
func (postgresDialect) lockStatement(locks []TableLock) string {
	mode := "SHARE"
	names := make([]string, 0, len(locks))
	for _, l := range locks {
		names = append(names, l.Table)
		if l.Mode == LockWrite {
			mode = "EXCLUSIVE"
		}
	}
	return fmt.Sprintf("LOCK TABLE %s IN %s MODE NOWAIT", strings.Join(names, ", "), mode)
}

func (postgresDialect) tableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name = $1 AND (table_schema = current_schema() OR table_type = 'LOCAL TEMPORARY')`
}

func (postgresDialect) schema(version int) string {
	switch version {
	case 1:
		return postgresSchemaV1
	case 2:
		return schemaV2
	}
	return ""
}

func (postgresDialect) scratchTableDDL(name string) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s (seq_id BIGINT PRIMARY KEY, sequence TEXT NOT NULL)", name)
}

func pgCode(err error) string {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func (postgresDialect) isLockConflict(err error) bool {
	code := pgCode(err)
	return code == "55P03" || code == "40001" || code == "40P01"
}

func (postgresDialect) isUniqueViolation(err error) bool { return pgCode(err) == "23505" }

func (postgresDialect) isForeignKeyViolation(err error) bool { return pgCode(err) == "23503" }

func (postgresDialect) isUndefinedTable(err error) bool { return pgCode(err) == "42P01" }

// validIdentifier reports whether s can be spliced into a statement as a
// table name or alias. Identifiers cannot be bound as parameters.
func validIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

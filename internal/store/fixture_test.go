package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// openTestStore opens a fresh SQLite store in the test's temp dir
func openTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStoreAt(t, filepath.Join(t.TempDir(), "gg.db"), nil)
}

func openTestStoreAt(t *testing.T, path string, opts *OpenOptions) *Store {
	t.Helper()
	s, err := OpenWithOptions(path, opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// statementLog collects traced statements
type statementLog struct {
	mu    sync.Mutex
	stmts []string
}

func (l *statementLog) trace(stmt string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stmts = append(l.stmts, compactSQL(stmt))
}

func (l *statementLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stmts = nil
}

// count returns how many statements start with prefix
func (l *statementLog) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func (l *statementLog) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.stmts {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// seedRecords inserts n records ACC1..ACCn into release and returns their ids
func seedRecords(t *testing.T, s *Store, n int, release string) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		id, err := s.InsertRecord(ctx, &Record{
			Accession: fmt.Sprintf("ACC%d.1", i),
			Decision:  DecisionIsolate,
			Organism:  fmt.Sprintf("organism %d", i),
		}, release)
		if err != nil {
			t.Fatalf("failed to seed record %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func countRows(t *testing.T, s *Store, table string) int64 {
	t.Helper()
	var n int64
	if err := s.session.QueryRow(context.Background(), table, "SELECT COUNT(*) FROM "+table, nil, &n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// assertIdle checks the session ended its operation unlocked and outside
// any transaction.
func assertIdle(t *testing.T, s *Store) {
	t.Helper()
	if s.Locks().Held() {
		t.Error("expected no locks to be held")
	}
	if s.Session().InTx() {
		t.Error("expected no open transaction")
	}
}

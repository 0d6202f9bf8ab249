package store

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/franz/gg-curator/internal/util"
	"github.com/sourcegraph/conc"
)

func TestReleaseIsIdempotent(t *testing.T) {
	log := &statementLog{}
	s := openTestStoreAt(t, filepath.Join(t.TempDir(), "gg.db"), &OpenOptions{Trace: log.trace})
	ctx := context.Background()
	log.reset()

	for i := 0; i < 2; i++ {
		if err := s.Locks().Release(ctx); err != nil {
			t.Fatalf("Release with nothing held returned %v", err)
		}
	}
	if len(log.stmts) != 0 {
		t.Errorf("expected no statements from idle release, got %v", log.stmts)
	}

	if err := s.Locks().Acquire(ctx, Write("record")); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := s.Locks().Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := s.Locks().Release(ctx); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
	if n := log.count("ROLLBACK"); n != 1 {
		t.Errorf("expected exactly one ROLLBACK, got %d", n)
	}
	assertIdle(t, s)
}

func TestReleaseAfterCommitSendsNothing(t *testing.T) {
	log := &statementLog{}
	s := openTestStoreAt(t, filepath.Join(t.TempDir(), "gg.db"), &OpenOptions{Trace: log.trace})
	ctx := context.Background()

	if err := s.Locks().Acquire(ctx, Write("record")); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := s.Session().Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	log.reset()

	if err := s.Locks().Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if len(log.stmts) != 0 {
		t.Errorf("expected no statements after commit, got %v", log.stmts)
	}
	assertIdle(t, s)
}

func TestAcquireSendsOneLockStatement(t *testing.T) {
	log := &statementLog{}
	s := openTestStoreAt(t, filepath.Join(t.TempDir(), "gg.db"), &OpenOptions{Trace: log.trace})
	ctx := context.Background()
	log.reset()

	err := s.Locks().Acquire(ctx, Write("record"), TableLock{Table: "gg_release", Mode: LockRead})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if n := log.count("BEGIN"); n != 1 {
		t.Errorf("expected exactly one lock statement, got %d: %v", n, log.stmts)
	}
	if !s.Locks().Held() || !s.Session().InTx() {
		t.Error("expected locks held inside a transaction")
	}
	if err := s.Locks().Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestAcquireIsNotReentrant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Locks().Acquire(ctx, Write("sequence")); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer s.Locks().Release(ctx)

	err := s.Locks().Acquire(ctx, Write("taxonomy"))
	var le *LockError
	if !errors.As(err, &le) {
		t.Fatalf("expected LockError, got %v", err)
	}
	if le.Reason != reasonHeld {
		t.Errorf("expected reason %q, got %q", reasonHeld, le.Reason)
	}
	if le.Temporary() {
		t.Error("re-entrant acquisition must not be retryable")
	}

	// The first lock set is untouched
	if _, locked := s.Locks().Alias("sequence"); !locked {
		t.Error("expected sequence to remain locked")
	}
	if _, locked := s.Locks().Alias("taxonomy"); locked {
		t.Error("taxonomy must not be locked")
	}
}

func TestAcquireRejectsBadRequests(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		locks  []TableLock
		reason string
	}{
		{"unknown table", []TableLock{Write("record"), Write("no_such_table")}, reasonUnknown},
		{"empty request", nil, reasonEmpty},
		{"injection in name", []TableLock{Write("record; DROP TABLE record")}, reasonBadName},
		{"bad alias", []TableLock{{Table: "record", Alias: "g g", Mode: LockWrite}}, reasonBadName},
		{"duplicate table", []TableLock{Write("record"), Read("record")}, reasonRejected},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := s.Locks().Acquire(ctx, tt.locks...)
			var le *LockError
			if !errors.As(err, &le) {
				t.Fatalf("expected LockError, got %v", err)
			}
			if le.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, le.Reason)
			}
			assertIdle(t, s)
		})
	}
}

func TestAllocatorUsesAlias(t *testing.T) {
	log := &statementLog{}
	s := openTestStoreAt(t, filepath.Join(t.TempDir(), "gg.db"), &OpenOptions{Trace: log.trace})
	ctx := context.Background()
	seedRecords(t, s, 2, "")

	if err := s.Locks().Acquire(ctx, TableLock{Table: "record", Alias: "g", Mode: LockWrite}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer s.Locks().Release(ctx)

	alias, locked := s.Locks().Alias("record")
	if !locked || alias != "g" {
		t.Errorf("Alias(record) = %q, %v; want g, true", alias, locked)
	}

	id, err := s.IDs().Next(ctx, ClassRecord)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if id != 3 {
		t.Errorf("expected next record id 3, got %d", id)
	}
	if !log.contains("SELECT MAX(g.gg_id) FROM record g") {
		t.Errorf("expected aliased allocator query, got %v", log.stmts)
	}
}

func TestAllocatorRefusesUnlockedTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// No locks at all: plain read, 1 on an empty table
	id, err := s.IDs().Next(ctx, ClassOTUCluster)
	if err != nil || id != 1 {
		t.Fatalf("Next on empty table = %d, %v; want 1, nil", id, err)
	}

	if err := s.Locks().Acquire(ctx, Write("sequence")); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer s.Locks().Release(ctx)

	_, err = s.IDs().Next(ctx, ClassRecord)
	var le *LockError
	if !errors.As(err, &le) {
		t.Fatalf("expected LockError for unlocked table, got %v", err)
	}
	if le.Reason != reasonNotLocked {
		t.Errorf("expected reason %q, got %q", reasonNotLocked, le.Reason)
	}
}

func TestSecondSessionFailsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gg.db")
	a := openTestStoreAt(t, path, nil)
	b := openTestStoreAt(t, path, nil)
	ctx := context.Background()

	if err := a.Locks().Acquire(ctx, Write("record")); err != nil {
		t.Fatalf("session A Acquire failed: %v", err)
	}

	err := b.Locks().Acquire(ctx, Write("record"))
	var le *LockError
	if !errors.As(err, &le) {
		t.Fatalf("expected LockError for contended lock, got %v", err)
	}
	if !le.Temporary() {
		t.Errorf("contended lock should be retryable, reason %q", le.Reason)
	}
	if !util.IsRetryableError(err) {
		t.Error("expected util.IsRetryableError to accept lock contention")
	}
	assertIdle(t, b)

	if err := a.Locks().Release(ctx); err != nil {
		t.Fatalf("session A Release failed: %v", err)
	}
	if err := b.Locks().Acquire(ctx, Write("record")); err != nil {
		t.Fatalf("session B Acquire after release failed: %v", err)
	}
	b.Locks().Release(ctx)
}

func TestConcurrentSessionsAllocateUniqueIDs(t *testing.T) {
	const (
		sessions   = 4
		perSession = 10
	)
	path := filepath.Join(t.TempDir(), "gg.db")
	stores := make([]*Store, sessions)
	for i := range stores {
		stores[i] = openTestStoreAt(t, path, nil)
	}

	var (
		mu     sync.Mutex
		all    []int64
		failed error
	)
	var wg conc.WaitGroup
	for i, s := range stores {
		i := i
		s := s
		wg.Go(func() {
			ctx := context.Background()
			var mine []int64
			for j := 0; j < perSession; j++ {
				rec := &Record{Accession: accession(i, j), Decision: DecisionUndetermined}
				id, err := util.RetryWithBackoff(util.LockRetryConfig(100), func() (int64, error) {
					return s.InsertRecord(ctx, rec, "")
				}, "insert record")
				if err != nil {
					mu.Lock()
					failed = err
					mu.Unlock()
					return
				}
				mine = append(mine, id)
			}
			if !slices.IsSorted(mine) {
				mu.Lock()
				failed = errors.New("ids not monotonic within a session")
				mu.Unlock()
			}
			mu.Lock()
			all = append(all, mine...)
			mu.Unlock()
		})
	}
	wg.Wait()

	if failed != nil {
		t.Fatalf("concurrent insert failed: %v", failed)
	}
	slices.Sort(all)
	if len(slices.Compact(slices.Clone(all))) != len(all) {
		t.Fatalf("duplicate ids allocated: %v", all)
	}
	if len(all) != sessions*perSession || all[len(all)-1] != sessions*perSession {
		t.Errorf("expected ids 1..%d, got %v", sessions*perSession, all)
	}
	for _, s := range stores {
		assertIdle(t, s)
	}
}

func accession(session, n int) string {
	return "S" + string(rune('A'+session)) + "_" + string(rune('a'+n)) + ".1"
}

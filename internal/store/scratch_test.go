package store

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func TestScratchSequenceTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedRecords(t, s, 2, "")

	name, err := s.CreateScratchSequenceTable(ctx)
	if err != nil {
		t.Fatalf("CreateScratchSequenceTable failed: %v", err)
	}
	if !strings.HasPrefix(name, "tmp_seq_") {
		t.Errorf("unexpected scratch table name %q", name)
	}
	other, err := s.CreateScratchSequenceTable(ctx)
	if err != nil {
		t.Fatalf("second CreateScratchSequenceTable failed: %v", err)
	}
	if other == name {
		t.Error("expected distinct scratch table names")
	}

	if err := s.StageSequences(ctx, name, map[int64]string{1: "AC", 5: "GU", 2: "CC"}); err != nil {
		t.Fatalf("StageSequences failed: %v", err)
	}
	missing, err := s.MissingStagedRecords(ctx, name)
	if err != nil {
		t.Fatalf("MissingStagedRecords failed: %v", err)
	}
	if !slices.Equal(missing, []int64{5}) {
		t.Errorf("expected [5] missing, got %v", missing)
	}

	if err := s.DropScratchTable(ctx, name); err != nil {
		t.Fatalf("DropScratchTable failed: %v", err)
	}
	if exists, _ := s.TableExists(ctx, name); exists {
		t.Error("expected scratch table to be gone")
	}
	if err := s.DropScratchTable(ctx, other); err != nil {
		t.Fatalf("DropScratchTable failed: %v", err)
	}
}

func TestDropScratchTableRefusesRealTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"record", "sequence", "tmp_x; DROP TABLE record"} {
		if err := s.DropScratchTable(ctx, name); err == nil {
			t.Errorf("expected DropScratchTable(%q) to be refused", name)
		}
	}
	if exists, _ := s.TableExists(ctx, "record"); !exists {
		t.Fatal("record table was dropped")
	}
	if err := s.StageSequences(ctx, "sequence", map[int64]string{1: "A"}); err == nil {
		t.Error("expected staging into a real table to be refused")
	}
}

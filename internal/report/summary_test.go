package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/gg-curator/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "gg.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestData(t *testing.T, db *store.Store) {
	t.Helper()
	ctx := context.Background()
	for i, d := range []store.Decision{store.DecisionClone, store.DecisionClone, store.DecisionIsolate} {
		rec := &store.Record{Accession: "EU" + string(rune('1'+i)) + ".1", Decision: d}
		if _, err := db.InsertRecord(ctx, rec, ""); err != nil {
			t.Fatalf("Failed to insert record: %v", err)
		}
	}
	if _, err := db.InsertRelease(ctx, 1, "gg_13_5"); err != nil {
		t.Fatalf("Failed to insert release: %v", err)
	}
	if _, err := db.UpdateSequences(ctx, store.FieldAligned, map[int64]string{1: "AC-GT"}); err != nil {
		t.Fatalf("Failed to set sequence: %v", err)
	}
}

func TestGenerateSummaryReport(t *testing.T) {
	db := openTestStore(t)
	setupTestData(t, db)

	logDir := t.TempDir()
	logger, err := NewEventLogger(logDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	logger.LogInsertRecord(1, "EU1.1", "", nil)
	logger.LogInsertRecord(2, "EU2.1", "", nil)
	logger.LogDuplicate("EU1.1")
	logger.LogBulk(EventUpdateSequence, "aligned", "a.fna", 1, time.Second, nil)
	logger.LogBulk(EventUpdateSequence, "aligned", "b.fna", 0, 0, errors.New("lock refused"))
	logger.LogBulk(EventUpdateTaxonomy, "ncbi", "t.tsv", 0, 0, errors.New("lock refused"))
	logger.LogExport("out", 3, 512, time.Second, nil)
	logger.Close()

	report, err := GenerateSummaryReport(context.Background(), db, logDir)
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.Stats.Records != 3 || report.Stats.Sequences != 1 {
		t.Errorf("unexpected stats %+v", report.Stats)
	}
	if report.Runs != 1 {
		t.Errorf("Runs = %d, want 1", report.Runs)
	}
	if report.RecordsInserted != 2 || report.Duplicates != 1 {
		t.Errorf("RecordsInserted=%d Duplicates=%d", report.RecordsInserted, report.Duplicates)
	}
	if report.SequencesSet != 1 {
		t.Errorf("SequencesSet = %d, failed runs must not count", report.SequencesSet)
	}
	if report.ExportedRecords != 3 || report.ExportedBytes != 512 {
		t.Errorf("Exported %d records / %d bytes", report.ExportedRecords, report.ExportedBytes)
	}
	if len(report.TopErrors) != 1 || report.TopErrors[0].Count != 2 {
		t.Errorf("TopErrors = %+v, want one error counted twice", report.TopErrors)
	}
}

func TestGenerateSummaryReport_NoLogs(t *testing.T) {
	db := openTestStore(t)

	report, err := GenerateSummaryReport(context.Background(), db, filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	if report.Runs != 0 || len(report.TopErrors) != 0 {
		t.Errorf("expected empty activity, got %+v", report)
	}
}

func TestGatherTopErrors(t *testing.T) {
	var events []Event
	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			events = append(events, Event{Level: LevelError, Error: "error " + string(rune('a'+i))})
		}
	}
	events = append(events, Event{Level: LevelWarning, Error: "not an error"})

	top := gatherTopErrors(events, 10)
	if len(top) != 10 {
		t.Fatalf("expected 10 errors, got %d", len(top))
	}
	if top[0].Error != "error l" || top[0].Count != 12 {
		t.Errorf("most frequent error first, got %+v", top[0])
	}
	for i := 1; i < len(top); i++ {
		if top[i].Count > top[i-1].Count {
			t.Errorf("errors not sorted by count at %d", i)
		}
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	db := openTestStore(t)
	setupTestData(t, db)

	report, err := GenerateSummaryReport(context.Background(), db, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	report.DatabasePath = "/data/gg.db"
	report.TopErrors = []ErrorSummary{{Error: "lock refused", Count: 3}}

	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	for _, want := range []string{
		"# Greengenes Curation - Summary Report",
		"**Database:** `/data/gg.db`",
		"| Records | 3 |",
		"| gg_13_5 | 1 |",
		"| in_holding | 3 |",
		"| clone | 2 |",
		"| aligned_seq_id | 1 | 33.3% |",
		"| 3 | lock refused |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(md, "## 📋 Activity") {
		t.Error("activity section should be omitted without event logs")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := truncate(long, 120)
	if len(got) > 120 || !strings.Contains(got, "...") {
		t.Errorf("truncate(%d chars) = %d chars", len(long), len(got))
	}
	if truncate("short", 120) != "short" {
		t.Error("short strings should not be truncated")
	}
}

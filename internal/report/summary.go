package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
)

// SummaryReport represents a complete summary report
type SummaryReport struct {
	GeneratedAt time.Time

	// Database contents
	Stats *store.Stats

	// Audit log activity
	Runs            int
	RecordsInserted int
	Duplicates      int
	SequencesSet    int
	TaxonomySet     int
	ClustersAdded   int
	LockContentions int
	ExportedRecords int
	ExportedBytes   int64

	TopErrors []ErrorSummary

	// Metadata
	DatabasePath string
	EventLogDir  string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateSummaryReport combines database statistics with the activity
// recorded in the audit logs under eventLogDir. A missing log directory is
// not an error.
func GenerateSummaryReport(ctx context.Context, db *store.Store, eventLogDir string) (*SummaryReport, error) {
	stats, err := db.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	report := &SummaryReport{
		GeneratedAt: time.Now(),
		Stats:       stats,
		EventLogDir: eventLogDir,
		TopErrors:   make([]ErrorSummary, 0),
	}
	if eventLogDir == "" {
		return report, nil
	}

	events, err := readEvents(eventLogDir)
	if err != nil {
		return nil, err
	}
	report.tally(events)
	report.TopErrors = gatherTopErrors(events, 10)
	return report, nil
}

// readEvents loads every event from the JSONL files in dir. Lines that do
// not decode are skipped with a warning.
func readEvents(dir string) ([]Event, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list event logs: %w", err)
	}
	sort.Strings(paths)

	var events []Event
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var ev Event
			if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
				util.WarnLog("skipping malformed event in %s: %v", path, err)
				continue
			}
			events = append(events, ev)
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return events, nil
}

func (r *SummaryReport) tally(events []Event) {
	runs := make(map[string]struct{})
	for _, ev := range events {
		runs[ev.RunID] = struct{}{}
		if ev.Level == LevelError {
			continue
		}
		switch ev.Event {
		case EventInsertRecord:
			r.RecordsInserted++
		case EventDuplicate:
			r.Duplicates++
		case EventInsertSequence, EventUpdateSequence:
			r.SequencesSet += ev.Count
		case EventInsertTaxonomy, EventUpdateTaxonomy:
			r.TaxonomySet += ev.Count
		case EventInsertOTU:
			r.ClustersAdded++
		case EventLockContention:
			r.LockContentions++
		case EventExport:
			r.ExportedRecords += ev.Count
			r.ExportedBytes += ev.Bytes
		}
	}
	r.Runs = len(runs)
}

// gatherTopErrors counts identical error messages, most frequent first
func gatherTopErrors(events []Event, limit int) []ErrorSummary {
	errorCounts := make(map[string]int)
	for _, ev := range events {
		if ev.Level == LevelError && ev.Error != "" {
			errorCounts[ev.Error]++
		}
	}

	errors := make([]ErrorSummary, 0, len(errorCounts))
	for err, count := range errorCounts {
		errors = append(errors, ErrorSummary{Error: err, Count: count})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}
	return errors
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown formats the report
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Greengenes Curation - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogDir != "" {
		md.WriteString(fmt.Sprintf("**Event Logs:** `%s`\n\n", report.EventLogDir))
	}
	md.WriteString("---\n\n")

	if st := report.Stats; st != nil {
		md.WriteString("## 📊 Overview\n\n")
		md.WriteString("| Table | Rows |\n")
		md.WriteString("|-------|------|\n")
		md.WriteString(fmt.Sprintf("| Records | %s |\n", util.FormatCount(st.Records)))
		md.WriteString(fmt.Sprintf("| Sequences | %s |\n", util.FormatCount(st.Sequences)))
		md.WriteString(fmt.Sprintf("| Taxonomy Strings | %s |\n", util.FormatCount(st.Taxonomy)))
		md.WriteString(fmt.Sprintf("| OTU Clusters | %s |\n", util.FormatCount(st.Clusters)))
		md.WriteString(fmt.Sprintf("| OTU Memberships | %s |\n", util.FormatCount(st.OTUMembers)))
		md.WriteString(fmt.Sprintf("\nSchema version %d\n\n", st.SchemaVersion))

		if len(st.Releases) > 0 {
			md.WriteString("## 🏷️ Releases\n\n")
			md.WriteString("| Release | Records |\n")
			md.WriteString("|---------|---------|\n")
			for _, rel := range st.Releases {
				md.WriteString(fmt.Sprintf("| %s | %s |\n", rel.Name, util.FormatCount(rel.Records)))
			}
			md.WriteString("\n")
		}

		if len(st.Decisions) > 0 {
			md.WriteString("## 🧫 Decisions\n\n")
			md.WriteString("| Decision | Records |\n")
			md.WriteString("|----------|---------|\n")
			decisions := make([]string, 0, len(st.Decisions))
			for d := range st.Decisions {
				decisions = append(decisions, string(d))
			}
			sort.Strings(decisions)
			for _, d := range decisions {
				md.WriteString(fmt.Sprintf("| %s | %s |\n", d, util.FormatCount(st.Decisions[store.Decision(d)])))
			}
			md.WriteString("\n")
		}

		if st.Records > 0 {
			md.WriteString("## 🔗 Link Coverage\n\n")
			md.WriteString("| Column | Records | Share |\n")
			md.WriteString("|--------|---------|-------|\n")
			cols := make([]string, 0, len(st.Coverage))
			for c := range st.Coverage {
				cols = append(cols, c)
			}
			sort.Strings(cols)
			for _, c := range cols {
				n := st.Coverage[c]
				md.WriteString(fmt.Sprintf("| %s | %s | %.1f%% |\n", c, util.FormatCount(n), 100*float64(n)/float64(st.Records)))
			}
			md.WriteString("\n")
		}
	}

	if report.Runs > 0 {
		md.WriteString("## 📋 Activity\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Runs | %d |\n", report.Runs))
		md.WriteString(fmt.Sprintf("| Records Inserted | %d |\n", report.RecordsInserted))
		if report.Duplicates > 0 {
			md.WriteString(fmt.Sprintf("| Duplicates Refused | %d |\n", report.Duplicates))
		}
		md.WriteString(fmt.Sprintf("| Sequences Loaded | %d |\n", report.SequencesSet))
		md.WriteString(fmt.Sprintf("| Taxonomy Links Set | %d |\n", report.TaxonomySet))
		md.WriteString(fmt.Sprintf("| OTU Clusters Added | %d |\n", report.ClustersAdded))
		if report.LockContentions > 0 {
			md.WriteString(fmt.Sprintf("| Lock Contentions | %d |\n", report.LockContentions))
		}
		if report.ExportedRecords > 0 {
			md.WriteString(fmt.Sprintf("| Records Exported | %d |\n", report.ExportedRecords))
			md.WriteString(fmt.Sprintf("| Bytes Exported | %s |\n", util.FormatBytes(report.ExportedBytes)))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, truncate(err.Error, 120)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by ggc - Greengenes curation tool*\n")
	return md.String()
}

// truncate shortens s to maxLen, keeping the start and end
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := maxLen/2 - 2
	end := len(s) - (maxLen/2 - 2)
	return s[:start] + "..." + s[end:]
}

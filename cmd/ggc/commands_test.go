package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type cli struct {
	t      *testing.T
	dir    string
	db     string
	logDir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	util.SetLogOutput(io.Discard)
	t.Cleanup(func() { util.SetLogOutput(nil) })
	dir := t.TempDir()
	return &cli{t: t, dir: dir, db: filepath.Join(dir, "gg.db"), logDir: filepath.Join(dir, "logs")}
}

// run executes ggc with the test database and returns stdout
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--db", c.db, "--log-dir", c.logDir))
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("ggc %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func (c *cli) file(name, content string) string {
	c.t.Helper()
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		c.t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestInsertRecordAndShow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("init")

	out := c.mustRun("insert-record", "--accession", "EU1.1", "--decision", "clone", "--organism", "Escherichia coli")
	if out != "EU1.1\t1\n" {
		t.Errorf("insert-record printed %q", out)
	}

	_, err := c.run("insert-record", "--accession", "EU1.1")
	var dup *store.DuplicateRecordError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRecordError, got %v", err)
	}
	if exitCode(err) != exitConflict {
		t.Errorf("exitCode = %d, want %d", exitCode(err), exitConflict)
	}

	if out := c.mustRun("insert-record", "--accession", "EU1.1", "--skip-duplicates"); out != "" {
		t.Errorf("skipped duplicate should print nothing, got %q", out)
	}

	show := c.mustRun("show", "EU1.1")
	for _, want := range []string{"=== Record 1 ===", "Escherichia coli", "in_holding", "clone"} {
		if !strings.Contains(show, want) {
			t.Errorf("show output missing %q:\n%s", want, show)
		}
	}

	_, err = c.run("show", "EU404.1")
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCurationWorkflow(t *testing.T) {
	c := newCLI(t)

	var blocks strings.Builder
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&blocks, "BEGIN\nncbi_acc_w_ver=EU%d.1\ndecision=isolate\nstrain=S%d\nEND\n\n", i, i)
	}
	out := c.mustRun("insert-record", "--from", c.file("records.txt", blocks.String()), "--release", "gg_13_5")
	if strings.Count(out, "\n") != 5 {
		t.Fatalf("expected 5 inserted records, got %q", out)
	}

	fasta := c.file("aligned.fna", ">1\nAC-GT\n>2\nAC--T\n>3\nA\n>4\nC\n>5\nG\n")
	c.mustRun("update-seq", "--field", "aligned", fasta)

	_, err := c.run("update-seq", "--dry-run", c.file("extra.fna", ">1\nA\n>9\nC\n"))
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("dry run with unknown id: expected ErrNotFound, got %v", err)
	}

	c.mustRun("update-tax", "--source", "ncbi", c.file("tax.tsv", "1\tk__Bacteria\n2\tNone\n"))

	otu := c.mustRun("insert-otu", "--rep", "1", "--members", "2,3", "--method", "uclust", "--similarity", "0.97", "--release", "gg_13_5")
	if otu != "1\n" {
		t.Errorf("insert-otu printed %q", otu)
	}
	if show := c.mustRun("show", "--otu", "1"); !strings.Contains(show, "uclust@0.97") {
		t.Errorf("show --otu output:\n%s", show)
	}

	base := filepath.Join(c.dir, "out", "gg")
	c.mustRun("export", "--page-size", "2", "--release", "gg_13_5", base)
	for n := 0; n < 3; n++ {
		if _, err := os.Stat(fmt.Sprintf("%s_%d.txt.gz", base, n)); err != nil {
			t.Errorf("shard %d missing: %v", n, err)
		}
	}
	if _, err := os.Stat(base + "_3.txt.gz"); !os.IsNotExist(err) {
		t.Error("unexpected fourth shard")
	}

	text := c.mustRun("export", "--ids", "1")
	for _, want := range []string{"BEGIN\ngg_id=1\n", "ncbi_tax_string=k__Bacteria\n", "aligned_seq=AC-GT\nEND\n\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("export output missing %q:\n%s", want, text)
		}
	}

	reportDir := filepath.Join(c.dir, "report")
	c.mustRun("report", "--out", reportDir)
	md, err := os.ReadFile(filepath.Join(reportDir, "summary.md"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(md), "| gg_13_5 | 5 |") {
		t.Errorf("report missing release count:\n%s", md)
	}
}

func TestInsertSeqAndTax(t *testing.T) {
	c := newCLI(t)

	if out := c.mustRun("insert-seq", "ACGT", "GGCC"); out != "1\n2\n" {
		t.Errorf("insert-seq printed %q", out)
	}
	if out := c.mustRun("insert-tax", "--tax-version", "gg_13_5", "k__Archaea"); out != "1\n" {
		t.Errorf("insert-tax printed %q", out)
	}
	if _, err := c.run("insert-seq", " "); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank sequence, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), exitFailure},
		{fmt.Errorf("wrap: %w", util.ErrInvalidInput), exitUsage},
		{&store.NotFoundError{Kind: "record", Key: "7"}, exitNotFound},
		{fmt.Errorf("insert: %w", &store.DuplicateRecordError{Accession: "A"}), exitConflict},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"7,32", " 49 ", ""})
	if err != nil {
		t.Fatalf("parseIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != 7 || ids[1] != 32 || ids[2] != 49 {
		t.Errorf("parseIDs = %v", ids)
	}
	if _, err := parseIDs([]string{"7,x"}); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show KEY...",
	Short: "Show records by gg_id or accession",
	Long: `Print a record with its taxonomy strings, sequences, releases and OTU
clusters. KEY is a gg_id or an ncbi_acc_w_ver; numeric keys are tried
as gg_ids first.

With --otu the keys are cluster ids instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("otu", false, "keys are otu cluster ids")
	showCmd.Flags().Bool("full", false, "print sequences without truncation")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	otu, _ := cmd.Flags().GetBool("otu")
	full, _ := cmd.Flags().GetBool("full")

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	width := 0
	if !full {
		width = util.GetTerminalWidth() - 22
	}

	for _, key := range args {
		if otu {
			id, err := parseID(key)
			if err != nil {
				return err
			}
			if err := showCluster(ctx, out, db, id); err != nil {
				return err
			}
			continue
		}
		if err := showRecord(ctx, out, db, key, width); err != nil {
			return err
		}
	}
	return nil
}

func showRecord(ctx context.Context, w io.Writer, db *store.Store, key string, width int) error {
	detail, err := db.SelectRecord(ctx, key)
	if err != nil {
		return err
	}
	if detail == nil {
		return &store.NotFoundError{Kind: "record", Key: key}
	}
	rec := detail.Record

	fmt.Fprintf(w, "=== Record %d ===\n", rec.ID)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-20s %s\n", label+":", value)
		}
	}
	num := func(p *int64) string {
		if p == nil {
			return ""
		}
		return fmt.Sprint(*p)
	}
	float := func(p *float64) string {
		if p == nil {
			return ""
		}
		return store.FormatFloat(*p)
	}

	row("Accession", rec.Accession)
	row("GI", num(rec.GI))
	row("Decision", string(rec.Decision))
	row("Organism", rec.Organism)
	row("Strain", rec.Strain)
	row("Clone", rec.Clone)
	row("Isolation source", rec.IsolationSource)
	row("Specific host", rec.SpecificHost)
	row("Country", rec.Country)
	row("Title", rec.Title)
	row("Authors", rec.Authors)
	row("Journal", rec.Journal)
	row("PubMed", num(rec.PubMed))
	row("Submitted", rec.SubmitDate)
	row("Non-ACGT %", float(rec.NonACGTPercent))
	row("Core identity %", float(rec.PercIdentToInvariantCore))
	row("Gap intrusions", float(rec.SmallGapIntrusions))

	for _, src := range store.TaxonomySources {
		if tax := detail.Taxonomy[src]; tax != nil {
			row("Taxonomy "+string(src), *tax)
		}
	}
	seq := func(label string, s *string) {
		if s != nil {
			row(label, fmt.Sprintf("%s (%d bp)", util.Elide(*s, width), len(*s)))
		}
	}
	seq("Unaligned", detail.Unaligned)
	seq("Aligned", detail.Aligned)
	seq("PyNAST", detail.PyNAST)

	releases, err := db.GetReleases(ctx, rec.ID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(releases))
	for _, r := range releases {
		names = append(names, r.Name)
	}
	row("Releases", strings.Join(names, ", "))

	clusters, err := db.ClustersForRecord(ctx, rec.ID)
	if err != nil {
		return err
	}
	if len(clusters) > 0 {
		row("OTU clusters", fmt.Sprint(clusters))
	}
	fmt.Fprintln(w)
	return nil
}

func showCluster(ctx context.Context, w io.Writer, db *store.Store, id int64) error {
	c, err := db.GetOTUCluster(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return &store.NotFoundError{Kind: "otu cluster", Key: fmt.Sprint(id)}
	}
	fmt.Fprintf(w, "=== OTU cluster %d ===\n", c.ID)
	fmt.Fprintf(w, "  %-20s %d\n", "Representative:", c.RepresentativeID)
	fmt.Fprintf(w, "  %-20s %s@%s\n", "Method:", c.Method, store.FormatFloat(c.Similarity))
	fmt.Fprintf(w, "  %-20s %d\n", "Release key:", c.ReleaseKey)
	fmt.Fprintf(w, "  %-20s %d %v\n\n", "Members:", len(c.Members), c.Members)
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/gg-curator/internal/ingest"
	"github.com/franz/gg-curator/internal/report"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var updateTaxCmd = &cobra.Command{
	Use:   "update-tax TABLE",
	Short: "Set one classifier's taxonomy on records from a gg_id<TAB>taxonomy table",
	Long: `Read a tab separated table of gg_id and taxonomy string and link each record
to a new taxonomy row for the given source (ncbi, silva, greengenes or
hugenholtz). Empty, NULL or None strings clear the link.

All rows are written in one transaction: if any gg_id is unknown nothing
changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdateTax,
}

func init() {
	rootCmd.AddCommand(updateTaxCmd)
	updateTaxCmd.Flags().String("source", string(store.SourceGreengenes), "taxonomy source: ncbi, silva, greengenes or hugenholtz")
	updateTaxCmd.Flags().String("tax-version", store.DefaultTaxonomyVersion, "version label stored with each string")
	updateTaxCmd.Flags().Bool("dry-run", false, "check the input against the database without writing")
}

func runUpdateTax(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sourceName, _ := cmd.Flags().GetString("source")
	source := store.TaxonomySource(sourceName)
	if _, err := source.Column(); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	version, _ := cmd.Flags().GetString("tax-version")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	start := time.Now()
	values, err := ingest.ReadTaxonomyFile(afero.NewOsFs(), args[0])
	if err != nil {
		return err
	}
	util.InfoLog("Read %s taxonomy rows from %s", util.FormatCount(int64(len(values))), args[0])

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if dryRun {
		ids := make([]int64, 0, len(values))
		for id := range values {
			ids = append(ids, id)
		}
		recs, err := db.GetRecords(ctx, ids)
		if err != nil {
			return err
		}
		missing := 0
		for id, rec := range recs {
			if rec == nil {
				util.WarnLog("No record for gg_id %d", id)
				missing++
			}
		}
		if missing > 0 {
			return fmt.Errorf("%w: %d of %d gg_ids have no record", util.ErrNotFound, missing, len(values))
		}
		util.SuccessLog("Dry run: all %d gg_ids have records", len(values))
		return nil
	}

	events := openEventLog(cfg)
	defer events.Close()

	_, err = withLockRetry(cfg, events, "update-tax", func() (map[int64]int64, error) {
		return db.UpdateTaxonomy(ctx, source, values, version)
	})
	events.LogBulk(report.EventUpdateTaxonomy, string(source), args[0], len(values), time.Since(start), err)
	if err != nil {
		return err
	}

	util.SuccessLog("Set %s taxonomy on %s records", source, util.FormatCount(int64(len(values))))
	return nil
}

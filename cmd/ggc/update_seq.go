package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/franz/gg-curator/internal/ingest"
	"github.com/franz/gg-curator/internal/report"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var updateSeqCmd = &cobra.Command{
	Use:   "update-seq FASTA...",
	Short: "Attach sequences from FASTA files to records",
	Long: `Read FASTA files whose record names are gg_ids and store each sequence as
the chosen variant (unaligned, aligned or pynast) of that record. Files
may be gzip-compressed and are parsed in parallel.

All sequences are written in one transaction: if any gg_id is unknown
nothing changes. --dry-run stages the input in a scratch table and lists
the gg_ids that have no record.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateSeq,
}

func init() {
	rootCmd.AddCommand(updateSeqCmd)
	updateSeqCmd.Flags().String("field", string(store.FieldAligned), "sequence variant: unaligned, aligned or pynast")
	updateSeqCmd.Flags().Bool("dry-run", false, "check the input against the database without writing")
}

func runUpdateSeq(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fieldName, _ := cmd.Flags().GetString("field")
	field := store.SequenceField(fieldName)
	if _, err := field.Column(); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx := context.Background()
	start := time.Now()
	seqs, err := ingest.ReadSequenceFiles(ctx, afero.NewOsFs(), args)
	if err != nil {
		return err
	}
	util.InfoLog("Read %s sequences from %d file(s)", util.FormatCount(int64(len(seqs))), len(args))

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if dryRun {
		return checkStagedSequences(ctx, db, seqs)
	}

	events := openEventLog(cfg)
	defer events.Close()

	_, err = withLockRetry(cfg, events, "update-seq", func() (map[int64]int64, error) {
		return db.UpdateSequences(ctx, field, seqs)
	})
	events.LogBulk(report.EventUpdateSequence, string(field), strings.Join(args, ","), len(seqs), time.Since(start), err)
	if err != nil {
		return err
	}

	util.SuccessLog("Set %s sequences on %s records in %s",
		field, util.FormatCount(int64(len(seqs))), util.FormatDuration(time.Since(start)))
	return nil
}

// checkStagedSequences loads seqs into a scratch table and reports the ids
// without a record. The scratch table is always dropped.
func checkStagedSequences(ctx context.Context, db *store.Store, seqs map[int64]string) (err error) {
	table, err := db.CreateScratchSequenceTable(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if derr := db.DropScratchTable(ctx, table); derr != nil && err == nil {
			err = derr
		}
	}()

	if err := db.StageSequences(ctx, table, seqs); err != nil {
		return err
	}
	missing, err := db.MissingStagedRecords(ctx, table)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		util.SuccessLog("Dry run: all %d gg_ids have records", len(seqs))
		return nil
	}
	for _, id := range missing {
		util.WarnLog("No record for gg_id %d", id)
	}
	return fmt.Errorf("%w: %d of %d gg_ids have no record", util.ErrNotFound, len(missing), len(seqs))
}

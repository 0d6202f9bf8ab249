package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/franz/gg-curator/internal/ingest"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var insertRecordCmd = &cobra.Command{
	Use:   "insert-record",
	Short: "Add a new record under a freshly allocated gg_id",
	Long: `Add records to the database. Each record gets the next free gg_id and is
tagged with a release (in_holding by default).

Give one record with flags, or many with --from, which reads BEGIN/END
key=value blocks (plain or gzip). Accessions that already exist are
refused; with --skip-duplicates they are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runInsertRecord,
}

func init() {
	rootCmd.AddCommand(insertRecordCmd)

	f := insertRecordCmd.Flags()
	f.String("from", "", "read records from a block file")
	f.String("release", store.DefaultRelease, "release to tag new records with")
	f.Bool("skip-duplicates", false, "skip accessions that already exist instead of failing")
	f.String("accession", "", "ncbi_acc_w_ver of the record")
	f.String("decision", string(store.DecisionUndetermined), "clone, isolate, named_isolate or undetermined")
	f.Int64("gi", 0, "ncbi_gi")
	f.String("organism", "", "organism")
	f.String("strain", "", "strain")
	f.String("clone", "", "clone")
	f.String("isolation-source", "", "isolation source")
	f.String("country", "", "country")
	f.String("db-name", "", "source database name")
}

// recordFromFlags builds a single record from the command's flags
func recordFromFlags(cmd *cobra.Command) (*store.Record, error) {
	f := cmd.Flags()
	acc, _ := f.GetString("accession")
	if acc == "" {
		return nil, fmt.Errorf("%w: --accession or --from is required", util.ErrInvalidInput)
	}
	decision, _ := f.GetString("decision")
	d, err := store.ParseDecision(decision)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}

	rec := &store.Record{Accession: acc, Decision: d}
	rec.Organism, _ = f.GetString("organism")
	rec.Strain, _ = f.GetString("strain")
	rec.Clone, _ = f.GetString("clone")
	rec.IsolationSource, _ = f.GetString("isolation-source")
	rec.Country, _ = f.GetString("country")
	rec.DBName, _ = f.GetString("db-name")
	if f.Changed("gi") {
		gi, _ := f.GetInt64("gi")
		rec.GI = &gi
	}
	return rec, nil
}

func runInsertRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")
	release, _ := cmd.Flags().GetString("release")
	skipDup, _ := cmd.Flags().GetBool("skip-duplicates")

	var recs []*store.Record
	if from != "" {
		if recs, err = ingest.ReadRecordFile(afero.NewOsFs(), from); err != nil {
			return err
		}
	} else {
		rec, err := recordFromFlags(cmd)
		if err != nil {
			return err
		}
		recs = []*store.Record{rec}
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEventLog(cfg)
	defer events.Close()

	ctx := context.Background()
	inserted, skipped := 0, 0
	for _, rec := range recs {
		rec := rec
		if rec.Decision == "" {
			rec.Decision = store.DecisionUndetermined
		}
		id, err := withLockRetry(cfg, events, "insert-record", func() (int64, error) {
			return db.InsertRecord(ctx, rec, release)
		})

		var dup *store.DuplicateRecordError
		if errors.As(err, &dup) {
			events.LogDuplicate(rec.Accession)
			if skipDup {
				util.WarnLog("Skipping %s: already present", rec.Accession)
				skipped++
				continue
			}
		}
		events.LogInsertRecord(id, rec.Accession, release, err)
		if err != nil {
			return err
		}

		inserted++
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", rec.Accession, id)
	}

	util.SuccessLog("Inserted %d record(s) into %s", inserted, release)
	if skipped > 0 {
		util.WarnLog("Skipped %d duplicate accession(s)", skipped)
	}
	return nil
}

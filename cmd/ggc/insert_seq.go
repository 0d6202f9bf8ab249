package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/franz/gg-curator/internal/report"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var insertSeqCmd = &cobra.Command{
	Use:   "insert-seq SEQUENCE...",
	Short: "Store loose sequences and print their new ids",
	Long: `Store each argument as a new sequence row and print the allocated seq_id.
The sequences are not linked to any record; use update-seq to attach
sequences to records.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInsertSeq,
}

func init() {
	rootCmd.AddCommand(insertSeqCmd)
}

func runInsertSeq(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, s := range args {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: empty sequence", util.ErrInvalidInput)
		}
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEventLog(cfg)
	defer events.Close()

	ctx := context.Background()
	start := time.Now()
	for i, s := range args {
		s := s
		id, err := withLockRetry(cfg, events, "insert-seq", func() (int64, error) {
			return db.InsertSequence(ctx, s)
		})
		if err != nil {
			events.LogBulk(report.EventInsertSequence, "", "", i, time.Since(start), err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", id)
	}
	events.LogBulk(report.EventInsertSequence, "", "", len(args), time.Since(start), nil)
	return nil
}

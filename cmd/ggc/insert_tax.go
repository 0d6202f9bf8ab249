package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/franz/gg-curator/internal/report"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var insertTaxCmd = &cobra.Command{
	Use:   "insert-tax TAXONOMY...",
	Short: "Store loose taxonomy strings and print their new ids",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInsertTax,
}

func init() {
	rootCmd.AddCommand(insertTaxCmd)
	insertTaxCmd.Flags().String("tax-version", store.DefaultTaxonomyVersion, "version label stored with each string")
}

func runInsertTax(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	version, _ := cmd.Flags().GetString("tax-version")
	for _, s := range args {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: empty taxonomy string", util.ErrInvalidInput)
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
		id, err := withLockRetry(cfg, events, "insert-tax", func() (int64, error) {
			return db.InsertTaxonomy(ctx, s, version)
		})
		if err != nil {
			events.LogBulk(report.EventInsertTaxonomy, version, "", i, time.Since(start), err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", id)
	}
	events.LogBulk(report.EventInsertTaxonomy, version, "", len(args), time.Since(start), nil)
	return nil
}

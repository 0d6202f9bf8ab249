package main

import (
	"context"
	"fmt"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var insertOTUCmd = &cobra.Command{
	Use:   "insert-otu",
	Short: "Store one OTU clustering result",
	Long: `Store an OTU cluster: its representative, members, clustering method and
similarity threshold. The representative must be tagged with --release
and is always counted as a member. Unknown members abort the whole
cluster.`,
	Example: `  ggc insert-otu --rep 13 --members 7,32,49 --method uclust --similarity 0.97 --release gg_13_5`,
	Args:    cobra.NoArgs,
	RunE:    runInsertOTU,
}

func init() {
	rootCmd.AddCommand(insertOTUCmd)

	f := insertOTUCmd.Flags()
	f.Int64("rep", 0, "gg_id of the representative")
	f.StringSlice("members", nil, "member gg_ids")
	f.String("method", "", fmt.Sprintf("clustering method (at most %d characters)", store.MaxMethodLength))
	f.Float64("similarity", 0, "similarity threshold, e.g. 0.97")
	f.String("release", store.DefaultRelease, "release the representative belongs to")
	insertOTUCmd.MarkFlagRequired("rep")
	insertOTUCmd.MarkFlagRequired("method")
}

func runInsertOTU(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	rep, _ := f.GetInt64("rep")
	if rep <= 0 {
		return fmt.Errorf("%w: --rep must be a gg_id", util.ErrInvalidInput)
	}
	memberArgs, _ := f.GetStringSlice("members")
	members, err := parseIDs(memberArgs)
	if err != nil {
		return err
	}
	method, _ := f.GetString("method")
	similarity, _ := f.GetFloat64("similarity")
	release, _ := f.GetString("release")

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEventLog(cfg)
	defer events.Close()

	ctx := context.Background()
	id, err := withLockRetry(cfg, events, "insert-otu", func() (int64, error) {
		return db.InsertOTU(ctx, rep, members, method, similarity, release)
	})
	events.LogOTU(id, rep, len(members), release, method, err)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", id)
	util.SuccessLog("Stored cluster %d (rep %d, %s@%g)", id, rep, method, similarity)
	return nil
}

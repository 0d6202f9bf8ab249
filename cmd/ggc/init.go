package main

import (
	"context"

	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database or bring its schema up to date",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		return err
	}
	util.SuccessLog("Database %s ready (%s, schema version %d)", cfg.Database, db.Driver(), version)
	return nil
}

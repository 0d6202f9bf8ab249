package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/franz/gg-curator/internal/metrics"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "ggc",
		Short: "Greengenes curator - curation database for 16S rRNA records",
		Long: `ggc maintains the Greengenes curation database: sequence records with their
metadata, sequence variants, classifier taxonomies, release tags and OTU
clusters, and exports them as BEGIN/END record blocks.

Writers coordinate through table locks and fail fast when another session
holds them; use --lock-retries to wait and retry instead.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return writeMetrics()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	defaults := util.DefaultConfig()

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./configs/example.yaml)")
	pf.String("driver", defaults.Driver, "database engine: sqlite or postgres")
	pf.String("db", defaults.Database, "database file (sqlite) or connection URL (postgres)")
	pf.Duration("busy-timeout", 0, "how long sqlite waits on a locked database (0 fails immediately)")
	pf.Bool("network-db", false, "database lives on a network filesystem (disables WAL)")
	pf.Int("lock-retries", defaults.LockRetries, "attempts when tables are locked by another session")
	pf.String("log-dir", defaults.LogDir, "directory for JSONL audit logs (empty disables)")
	pf.String("metrics-file", "", "write prometheus metrics here on exit")
	pf.Bool("trace-sql", false, "log every SQL statement at debug level")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, name := range []string{
		"driver", "db", "busy-timeout", "network-db", "lock-retries",
		"log-dir", "metrics-file", "trace-sql", "verbose", "quiet",
	} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("example")
		viper.SetConfigType("yaml")
	}

	// GGC_DB, GGC_LOCK_RETRIES, GGC_EXPORT_S3_BUCKET, ...
	viper.SetEnvPrefix("GGC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	return nil
}

func writeMetrics() error {
	path := viper.GetString("metrics-file")
	if path == "" {
		return nil
	}
	if err := metrics.WriteTextfile(path); err != nil {
		return err
	}
	util.DebugLog("Metrics written to %s", path)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Metrics are still useful when the command failed
		if merr := writeMetrics(); merr != nil {
			util.WarnLog("%v", merr)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

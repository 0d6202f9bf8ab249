package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure ggc can operate correctly.

This command checks:
- SQLite version
- Database accessibility, schema version and integrity
- Audit log directory permissions
- Disk space next to the database
- Object storage configuration for exports

Use this command to troubleshoot issues before running ggc operations.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	util.InfoLog("=== GGC Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}
	results = append(results, checkDatabase(cfg))
	if cfg.LogDir != "" {
		results = append(results, checkWritableDir(cfg.LogDir, "Audit log directory"))
	}
	if cfg.Driver == "sqlite" {
		results = append(results, checkDiskSpace(filepath.Dir(cfg.Database), "database"))
	}
	if cfg.Export.S3.Bucket != "" {
		results = append(results, checkS3Config(cfg.Export.S3))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors, hasWarnings := printResults(results)

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running ggc.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for ggc operations.")
	}
	return nil
}

func printResults(results []checkResult) (hasErrors, hasWarnings bool) {
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}
	return hasErrors, hasWarnings
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is compiled in, no external library needed
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}
	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies the database can be opened and passes integrity checks
func checkDatabase(cfg *util.Config) checkResult {
	if cfg.Database == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database specified (use --db flag or config)",
		}
	}

	var size string
	if cfg.Driver == "sqlite" {
		info, err := os.Stat(cfg.Database)
		if err != nil {
			if os.IsNotExist(err) {
				return checkResult{
					name:    "Database",
					message: fmt.Sprintf("%s (will be created by ggc init)", cfg.Database),
				}
			}
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("cannot access %s: %v", cfg.Database, err),
			}
		}
		if !info.Mode().IsRegular() {
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("%s is not a regular file", cfg.Database),
			}
		}
		size = util.FormatBytes(info.Size())
	}

	db, err := openStore(cfg)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", cfg.Database, err),
		}
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	version, _ := db.SchemaVersion(ctx)
	records, _ := db.CountRecords(ctx)
	msg := fmt.Sprintf("%s (%s, schema v%d, %s records", cfg.Database, db.Driver(), version, util.FormatCount(records))
	if size != "" {
		msg += ", " + size
	}
	return checkResult{name: "Database", message: msg + ")"}
}

// checkWritableDir verifies a directory exists or can be created, and is writable
func checkWritableDir(path, label string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    label,
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    label,
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".ggc_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    label,
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	availGB := float64(availBytes) / (1024 * 1024 * 1024)
	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Sequence tables grow by gigabytes per release
	warning := false
	warningMsg := ""
	if availGB < 5 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 90 {
		warning = true
		warningMsg = " (>90% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", util.FormatBytes(int64(availBytes)), warningMsg),
	}
}

// checkS3Config reports incomplete object storage settings
func checkS3Config(cfg util.S3Config) checkResult {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey == "" {
		return checkResult{
			name:    "S3 export",
			error:   true,
			message: "access key id set without secret access key",
		}
	}
	creds := "default credential chain"
	if cfg.AccessKeyID != "" {
		creds = "static credentials"
	}
	where := "s3://" + cfg.Bucket
	if cfg.Prefix != "" {
		where += "/" + cfg.Prefix
	}
	if cfg.Endpoint != "" {
		where += " via " + cfg.Endpoint
	}
	return checkResult{
		name:    "S3 export",
		message: fmt.Sprintf("%s (%s)", where, creds),
	}
}

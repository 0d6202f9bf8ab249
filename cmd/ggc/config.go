package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/franz/gg-curator/internal/report"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/viper"
)

// Exit codes beyond the generic 1
const (
	exitUsage    = 2
	exitConflict = 3
	exitLockBusy = 75 // EX_TEMPFAIL
	exitNotFound = 4
	exitFailure  = 1
)

// loadConfig decodes flags, GGC_* environment variables and the config file
func loadConfig() (*util.Config, error) {
	return util.LoadConfig(viper.GetViper())
}

// openStore opens the configured database
func openStore(cfg *util.Config) (*store.Store, error) {
	opts := &store.OpenOptions{
		Driver:           cfg.Driver,
		NetworkOptimized: cfg.NetworkDB,
		BusyTimeout:      cfg.BusyTimeout,
	}
	if cfg.TraceSQL {
		opts.Trace = func(stmt string) { util.DebugLog("sql: %s", stmt) }
	}
	db, err := store.OpenWithOptions(cfg.Database, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openEventLog opens the audit log, or returns the null logger when
// logging is disabled or the directory cannot be written.
func openEventLog(cfg *util.Config) *report.EventLogger {
	if cfg.LogDir == "" {
		return report.NullLogger()
	}
	logger, err := report.NewEventLogger(cfg.LogDir, report.LevelInfo)
	if err != nil {
		util.WarnLog("Audit log disabled: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Audit log: %s", logger.Path())
	return logger
}

// withLockRetry runs op, retrying while another session holds its tables.
// Each refused attempt is recorded in the audit log.
func withLockRetry[T any](cfg *util.Config, events *report.EventLogger, name string, op func() (T, error)) (T, error) {
	return util.RetryWithBackoff(util.LockRetryConfig(cfg.LockRetries), func() (T, error) {
		v, err := op()
		var lerr *store.LockError
		if errors.As(err, &lerr) && lerr.Temporary() {
			events.LogLockContention(name, err)
		}
		return v, err
	}, name)
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	var lerr *store.LockError
	switch {
	case errors.As(err, &lerr) && lerr.Temporary():
		return exitLockBusy
	case errors.Is(err, util.ErrConflict):
		return exitConflict
	case errors.Is(err, util.ErrNotFound):
		return exitNotFound
	case errors.Is(err, util.ErrInvalidInput), errors.Is(err, util.ErrInvalidConfig):
		return exitUsage
	}
	return exitFailure
}

// parseID parses a positive gg_id
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a gg_id", util.ErrInvalidInput, s)
	}
	return id, nil
}

// parseIDs parses gg_ids given as separate arguments or comma separated lists
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

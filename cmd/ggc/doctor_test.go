package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
)

func testConfig(t *testing.T, dbPath string) *util.Config {
	t.Helper()
	cfg := util.DefaultConfig()
	cfg.Database = dbPath
	cfg.LogDir = ""
	return &cfg
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(testConfig(t, dbPath))

	// Should not error - database will be created by init
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("doctor must not create the database")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.Close()

	result := checkDatabase(testConfig(t, dbPath))
	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message with database info")
	}
}

func TestCheckDatabase_Directory(t *testing.T) {
	result := checkDatabase(testConfig(t, t.TempDir()))

	if !result.error {
		t.Error("expected error when the database path is a directory")
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase(testConfig(t, ""))

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckWritableDir_Create(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "logs")

	result := checkWritableDir(newDir, "Audit log directory")
	if result.error {
		t.Errorf("directory check failed: %s", result.message)
	}
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestCheckWritableDir_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkWritableDir(filePath, "Audit log directory")
	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}

func TestCheckS3Config(t *testing.T) {
	ok := checkS3Config(util.S3Config{Bucket: "gg-exports", Prefix: "gg_13_5"})
	if ok.error || ok.message != "s3://gg-exports/gg_13_5 (default credential chain)" {
		t.Errorf("unexpected result %+v", ok)
	}

	bad := checkS3Config(util.S3Config{Bucket: "gg-exports", AccessKeyID: "AKIA"})
	if !bad.error {
		t.Error("expected error for access key without secret")
	}
}

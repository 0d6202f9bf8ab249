package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const scratchPrefix = "tmp_"

// CreateScratchSequenceTable creates a session-private temporary table
// shaped like sequence (seq_id, sequence) under a random tmp_seq_ name.
func (s *Store) CreateScratchSequenceTable(ctx context.Context) (string, error) {
	name := scratchPrefix + "seq_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if _, err := s.session.Exec(ctx, name, s.dialect.scratchTableDDL(name)); err != nil {
		return "", fmt.Errorf("failed to create scratch table: %w", err)
	}
	return name, nil
}

// DropScratchTable drops a table created by CreateScratchSequenceTable.
// Names without the tmp_ prefix are refused.
func (s *Store) DropScratchTable(ctx context.Context, name string) error {
	if !strings.HasPrefix(name, scratchPrefix) || !validIdentifier(name) {
		return fmt.Errorf("refusing to drop %q: not a scratch table", name)
	}
	if _, err := s.session.Exec(ctx, name, "DROP TABLE "+name); err != nil {
		return fmt.Errorf("failed to drop scratch table: %w", err)
	}
	return nil
}

// StageSequences loads id -> sequence pairs into a scratch table
func (s *Store) StageSequences(ctx context.Context, table string, seqs map[int64]string) error {
	if !strings.HasPrefix(table, scratchPrefix) || !validIdentifier(table) {
		return fmt.Errorf("refusing to stage into %q: not a scratch table", table)
	}
	insert := "INSERT INTO " + table + " (seq_id, sequence) VALUES (?, ?)"
	for _, id := range sortedKeys(seqs) {
		if _, err := s.session.Exec(ctx, table, insert, id, seqs[id]); err != nil {
			return fmt.Errorf("failed to stage sequence %d: %w", id, err)
		}
	}
	return nil
}

// MissingStagedRecords returns the staged ids that have no matching record
func (s *Store) MissingStagedRecords(ctx context.Context, table string) ([]int64, error) {
	if !strings.HasPrefix(table, scratchPrefix) || !validIdentifier(table) {
		return nil, fmt.Errorf("refusing to read %q: not a scratch table", table)
	}
	return s.queryIDs(ctx, table, `
		SELECT t.seq_id FROM `+table+` t
		LEFT JOIN record r ON r.gg_id = t.seq_id
		WHERE r.gg_id IS NULL
		ORDER BY t.seq_id`)
}

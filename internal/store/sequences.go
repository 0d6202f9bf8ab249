package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/franz/gg-curator/internal/util"
)

// GetSequence retrieves a sequence by id. Returns nil if it does not exist.
func (s *Store) GetSequence(ctx context.Context, id int64) (*Sequence, error) {
	seq := &Sequence{}
	err := s.session.QueryRow(ctx, "sequence",
		"SELECT seq_id, sequence FROM sequence WHERE seq_id = ?",
		[]any{id}, &seq.ID, &seq.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}
	return seq, nil
}

// GetSequences retrieves many sequences. Every requested id is a key of the
// result; unknown ids map to nil.
func (s *Store) GetSequences(ctx context.Context, ids []int64) (map[int64]*Sequence, error) {
	out := make(map[int64]*Sequence, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	for _, batch := range batches(ids, maxBatch) {
		rows, err := s.session.Query(ctx, "sequence",
			"SELECT seq_id, sequence FROM sequence WHERE seq_id IN ("+placeholders(len(batch))+")",
			idArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query sequences: %w", err)
		}
		for rows.Next() {
			seq := &Sequence{}
			if err := rows.Scan(&seq.ID, &seq.Data); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan sequence: %w", err)
			}
			out[seq.ID] = seq
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sequences: %w", err)
		}
	}
	return out, nil
}

// InsertSequence stores a new sequence and returns its id
func (s *Store) InsertSequence(ctx context.Context, data string) (int64, error) {
	var id int64
	err := s.writeTx(ctx, []TableLock{Write("sequence")}, func() error {
		var err error
		if id, err = s.ids.Next(ctx, ClassSequence); err != nil {
			return err
		}
		return s.insertSequenceRow(ctx, id, data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert sequence: %w", err)
	}
	return id, nil
}

func (s *Store) insertSequenceRow(ctx context.Context, id int64, data string) error {
	_, err := s.session.Exec(ctx, "sequence",
		"INSERT INTO sequence (seq_id, sequence) VALUES (?, ?)", id, data)
	return err
}

// UpdateSequences stores one new sequence per record and points the
// record's field at it. Existing sequences are never overwritten. The whole
// batch commits or nothing does; an unknown record id aborts it with
// NotFoundError. Returns record id -> new sequence id.
func (s *Store) UpdateSequences(ctx context.Context, field SequenceField, seqs map[int64]string) (map[int64]int64, error) {
	col, err := field.Column()
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return map[int64]int64{}, nil
	}

	assigned := make(map[int64]int64, len(seqs))
	locks := []TableLock{Write("sequence"), Write("record")}
	err = s.writeTx(ctx, locks, func() error {
		next, err := s.ids.Reserve(ctx, ClassSequence, len(seqs))
		if err != nil {
			return err
		}
		update := fmt.Sprintf("UPDATE record SET %s = ? WHERE gg_id = ?", col)
		for _, recordID := range sortedKeys(seqs) {
			if err := s.insertSequenceRow(ctx, next, seqs[recordID]); err != nil {
				return err
			}
			res, err := s.session.Exec(ctx, "record", update, next, recordID)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return &NotFoundError{Kind: "record", Key: strconv.FormatInt(recordID, 10)}
			}
			assigned[recordID] = next
			next++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s sequences: %w", field, err)
	}
	util.DebugLog("updated %d %s sequences", len(assigned), field)
	return assigned, nil
}

// GetRecordSequence returns the sequence a record's field points at, or
// nil when the record or the link is absent.
func (s *Store) GetRecordSequence(ctx context.Context, recordID int64, field SequenceField) (*string, error) {
	col, err := field.Column()
	if err != nil {
		return nil, err
	}
	var data string
	err = s.session.QueryRow(ctx, "sequence", fmt.Sprintf(`
		SELECT s.sequence FROM record r
		JOIN sequence s ON s.seq_id = r.%s
		WHERE r.gg_id = ?`, col), []any{recordID}, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s sequence: %w", field, err)
	}
	return &data, nil
}

// GetRecordSequences returns record id -> sequence for field. Every
// requested id is a key; records without the link map to nil.
func (s *Store) GetRecordSequences(ctx context.Context, field SequenceField, recordIDs []int64) (map[int64]*string, error) {
	col, err := field.Column()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*string, len(recordIDs))
	for _, id := range recordIDs {
		out[id] = nil
	}
	for _, batch := range batches(recordIDs, maxBatch) {
		rows, err := s.session.Query(ctx, "sequence", fmt.Sprintf(`
			SELECT r.gg_id, s.sequence FROM record r
			JOIN sequence s ON s.seq_id = r.%s
			WHERE r.gg_id IN (%s)`, col, placeholders(len(batch))), idArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s sequences: %w", field, err)
		}
		for rows.Next() {
			var id int64
			var data string
			if err := rows.Scan(&id, &data); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan sequence: %w", err)
			}
			out[id] = &data
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sequences: %w", err)
		}
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertRelease tags a record with a release name and returns the new
// release key. Releases are append-only; tagging twice adds a second row.
func (s *Store) InsertRelease(ctx context.Context, recordID int64, name string) (int64, error) {
	if name == "" {
		name = DefaultRelease
	}
	var key int64
	locks := []TableLock{Write("gg_release"), Read("record")}
	err := s.writeTx(ctx, locks, func() error {
		rec, err := s.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if rec == nil {
			return &NotFoundError{Kind: "record", Key: fmt.Sprint(recordID)}
		}
		if err := s.insertReleaseRow(ctx, recordID, name); err != nil {
			return err
		}
		key, err = s.releaseKey(ctx, recordID, name)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert release %s for %d: %w", name, recordID, err)
	}
	return key, nil
}

func (s *Store) insertReleaseRow(ctx context.Context, recordID int64, name string) error {
	_, err := s.session.Exec(ctx, "gg_release",
		"INSERT INTO gg_release (name, gg_id) VALUES (?, ?)", name, recordID)
	return err
}

// GetReleases lists a record's releases in insertion order
func (s *Store) GetReleases(ctx context.Context, recordID int64) ([]*Release, error) {
	rows, err := s.session.Query(ctx, "gg_release",
		"SELECT rel_id, name, gg_id FROM gg_release WHERE gg_id = ? ORDER BY rel_id", recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		r := &Release{}
		if err := rows.Scan(&r.ID, &r.Name, &r.RecordID); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

// ReleaseKey returns the release-scoped key of a record in the named
// release (the latest one if it was tagged more than once). Fails with
// NotFoundError when the record is not part of the release.
func (s *Store) ReleaseKey(ctx context.Context, recordID int64, name string) (int64, error) {
	key, err := s.releaseKey(ctx, recordID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve release key: %w", err)
	}
	return key, nil
}

func (s *Store) releaseKey(ctx context.Context, recordID int64, name string) (int64, error) {
	var key sql.NullInt64
	err := s.session.QueryRow(ctx, "gg_release",
		"SELECT MAX(rel_id) FROM gg_release WHERE gg_id = ? AND name = ?",
		[]any{recordID, name}, &key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if !key.Valid {
		return 0, &NotFoundError{Kind: "release", Key: fmt.Sprintf("%s for record %d", name, recordID)}
	}
	return key.Int64, nil
}

// ReleaseRecordIDs returns the distinct gg_ids tagged with name, ascending
func (s *Store) ReleaseRecordIDs(ctx context.Context, name string) ([]int64, error) {
	return s.queryIDs(ctx, "gg_release",
		"SELECT DISTINCT gg_id FROM gg_release WHERE name = ? ORDER BY gg_id", name)
}

// ReleaseCount is a release name with its record count
type ReleaseCount struct {
	Name    string
	Records int64
}

// ReleaseNames lists every release with the number of distinct records in it
func (s *Store) ReleaseNames(ctx context.Context) ([]ReleaseCount, error) {
	rows, err := s.session.Query(ctx, "gg_release",
		"SELECT name, COUNT(DISTINCT gg_id) FROM gg_release GROUP BY name ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var out []ReleaseCount
	for rows.Next() {
		var rc ReleaseCount
		if err := rows.Scan(&rc.Name, &rc.Records); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

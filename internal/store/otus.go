package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/franz/gg-curator/internal/util"
)

// InsertOTU stores one clustering result. The representative must be part
// of releaseName ("in_holding" when empty) and is added to the members
// when missing. The cluster row and every membership row commit together;
// any failure, such as an unknown member, leaves nothing behind.
func (s *Store) InsertOTU(ctx context.Context, rep int64, members []int64, method string, similarity float64, releaseName string) (int64, error) {
	if method == "" || len(method) > MaxMethodLength {
		return 0, fmt.Errorf("%w: method must be 1-%d bytes, got %q", util.ErrInvalidInput, MaxMethodLength, method)
	}
	if releaseName == "" {
		releaseName = DefaultRelease
	}

	all := make([]int64, 0, len(members)+1)
	seen := make(map[int64]bool, len(members)+1)
	for _, m := range members {
		if !seen[m] {
			seen[m] = true
			all = append(all, m)
		}
	}
	if !seen[rep] {
		all = append(all, rep)
	}

	var clusterID int64
	locks := []TableLock{Write("otu_cluster"), Write("otu"), Read("gg_release")}
	err := s.writeTx(ctx, locks, func() error {
		relKey, err := s.releaseKey(ctx, rep, releaseName)
		if err != nil {
			return err
		}
		if clusterID, err = s.ids.Next(ctx, ClassOTUCluster); err != nil {
			return err
		}
		_, err = s.session.Exec(ctx, "otu_cluster", `
			INSERT INTO otu_cluster (cluster_id, rep_id, rel_id, similarity, method)
			VALUES (?, ?, ?, ?, ?)`, clusterID, rep, relKey, similarity, method)
		if err != nil {
			return err
		}
		for _, m := range all {
			_, err := s.session.Exec(ctx, "otu",
				"INSERT INTO otu (cluster_id, gg_id) VALUES (?, ?)", clusterID, m)
			if err != nil {
				if s.dialect.isForeignKeyViolation(err) {
					return &NotFoundError{Kind: "record", Key: fmt.Sprint(m)}
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert otu cluster for %d: %w", rep, err)
	}

	util.DebugLog("inserted otu cluster %d: rep %d, %d members, %s@%g", clusterID, rep, len(all), method, similarity)
	return clusterID, nil
}

// GetOTUCluster retrieves a cluster with its members. Returns nil if it does not exist.
func (s *Store) GetOTUCluster(ctx context.Context, id int64) (*OTUCluster, error) {
	c := &OTUCluster{}
	err := s.session.QueryRow(ctx, "otu_cluster", `
		SELECT cluster_id, rep_id, rel_id, similarity, method
		FROM otu_cluster WHERE cluster_id = ?`, []any{id},
		&c.ID, &c.RepresentativeID, &c.ReleaseKey, &c.Similarity, &c.Method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get otu cluster: %w", err)
	}

	if c.Members, err = s.GetOTUMembers(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// GetOTUMembers returns a cluster's member gg_ids in insertion order
func (s *Store) GetOTUMembers(ctx context.Context, clusterID int64) ([]int64, error) {
	return s.queryIDs(ctx, "otu",
		"SELECT gg_id FROM otu WHERE cluster_id = ? ORDER BY otu_id", clusterID)
}

// ClustersForRecord returns the ids of every cluster a record belongs to
func (s *Store) ClustersForRecord(ctx context.Context, recordID int64) ([]int64, error) {
	return s.queryIDs(ctx, "otu",
		"SELECT DISTINCT cluster_id FROM otu WHERE gg_id = ? ORDER BY cluster_id", recordID)
}

func (s *Store) queryIDs(ctx context.Context, table, query string, args ...any) ([]int64, error) {
	rows, err := s.session.Query(ctx, table, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

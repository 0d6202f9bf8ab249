package store

import (
	"context"
	"fmt"
)

// Stats summarizes database contents for the report command
type Stats struct {
	SchemaVersion int
	Records       int64
	Sequences     int64
	Taxonomy      int64
	Clusters      int64
	OTUMembers    int64
	Releases      []ReleaseCount
	Decisions     map[Decision]int64
	// Coverage counts records with each link set, keyed by record column
	Coverage map[string]int64
}

var coverageColumns = []string{
	"unaligned_seq_id", "aligned_seq_id", "pynast_aligned_seq_id",
	"ncbi_tax_id", "silva_tax_id", "greengenes_tax_id", "hugenholtz_tax_id",
}

// GetStats gathers table counts, release sizes and link coverage
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		Decisions: make(map[Decision]int64),
		Coverage:  make(map[string]int64),
	}

	var err error
	if st.SchemaVersion, err = s.getSchemaVersion(ctx); err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	counts := []struct {
		table string
		dst   *int64
	}{
		{"record", &st.Records},
		{"sequence", &st.Sequences},
		{"taxonomy", &st.Taxonomy},
		{"otu_cluster", &st.Clusters},
		{"otu", &st.OTUMembers},
	}
	for _, c := range counts {
		if err := s.session.QueryRow(ctx, c.table, "SELECT COUNT(*) FROM "+c.table, nil, c.dst); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	for _, col := range coverageColumns {
		var n int64
		q := "SELECT COUNT(*) FROM record WHERE " + col + " IS NOT NULL"
		if err := s.session.QueryRow(ctx, "record", q, nil, &n); err != nil {
			return nil, fmt.Errorf("failed to count %s coverage: %w", col, err)
		}
		st.Coverage[col] = n
	}

	rows, err := s.session.Query(ctx, "record", "SELECT decision, COUNT(*) FROM record GROUP BY decision")
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	for rows.Next() {
		var d string
		var n int64
		if err := rows.Scan(&d, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		st.Decisions[Decision(d)] = n
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate decision counts: %w", err)
	}

	if st.Releases, err = s.ReleaseNames(ctx); err != nil {
		return nil, err
	}

	return st, nil
}

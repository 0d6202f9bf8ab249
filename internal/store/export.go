package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// ExportField is one key=value line of an export block. A nil Value
// renders as "key=".
type ExportField struct {
	Key   string
	Value *string
}

// ExportRow is one record flattened into export order
type ExportRow struct {
	ID     int64
	Fields []ExportField
}

// SequenceKey is the export key of the sequence line, whichever variant
// was selected.
const SequenceKey = "aligned_seq"

// ExportKeys lists the export keys in block order
var ExportKeys = []string{
	"gg_id", "prokmsa_id", "ncbi_acc_w_ver", "ncbi_gi", "db_name", "gold_id", "decision",
	"prokmsaname", "isolation_source", "clone", "organism", "strain",
	"specific_host", "authors", "title", "journal", "pubmed", "submit_date",
	"country", "ncbi_tax_string", "silva_tax_string", "greengenes_tax_string",
	"hugenholtz_tax_id", "non_acgt_percent", "perc_ident_to_invariant_core",
	"small_gap_intrusions", SequenceKey,
}

// ExportPage fetches one page of records joined with their four taxonomy
// strings and the selected sequence, in a single query, ordered by gg_id.
// Unknown ids are skipped.
func (s *Store) ExportPage(ctx context.Context, ids []int64, field SequenceField) ([]ExportRow, error) {
	col, err := field.Column()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT r.gg_id, r.gg_id, r.ncbi_acc_w_ver, r.ncbi_gi, r.db_name, r.gold_id, r.decision,
		       r.prokmsaname, r.isolation_source, r.clone, r.organism, r.strain,
		       r.specific_host, r.authors, r.title, r.journal, r.pubmed, r.submit_date,
		       r.country, tn.tax_string, tsl.tax_string, tg.tax_string, th.tax_string,
		       r.non_acgt_percent, r.perc_ident_to_invariant_core, r.small_gap_intrusions,
		       aseq.sequence
		FROM record r
		LEFT JOIN taxonomy tn ON tn.tax_id = r.ncbi_tax_id
		LEFT JOIN taxonomy tsl ON tsl.tax_id = r.silva_tax_id
		LEFT JOIN taxonomy tg ON tg.tax_id = r.greengenes_tax_id
		LEFT JOIN taxonomy th ON th.tax_id = r.hugenholtz_tax_id
		LEFT JOIN sequence aseq ON aseq.seq_id = r.%s
		WHERE r.gg_id IN (%s)
		ORDER BY r.gg_id`, col, placeholders(len(ids)))

	rows, err := s.session.Query(ctx, "record", query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query export page: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		// Integers and text scan straight to strings; the three metrics are
		// floats and get a fixed rendering.
		cols := make([]sql.NullString, len(ExportKeys))
		var floats [3]sql.NullFloat64
		dest := make([]any, len(ExportKeys))
		for i := range dest {
			dest[i] = &cols[i]
		}
		for j := range floats {
			dest[floatColumn+j] = &floats[j]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}

		row := ExportRow{Fields: make([]ExportField, len(ExportKeys))}
		for i, key := range ExportKeys {
			row.Fields[i] = ExportField{Key: key, Value: strPtr(cols[i])}
		}
		for j, f := range floats {
			if f.Valid {
				v := FormatFloat(f.Float64)
				row.Fields[floatColumn+j].Value = &v
			}
		}
		if row.ID, err = strconv.ParseInt(cols[0].String, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse gg_id %q: %w", cols[0].String, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// floatColumn is the index of non_acgt_percent in ExportKeys; it is
// followed by perc_ident_to_invariant_core and small_gap_intrusions.
const floatColumn = 23

// FormatFloat renders a metric the way the block format always has:
// shortest round-trip digits, and a trailing ".0" on integral values.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".nN") {
		s += ".0"
	}
	return s
}

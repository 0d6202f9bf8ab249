package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/franz/gg-curator/internal/util"
)

// GetTaxonomy retrieves a taxonomy string by id. Returns nil if it does not exist.
func (s *Store) GetTaxonomy(ctx context.Context, id int64) (*Taxonomy, error) {
	tax := &Taxonomy{}
	err := s.session.QueryRow(ctx, "taxonomy",
		"SELECT tax_id, tax_version, tax_string FROM taxonomy WHERE tax_id = ?",
		[]any{id}, &tax.ID, &tax.Version, &tax.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get taxonomy: %w", err)
	}
	return tax, nil
}

// GetTaxonomies retrieves many taxonomy strings; unknown ids map to nil
func (s *Store) GetTaxonomies(ctx context.Context, ids []int64) (map[int64]*Taxonomy, error) {
	out := make(map[int64]*Taxonomy, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	for _, batch := range batches(ids, maxBatch) {
		rows, err := s.session.Query(ctx, "taxonomy",
			"SELECT tax_id, tax_version, tax_string FROM taxonomy WHERE tax_id IN ("+placeholders(len(batch))+")",
			idArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query taxonomy: %w", err)
		}
		for rows.Next() {
			tax := &Taxonomy{}
			if err := rows.Scan(&tax.ID, &tax.Version, &tax.Value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan taxonomy: %w", err)
			}
			out[tax.ID] = tax
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate taxonomy: %w", err)
		}
	}
	return out, nil
}

// InsertTaxonomy stores a new taxonomy string and returns its id. An empty
// version is stored as "NA".
func (s *Store) InsertTaxonomy(ctx context.Context, value, version string) (int64, error) {
	if version == "" {
		version = DefaultTaxonomyVersion
	}
	var id int64
	err := s.writeTx(ctx, []TableLock{Write("taxonomy")}, func() error {
		var err error
		if id, err = s.ids.Next(ctx, ClassTaxonomy); err != nil {
			return err
		}
		return s.insertTaxonomyRow(ctx, id, value, version)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert taxonomy: %w", err)
	}
	return id, nil
}

func (s *Store) insertTaxonomyRow(ctx context.Context, id int64, value, version string) error {
	_, err := s.session.Exec(ctx, "taxonomy",
		"INSERT INTO taxonomy (tax_id, tax_version, tax_string) VALUES (?, ?, ?)",
		id, version, value)
	return err
}

// UpdateTaxonomy assigns source taxonomy to records. A nil value clears the
// record's reference without allocating anything; every other value gets a
// new taxonomy id. Returns record id -> new taxonomy id for the non-nil
// values.
func (s *Store) UpdateTaxonomy(ctx context.Context, source TaxonomySource, values map[int64]*string, version string) (map[int64]int64, error) {
	col, err := source.Column()
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = DefaultTaxonomyVersion
	}
	if len(values) == 0 {
		return map[int64]int64{}, nil
	}

	toAllocate := 0
	for _, v := range values {
		if v != nil {
			toAllocate++
		}
	}

	assigned := make(map[int64]int64, toAllocate)
	cleared := 0
	locks := []TableLock{Write("taxonomy"), Write("record")}
	err = s.writeTx(ctx, locks, func() error {
		var next int64
		if toAllocate > 0 {
			var err error
			if next, err = s.ids.Reserve(ctx, ClassTaxonomy, toAllocate); err != nil {
				return err
			}
		}
		update := fmt.Sprintf("UPDATE record SET %s = ? WHERE gg_id = ?", col)
		for _, recordID := range sortedKeys(values) {
			var ref any
			if v := values[recordID]; v != nil {
				if err := s.insertTaxonomyRow(ctx, next, *v, version); err != nil {
					return err
				}
				ref = next
				assigned[recordID] = next
				next++
			} else {
				cleared++
			}
			res, err := s.session.Exec(ctx, "record", update, ref, recordID)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return &NotFoundError{Kind: "record", Key: strconv.FormatInt(recordID, 10)}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s taxonomy: %w", source, err)
	}
	util.DebugLog("updated %s taxonomy: %d assigned, %d cleared", source, len(assigned), cleared)
	return assigned, nil
}

// GetRecordTaxonomy returns the source taxonomy string of a record, or nil
// when the record or the link is absent.
func (s *Store) GetRecordTaxonomy(ctx context.Context, recordID int64, source TaxonomySource) (*string, error) {
	col, err := source.Column()
	if err != nil {
		return nil, err
	}
	var value string
	err = s.session.QueryRow(ctx, "taxonomy", fmt.Sprintf(`
		SELECT t.tax_string FROM record r
		JOIN taxonomy t ON t.tax_id = r.%s
		WHERE r.gg_id = ?`, col), []any{recordID}, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s taxonomy: %w", source, err)
	}
	return &value, nil
}

// GetRecordTaxonomies returns record id -> source taxonomy string. Every
// requested id is a key; records without the link map to nil.
func (s *Store) GetRecordTaxonomies(ctx context.Context, source TaxonomySource, recordIDs []int64) (map[int64]*string, error) {
	col, err := source.Column()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*string, len(recordIDs))
	for _, id := range recordIDs {
		out[id] = nil
	}
	for _, batch := range batches(recordIDs, maxBatch) {
		rows, err := s.session.Query(ctx, "taxonomy", fmt.Sprintf(`
			SELECT r.gg_id, t.tax_string FROM record r
			JOIN taxonomy t ON t.tax_id = r.%s
			WHERE r.gg_id IN (%s)`, col, placeholders(len(batch))), idArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s taxonomy: %w", source, err)
		}
		for rows.Next() {
			var id int64
			var value string
			if err := rows.Scan(&id, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan taxonomy: %w", err)
			}
			out[id] = &value
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate taxonomy: %w", err)
		}
	}
	return out, nil
}

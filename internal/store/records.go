package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/franz/gg-curator/internal/util"
)

const recordColumns = `
	r.gg_id, r.ncbi_acc_w_ver, r.ncbi_gi, r.db_name, r.gold_id, r.decision,
	r.prokmsaname, r.isolation_source, r.clone, r.organism, r.strain,
	r.specific_host, r.authors, r.title, r.journal, r.pubmed, r.submit_date,
	r.country, r.ncbi_tax_id, r.silva_tax_id, r.greengenes_tax_id,
	r.hugenholtz_tax_id, r.non_acgt_percent, r.perc_ident_to_invariant_core,
	r.small_gap_intrusions, r.unaligned_seq_id, r.aligned_seq_id,
	r.pynast_aligned_seq_id`

// recordScan holds the nullable scan targets for one record row
type recordScan struct {
	id                                        int64
	acc, decision                             string
	gi, pubmed                                sql.NullInt64
	dbName, goldID, prokMSA, isoSource, clone sql.NullString
	organism, strain, host, authors, title    sql.NullString
	journal, submitDate, country              sql.NullString
	ncbiTax, silvaTax, ggTax, hugTax          sql.NullInt64
	nonACGT, percIdent, gaps                  sql.NullFloat64
	unalignedSeq, alignedSeq, pynastSeq       sql.NullInt64
}

func (rs *recordScan) dest() []any {
	return []any{
		&rs.id, &rs.acc, &rs.gi, &rs.dbName, &rs.goldID, &rs.decision,
		&rs.prokMSA, &rs.isoSource, &rs.clone, &rs.organism, &rs.strain,
		&rs.host, &rs.authors, &rs.title, &rs.journal, &rs.pubmed, &rs.submitDate,
		&rs.country, &rs.ncbiTax, &rs.silvaTax, &rs.ggTax,
		&rs.hugTax, &rs.nonACGT, &rs.percIdent,
		&rs.gaps, &rs.unalignedSeq, &rs.alignedSeq,
		&rs.pynastSeq,
	}
}

func (rs *recordScan) record() *Record {
	return &Record{
		ID:                       rs.id,
		Accession:                rs.acc,
		GI:                       intPtr(rs.gi),
		DBName:                   rs.dbName.String,
		GoldID:                   rs.goldID.String,
		Decision:                 Decision(rs.decision),
		ProkMSAName:              rs.prokMSA.String,
		IsolationSource:          rs.isoSource.String,
		Clone:                    rs.clone.String,
		Organism:                 rs.organism.String,
		Strain:                   rs.strain.String,
		SpecificHost:             rs.host.String,
		Authors:                  rs.authors.String,
		Title:                    rs.title.String,
		Journal:                  rs.journal.String,
		PubMed:                   intPtr(rs.pubmed),
		SubmitDate:               rs.submitDate.String,
		Country:                  rs.country.String,
		NCBITaxID:                intPtr(rs.ncbiTax),
		SILVATaxID:               intPtr(rs.silvaTax),
		GreengenesTaxID:          intPtr(rs.ggTax),
		HugenholtzTaxID:          intPtr(rs.hugTax),
		NonACGTPercent:           floatPtr(rs.nonACGT),
		PercIdentToInvariantCore: floatPtr(rs.percIdent),
		SmallGapIntrusions:       floatPtr(rs.gaps),
		UnalignedSeqID:           intPtr(rs.unalignedSeq),
		AlignedSeqID:             intPtr(rs.alignedSeq),
		PyNASTSeqID:              intPtr(rs.pynastSeq),
	}
}

func (s *Store) getRecordWhere(ctx context.Context, where string, arg any) (*Record, error) {
	var rs recordScan
	err := s.session.QueryRow(ctx, "record",
		"SELECT"+recordColumns+" FROM record r WHERE "+where, []any{arg}, rs.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rs.record(), nil
}

// GetRecord retrieves a record by gg_id. Returns nil if it does not exist.
func (s *Store) GetRecord(ctx context.Context, id int64) (*Record, error) {
	return s.getRecordWhere(ctx, "r.gg_id = ?", id)
}

// GetRecordByAccession retrieves a record by accession. Returns nil if it does not exist.
func (s *Store) GetRecordByAccession(ctx context.Context, accession string) (*Record, error) {
	return s.getRecordWhere(ctx, "r.ncbi_acc_w_ver = ?", accession)
}

// GetRecords retrieves many records; unknown ids map to nil
func (s *Store) GetRecords(ctx context.Context, ids []int64) (map[int64]*Record, error) {
	out := make(map[int64]*Record, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	for _, batch := range batches(ids, maxBatch) {
		rows, err := s.session.Query(ctx, "record",
			"SELECT"+recordColumns+" FROM record r WHERE r.gg_id IN ("+placeholders(len(batch))+")",
			idArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query records: %w", err)
		}
		for rows.Next() {
			var rs recordScan
			if err := rows.Scan(rs.dest()...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan record: %w", err)
			}
			out[rs.id] = rs.record()
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate records: %w", err)
		}
	}
	return out, nil
}

// lookupRecord resolves a gg_id or accession. A numeric key is tried as a
// gg_id first, then as an accession.
func (s *Store) lookupRecord(ctx context.Context, key string) (*Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		rec, err := s.GetRecord(ctx, id)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	return s.GetRecordByAccession(ctx, key)
}

// RecordExists reports whether key names a stored record by gg_id or accession
func (s *Store) RecordExists(ctx context.Context, key string) (bool, error) {
	rec, err := s.lookupRecord(ctx, key)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// SelectRecord returns a record by gg_id or accession together with its
// taxonomy strings and sequences. Returns nil if it does not exist.
func (s *Store) SelectRecord(ctx context.Context, key string) (*RecordDetail, error) {
	rec, err := s.lookupRecord(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}

	var ncbi, silva, gg, hug, unaligned, aligned, pynast sql.NullString
	err = s.session.QueryRow(ctx, "record", `
		SELECT tn.tax_string, tsl.tax_string, tg.tax_string, th.tax_string,
		       su.sequence, sa.sequence, sp.sequence
		FROM record r
		LEFT JOIN taxonomy tn ON tn.tax_id = r.ncbi_tax_id
		LEFT JOIN taxonomy tsl ON tsl.tax_id = r.silva_tax_id
		LEFT JOIN taxonomy tg ON tg.tax_id = r.greengenes_tax_id
		LEFT JOIN taxonomy th ON th.tax_id = r.hugenholtz_tax_id
		LEFT JOIN sequence su ON su.seq_id = r.unaligned_seq_id
		LEFT JOIN sequence sa ON sa.seq_id = r.aligned_seq_id
		LEFT JOIN sequence sp ON sp.seq_id = r.pynast_aligned_seq_id
		WHERE r.gg_id = ?`, []any{rec.ID},
		&ncbi, &silva, &gg, &hug, &unaligned, &aligned, &pynast)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}

	return &RecordDetail{
		Record: *rec,
		Taxonomy: map[TaxonomySource]*string{
			SourceNCBI:       strPtr(ncbi),
			SourceSILVA:      strPtr(silva),
			SourceGreengenes: strPtr(gg),
			SourceHugenholtz: strPtr(hug),
		},
		Unaligned: strPtr(unaligned),
		Aligned:   strPtr(aligned),
		PyNAST:    strPtr(pynast),
	}, nil
}

// CountRecords returns the number of stored records
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.session.QueryRow(ctx, "record", "SELECT COUNT(*) FROM record", nil, &n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// RecordIDs returns every gg_id in ascending order
func (s *Store) RecordIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "record", "SELECT gg_id FROM record ORDER BY gg_id")
}

// InsertRecord stores a new record under a fresh gg_id and tags it with
// releaseName ("in_holding" when empty). The accession must not exist yet;
// a duplicate fails with DuplicateRecordError and writes nothing.
func (s *Store) InsertRecord(ctx context.Context, rec *Record, releaseName string) (int64, error) {
	if rec == nil || rec.Accession == "" {
		return 0, fmt.Errorf("%w: record needs an accession", util.ErrInvalidInput)
	}
	if !rec.Decision.Valid() {
		return 0, fmt.Errorf("%w: unknown decision %q", util.ErrInvalidInput, string(rec.Decision))
	}
	if releaseName == "" {
		releaseName = DefaultRelease
	}

	var id int64
	locks := []TableLock{Write("record"), Write("gg_release")}
	err := s.writeTx(ctx, locks, func() error {
		existing, err := s.GetRecordByAccession(ctx, rec.Accession)
		if err != nil {
			return err
		}
		if existing != nil {
			return &DuplicateRecordError{Accession: rec.Accession}
		}

		if id, err = s.ids.Next(ctx, ClassRecord); err != nil {
			return err
		}
		if err := s.insertRecordRow(ctx, id, rec); err != nil {
			if s.dialect.isUniqueViolation(err) {
				return &DuplicateRecordError{Accession: rec.Accession}
			}
			return err
		}
		return s.insertReleaseRow(ctx, id, releaseName)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert record %s: %w", rec.Accession, err)
	}

	rec.ID = id
	util.DebugLog("inserted record %s as %d (%s)", rec.Accession, id, releaseName)
	return id, nil
}

func (s *Store) insertRecordRow(ctx context.Context, id int64, r *Record) error {
	_, err := s.session.Exec(ctx, "record", `
		INSERT INTO record (
			gg_id, ncbi_acc_w_ver, ncbi_gi, db_name, gold_id, decision,
			prokmsaname, isolation_source, clone, organism, strain,
			specific_host, authors, title, journal, pubmed, submit_date,
			country, ncbi_tax_id, silva_tax_id, greengenes_tax_id,
			hugenholtz_tax_id, non_acgt_percent, perc_ident_to_invariant_core,
			small_gap_intrusions, unaligned_seq_id, aligned_seq_id,
			pynast_aligned_seq_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Accession, nullInt(r.GI), nullString(r.DBName), nullString(r.GoldID), string(r.Decision),
		nullString(r.ProkMSAName), nullString(r.IsolationSource), nullString(r.Clone),
		nullString(r.Organism), nullString(r.Strain),
		nullString(r.SpecificHost), nullString(r.Authors), nullString(r.Title),
		nullString(r.Journal), nullInt(r.PubMed), nullString(r.SubmitDate),
		nullString(r.Country), nullInt(r.NCBITaxID), nullInt(r.SILVATaxID), nullInt(r.GreengenesTaxID),
		nullInt(r.HugenholtzTaxID), nullFloat(r.NonACGTPercent), nullFloat(r.PercIdentToInvariantCore),
		nullFloat(r.SmallGapIntrusions), nullInt(r.UnalignedSeqID), nullInt(r.AlignedSeqID),
		nullInt(r.PyNASTSeqID),
	)
	return err
}

// UpdateRecord applies patch to record id. An unknown id fails with
// NotFoundError; an accession already used elsewhere fails with
// DuplicateRecordError.
func (s *Store) UpdateRecord(ctx context.Context, id int64, patch *RecordPatch) error {
	if patch == nil {
		return nil
	}
	if patch.err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, patch.err)
	}
	if patch.Empty() {
		return nil
	}
	stmt, args, err := patch.statement(id)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}

	err = s.writeTx(ctx, []TableLock{Write("record")}, func() error {
		res, err := s.session.Exec(ctx, "record", stmt, args...)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				for i, c := range patch.cols {
					if c == "ncbi_acc_w_ver" {
						return &DuplicateRecordError{Accession: fmt.Sprint(patch.args[i])}
					}
				}
			}
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &NotFoundError{Kind: "record", Key: strconv.FormatInt(id, 10)}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}
	return nil
}

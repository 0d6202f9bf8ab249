package store

import (
	"context"
	"testing"
)

func TestExportPage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedRecords(t, s, 3, "")

	tax := "k__Bacteria"
	if _, err := s.UpdateTaxonomy(ctx, SourceGreengenes, map[int64]*string{2: &tax}, ""); err != nil {
		t.Fatalf("UpdateTaxonomy failed: %v", err)
	}
	if _, err := s.UpdateSequences(ctx, FieldAligned, map[int64]string{2: "A--CG"}); err != nil {
		t.Fatalf("UpdateSequences failed: %v", err)
	}
	pct, gaps := 12.0, 0.5
	patch := NewRecordPatch().
		SetFloat(FloatNonACGTPercent, &pct).
		SetFloat(FloatSmallGapIntrusions, &gaps)
	if err := s.UpdateRecord(ctx, 2, patch); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}

	rows, err := s.ExportPage(ctx, []int64{3, 2, 404}, FieldAligned)
	if err != nil {
		t.Fatalf("ExportPage failed: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 2 || rows[1].ID != 3 {
		t.Fatalf("expected rows for 2 and 3 in id order, got %+v", rows)
	}

	order := []string{
		"gg_id", "prokmsa_id", "ncbi_acc_w_ver", "ncbi_gi", "db_name", "gold_id",
		"decision", "prokmsaname", "isolation_source", "clone", "organism",
		"strain", "specific_host", "authors", "title", "journal", "pubmed",
		"submit_date", "country", "ncbi_tax_string", "silva_tax_string",
		"greengenes_tax_string", "hugenholtz_tax_id", "non_acgt_percent",
		"perc_ident_to_invariant_core", "small_gap_intrusions", "aligned_seq",
	}
	if len(rows[0].Fields) != len(order) {
		t.Fatalf("expected %d fields, got %d", len(order), len(rows[0].Fields))
	}
	fields := map[string]*string{}
	for i, f := range rows[0].Fields {
		if f.Key != order[i] {
			t.Errorf("field %d: expected key %s, got %s", i, order[i], f.Key)
		}
		fields[f.Key] = f.Value
	}

	checks := map[string]string{
		"gg_id":                 "2",
		"prokmsa_id":            "2",
		"ncbi_acc_w_ver":        "ACC2.1",
		"decision":              "isolate",
		"greengenes_tax_string": "k__Bacteria",
		"non_acgt_percent":      "12.0",
		"small_gap_intrusions":  "0.5",
		SequenceKey:             "A--CG",
	}
	for key, want := range checks {
		if got := fields[key]; got == nil || *got != want {
			t.Errorf("%s: expected %q, got %v", key, want, got)
		}
	}
	for _, key := range []string{"ncbi_gi", "ncbi_tax_string", "perc_ident_to_invariant_core"} {
		if fields[key] != nil {
			t.Errorf("%s: expected NULL, got %q", key, *fields[key])
		}
	}

	if seq := rows[1].Fields[len(ExportKeys)-1].Value; seq != nil {
		t.Errorf("record 3 has no aligned sequence, got %q", *seq)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		12:      "12.0",
		0:       "0.0",
		0.25:    "0.25",
		99.9375: "99.9375",
	}
	for in, want := range tests {
		if got := FormatFloat(in); got != want {
			t.Errorf("FormatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

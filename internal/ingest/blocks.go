package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/afero"
)

const maxLine = 64 << 20

// derivedKeys are written by the exporter but do not map to a record column.
// hugenholtz_tax_id carries a taxonomy string in export blocks.
var derivedKeys = map[string]bool{
	"prokmsa_id":            true,
	"ncbi_tax_string":       true,
	"silva_tax_string":      true,
	"greengenes_tax_string": true,
	"hugenholtz_tax_id":     true,
	"warning":               true,
	store.SequenceKey:       true,
}

// ReadRecords parses BEGIN/END blocks of key=value lines into records
// ready for InsertRecord. gg_id is ignored since ids are allocated on
// insert, and so are the keys the exporter derives from joined rows, so an
// export can be read back. Sequences and taxonomy strings are loaded with
// update-seq and update-tax. Any other unknown key is an error.
func ReadRecords(r io.Reader) ([]*store.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var (
		out  []*store.Record
		cur  *store.Record
		line int
	)
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		switch {
		case text == "BEGIN":
			if cur != nil {
				return nil, fmt.Errorf("%w: line %d: BEGIN inside a block", util.ErrInvalidInput, line)
			}
			cur = &store.Record{}
		case text == "END":
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: END without BEGIN", util.ErrInvalidInput, line)
			}
			if cur.Accession == "" {
				return nil, fmt.Errorf("%w: block ending on line %d has no ncbi_acc_w_ver", util.ErrInvalidInput, line)
			}
			out = append(out, cur)
			cur = nil
		case strings.TrimSpace(text) == "":
		default:
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: data outside a block", util.ErrInvalidInput, line)
			}
			key, value, ok := strings.Cut(text, "=")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: expected key=value", util.ErrInvalidInput, line)
			}
			if err := assign(cur, key, value); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", util.ErrInvalidInput, line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	if cur != nil {
		return nil, fmt.Errorf("%w: unterminated block at end of input", util.ErrInvalidInput)
	}
	return out, nil
}

// ReadRecordFile parses a record block file from fs
func ReadRecordFile(fs afero.Fs, path string) ([]*store.Record, error) {
	f, err := openInput(fs, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

func assign(rec *store.Record, key, value string) error {
	if text := textField(rec, key); text != nil {
		*text = value
		return nil
	}
	if num := intField(rec, key); num != nil {
		n, err := parseInt(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*num = n
		return nil
	}

	if key == "gg_id" || derivedKeys[key] {
		return nil
	}

	switch key {
	case "ncbi_acc_w_ver":
		rec.Accession = value
	case "decision":
		if value == "" {
			rec.Decision = ""
			return nil
		}
		d, err := store.ParseDecision(value)
		if err != nil {
			return err
		}
		rec.Decision = d
	case "non_acgt_percent":
		return setFloat(&rec.NonACGTPercent, key, value)
	case "perc_ident_to_invariant_core":
		return setFloat(&rec.PercIdentToInvariantCore, key, value)
	case "small_gap_intrusions":
		return setFloat(&rec.SmallGapIntrusions, key, value)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func textField(rec *store.Record, key string) *string {
	switch store.TextField(key) {
	case store.TextDBName:
		return &rec.DBName
	case store.TextGoldID:
		return &rec.GoldID
	case store.TextProkMSAName:
		return &rec.ProkMSAName
	case store.TextIsolationSource:
		return &rec.IsolationSource
	case store.TextClone:
		return &rec.Clone
	case store.TextOrganism:
		return &rec.Organism
	case store.TextStrain:
		return &rec.Strain
	case store.TextSpecificHost:
		return &rec.SpecificHost
	case store.TextAuthors:
		return &rec.Authors
	case store.TextTitle:
		return &rec.Title
	case store.TextJournal:
		return &rec.Journal
	case store.TextSubmitDate:
		return &rec.SubmitDate
	case store.TextCountry:
		return &rec.Country
	}
	return nil
}

func intField(rec *store.Record, key string) **int64 {
	switch key {
	case "ncbi_gi":
		return &rec.GI
	case "pubmed":
		return &rec.PubMed
	case "ncbi_tax_id":
		return &rec.NCBITaxID
	case "silva_tax_id":
		return &rec.SILVATaxID
	case "greengenes_tax_id":
		return &rec.GreengenesTaxID
	case "unaligned_seq_id":
		return &rec.UnalignedSeqID
	case "aligned_seq_id":
		return &rec.AlignedSeqID
	case "pynast_aligned_seq_id":
		return &rec.PyNASTSeqID
	}
	return nil
}

func setFloat(dst **float64, key, value string) error {
	f, err := parseFloat(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func parseInt(s string) (*int64, error) {
	if nullable(s) == nil {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return &n, nil
}

func parseFloat(s string) (*float64, error) {
	if nullable(s) == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &f, nil
}

package store

import (
	"fmt"
	"strings"
)

// TextField is a free-text record column
type TextField string

const (
	TextDBName          TextField = "db_name"
	TextGoldID          TextField = "gold_id"
	TextProkMSAName     TextField = "prokmsaname"
	TextIsolationSource TextField = "isolation_source"
	TextClone           TextField = "clone"
	TextOrganism        TextField = "organism"
	TextStrain          TextField = "strain"
	TextSpecificHost    TextField = "specific_host"
	TextAuthors         TextField = "authors"
	TextTitle           TextField = "title"
	TextJournal         TextField = "journal"
	TextSubmitDate      TextField = "submit_date"
	TextCountry         TextField = "country"
)

// IntField is an optional integer record column
type IntField string

const (
	IntGI     IntField = "ncbi_gi"
	IntPubMed IntField = "pubmed"
)

// FloatField is an optional numeric record column
type FloatField string

const (
	FloatNonACGTPercent           FloatField = "non_acgt_percent"
	FloatPercIdentToInvariantCore FloatField = "perc_ident_to_invariant_core"
	FloatSmallGapIntrusions       FloatField = "small_gap_intrusions"
)

// RecordPatch collects column assignments for UpdateRecord. Columns not
// mentioned are left untouched. Taxonomy and sequence links are changed
// through UpdateTaxonomy and UpdateSequences, which allocate the new rows.
type RecordPatch struct {
	cols []string
	args []any
	err  error
}

// NewRecordPatch returns an empty patch
func NewRecordPatch() *RecordPatch {
	return &RecordPatch{}
}

func (p *RecordPatch) set(col string, v any) *RecordPatch {
	for i, c := range p.cols {
		if c == col {
			p.args[i] = v
			return p
		}
	}
	p.cols = append(p.cols, col)
	p.args = append(p.args, v)
	return p
}

// SetAccession changes the accession; the new value must be unique
func (p *RecordPatch) SetAccession(acc string) *RecordPatch {
	if acc == "" {
		p.err = fmt.Errorf("accession cannot be cleared")
		return p
	}
	return p.set("ncbi_acc_w_ver", acc)
}

// SetDecision changes the decision classification
func (p *RecordPatch) SetDecision(d Decision) *RecordPatch {
	if !d.Valid() {
		p.err = fmt.Errorf("unknown decision %q", string(d))
		return p
	}
	return p.set("decision", string(d))
}

// SetText sets a text column; the empty string clears it
func (p *RecordPatch) SetText(f TextField, v string) *RecordPatch {
	return p.set(string(f), nullString(v))
}

// SetInt sets an integer column; nil clears it
func (p *RecordPatch) SetInt(f IntField, v *int64) *RecordPatch {
	return p.set(string(f), nullInt(v))
}

// SetFloat sets a numeric column; nil clears it
func (p *RecordPatch) SetFloat(f FloatField, v *float64) *RecordPatch {
	return p.set(string(f), nullFloat(v))
}

// Empty reports whether the patch assigns nothing. A patch holding a
// rejected assignment is not empty.
func (p *RecordPatch) Empty() bool {
	return len(p.cols) == 0 && p.err == nil
}

// Columns lists the assigned columns in assignment order
func (p *RecordPatch) Columns() []string {
	return append([]string(nil), p.cols...)
}

func (p *RecordPatch) statement(id int64) (string, []any, error) {
	if p.err != nil {
		return "", nil, p.err
	}
	sets := make([]string, len(p.cols))
	for i, c := range p.cols {
		sets[i] = c + " = ?"
	}
	args := append(append([]any(nil), p.args...), id)
	return "UPDATE record SET " + strings.Join(sets, ", ") + " WHERE gg_id = ?", args, nil
}

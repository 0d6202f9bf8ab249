package store

import "fmt"

// Decision classifies how a record's organism was obtained
type Decision string

const (
	DecisionClone        Decision = "clone"
	DecisionIsolate      Decision = "isolate"
	DecisionNamedIsolate Decision = "named_isolate"
	DecisionUndetermined Decision = "undetermined"
)

// Valid reports whether d is one of the known decisions
func (d Decision) Valid() bool {
	switch d {
	case DecisionClone, DecisionIsolate, DecisionNamedIsolate, DecisionUndetermined:
		return true
	}
	return false
}

// ParseDecision accepts the stored spelling of a decision
func ParseDecision(s string) (Decision, error) {
	d := Decision(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown decision %q", s)
	}
	return d, nil
}

// TaxonomySource identifies which classifier produced a taxonomy string
type TaxonomySource string

const (
	SourceNCBI       TaxonomySource = "ncbi"
	SourceSILVA      TaxonomySource = "silva"
	SourceGreengenes TaxonomySource = "greengenes"
	SourceHugenholtz TaxonomySource = "hugenholtz"
)

// TaxonomySources lists every source in export order
var TaxonomySources = []TaxonomySource{SourceNCBI, SourceSILVA, SourceGreengenes, SourceHugenholtz}

// Column returns the record column referencing this source's taxonomy
func (s TaxonomySource) Column() (string, error) {
	switch s {
	case SourceNCBI:
		return "ncbi_tax_id", nil
	case SourceSILVA:
		return "silva_tax_id", nil
	case SourceGreengenes:
		return "greengenes_tax_id", nil
	case SourceHugenholtz:
		return "hugenholtz_tax_id", nil
	}
	return "", fmt.Errorf("unknown taxonomy source %q", string(s))
}

// SequenceField identifies one of the three sequence variants of a record
type SequenceField string

const (
	FieldUnaligned SequenceField = "unaligned"
	FieldAligned   SequenceField = "aligned"
	FieldPyNAST    SequenceField = "pynast"
)

// Column returns the record column referencing this sequence variant
func (f SequenceField) Column() (string, error) {
	switch f {
	case FieldUnaligned:
		return "unaligned_seq_id", nil
	case FieldAligned:
		return "aligned_seq_id", nil
	case FieldPyNAST:
		return "pynast_aligned_seq_id", nil
	}
	return "", fmt.Errorf("unknown sequence field %q", string(f))
}

// Record is one curated accession. Optional numeric columns are pointers;
// empty strings are stored as NULL.
type Record struct {
	ID                       int64
	Accession                string
	GI                       *int64
	DBName                   string
	GoldID                   string
	Decision                 Decision
	ProkMSAName              string
	IsolationSource          string
	Clone                    string
	Organism                 string
	Strain                   string
	SpecificHost             string
	Authors                  string
	Title                    string
	Journal                  string
	PubMed                   *int64
	SubmitDate               string
	Country                  string
	NCBITaxID                *int64
	SILVATaxID               *int64
	GreengenesTaxID          *int64
	HugenholtzTaxID          *int64
	NonACGTPercent           *float64
	PercIdentToInvariantCore *float64
	SmallGapIntrusions       *float64
	UnalignedSeqID           *int64
	AlignedSeqID             *int64
	PyNASTSeqID              *int64
}

// Sequence is an immutable sequence blob
type Sequence struct {
	ID   int64
	Data string
}

// Taxonomy is an immutable versioned taxonomy string
type Taxonomy struct {
	ID      int64
	Version string
	Value   string
}

// Release tags one record with a release name
type Release struct {
	ID       int64
	Name     string
	RecordID int64
}

// OTUCluster is one clustering result and its members
type OTUCluster struct {
	ID               int64
	RepresentativeID int64
	ReleaseKey       int64
	Similarity       float64
	Method           string
	Members          []int64
}

// RecordDetail is a record joined with the strings it references.
// Absent references are nil.
type RecordDetail struct {
	Record
	Taxonomy  map[TaxonomySource]*string
	Unaligned *string
	Aligned   *string
	PyNAST    *string
}

// DefaultRelease is the release new records land in
const DefaultRelease = "in_holding"

// DefaultTaxonomyVersion labels taxonomy strings loaded without a version
const DefaultTaxonomyVersion = "NA"

// MaxMethodLength is the width of otu_cluster.method
const MaxMethodLength = 16

package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/afero"
)

// ReadTaxonomy parses a two-column tab separated table of gg_id and
// taxonomy string. Empty, "NULL" and "None" strings map to nil, which
// clears the record's link. Lines starting with '#' are skipped.
func ReadTaxonomy(r io.Reader) (map[int64]*string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	out := make(map[int64]*string)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse taxonomy table: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) > 2 {
			return nil, fmt.Errorf("%w: line %d has %d columns", util.ErrInvalidInput, line, len(row))
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: line %d: %q is not a gg_id", util.ErrInvalidInput, line, row[0])
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: line %d: gg_id %d appears twice", util.ErrInvalidInput, line, id)
		}
		var value *string
		if len(row) == 2 {
			value = nullable(row[1])
		}
		out[id] = value
	}
	return out, nil
}

// ReadTaxonomyFile parses a taxonomy table from fs
func ReadTaxonomyFile(fs afero.Fs, path string) (map[int64]*string, error) {
	f, err := openInput(fs, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tax, err := ReadTaxonomy(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tax, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NULL", "None":
		return nil
	}
	return &s
}

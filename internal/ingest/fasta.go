package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/franz/gg-curator/internal/util"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// ReadSequences parses FASTA whose record names are gg_ids into
// gg_id -> sequence. Gap characters are kept; a repeated id is an error.
func ReadSequences(r io.Reader) (map[int64]string, error) {
	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(r, template))

	out := make(map[int64]string)
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected sequence type %T", util.ErrInvalidInput, sc.Seq())
		}
		name := strings.TrimSpace(s.Name())
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: fasta id %q is not a gg_id", util.ErrInvalidInput, name)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: gg_id %d appears twice", util.ErrInvalidInput, id)
		}
		out[id] = string(alphabet.LettersToBytes(s.Seq))
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("failed to parse fasta: %w", err)
	}
	return out, nil
}

// ReadSequenceFile parses one FASTA file (optionally gzip-compressed)
func ReadSequenceFile(fs afero.Fs, path string) (map[int64]string, error) {
	f, err := openInput(fs, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seqs, err := ReadSequences(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seqs, nil
}

// ReadSequenceFiles parses several FASTA files in parallel and merges
// them. An id present in more than one file is an error.
func ReadSequenceFiles(ctx context.Context, fs afero.Fs, paths []string) (map[int64]string, error) {
	p := pool.NewWithResults[fileSequences]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(4)
	for _, path := range paths {
		path := path
		p.Go(func(ctx context.Context) (fileSequences, error) {
			if err := ctx.Err(); err != nil {
				return fileSequences{}, err
			}
			seqs, err := ReadSequenceFile(fs, path)
			return fileSequences{path: path, seqs: seqs}, err
		})
	}
	parts, err := p.Wait()
	if err != nil {
		return nil, err
	}

	merged := make(map[int64]string)
	origin := make(map[int64]string)
	for _, part := range parts {
		for id, seq := range part.seqs {
			if prev, dup := origin[id]; dup {
				return nil, fmt.Errorf("%w: gg_id %d in both %s and %s", util.ErrInvalidInput, id, prev, part.path)
			}
			origin[id] = part.path
			merged[id] = seq
		}
	}
	util.DebugLog("read %d sequences from %d files", len(merged), len(paths))
	return merged, nil
}

type fileSequences struct {
	path string
	seqs map[int64]string
}

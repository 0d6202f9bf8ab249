// Package export writes record subsets in the BEGIN/key=value/END block
// format, either in memory or as gzip shards, one shard per page.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/franz/gg-curator/internal/metrics"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/klauspost/compress/gzip"
)

const (
	// DefaultPageSize is the number of records per page and per shard
	DefaultPageSize = 10000
	// MaxPageSize keeps one page's IN list under the engines' parameter limits
	MaxPageSize = 30000
)

// Source fetches one page of export rows in a single query
type Source interface {
	ExportPage(ctx context.Context, ids []int64, field store.SequenceField) ([]store.ExportRow, error)
}

// Sink creates named shard files
type Sink interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
}

// aborter is implemented by shard writers that can discard a partial write
type aborter interface {
	Abort() error
}

// Options configures one export run
type Options struct {
	Field    store.SequenceField // sequence variant emitted as aligned_seq (default aligned)
	PageSize int                 // records per page (default 10000)

	// Basename enables sharding: page n is written to <Basename>_<n>.txt.gz
	// through Sink. When empty, blocks are returned in memory.
	Basename string
	Sink     Sink

	// StartPage skips pages before it, to resume an interrupted run
	StartPage int

	OnPage func(PageResult)
}

// PageResult describes one finished page
type PageResult struct {
	Index   int
	Name    string
	Records int
	Bytes   int64
}

// Result summarizes an export run
type Result struct {
	Pages   int
	Records int
	Files   []string
	Bytes   int64
	Blocks  []string // in-memory mode only
}

// Exporter renders pages from a Source
type Exporter struct {
	src Source
}

// New returns an Exporter reading from src
func New(src Source) *Exporter {
	return &Exporter{src: src}
}

// Paginate splits ids into consecutive pages of at most size, keeping order
func Paginate(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultPageSize
	}
	var pages [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		pages = append(pages, ids[start:end])
	}
	return pages
}

// ShardName returns the file name of page n
func ShardName(basename string, n int) string {
	return fmt.Sprintf("%s_%d.txt.gz", basename, n)
}

// Export writes ids page by page. Each page is queried, written and closed
// before the next page is queried, so a failure leaves every earlier shard
// complete.
func (e *Exporter) Export(ctx context.Context, ids []int64, opts Options) (*Result, error) {
	if opts.Field == "" {
		opts.Field = store.FieldAligned
	}
	if _, err := opts.Field.Column(); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page size %d exceeds %d", util.ErrInvalidInput, opts.PageSize, MaxPageSize)
	}
	if opts.Basename != "" && opts.Sink == nil {
		return nil, fmt.Errorf("%w: sharded export needs a sink", util.ErrInvalidConfig)
	}

	res := &Result{}
	for n, page := range Paginate(ids, opts.PageSize) {
		if n < opts.StartPage {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := time.Now()
		rows, err := e.src.ExportPage(ctx, page, opts.Field)
		if err != nil {
			return res, fmt.Errorf("page %d: %w", n, err)
		}

		pr := PageResult{Index: n, Records: len(rows)}
		if opts.Basename == "" {
			for _, row := range rows {
				res.Blocks = append(res.Blocks, RenderBlock(row))
			}
		} else {
			pr.Name = ShardName(opts.Basename, n)
			if pr.Bytes, err = writeShard(ctx, opts.Sink, pr.Name, rows); err != nil {
				return res, fmt.Errorf("page %d: %w", n, err)
			}
			res.Files = append(res.Files, pr.Name)
			res.Bytes += pr.Bytes
			metrics.ExportBytesTotal.Add(float64(pr.Bytes))
		}

		res.Pages++
		res.Records += len(rows)
		metrics.ExportPagesTotal.Inc()
		metrics.ExportRecordsTotal.Add(float64(len(rows)))
		metrics.ObservePage(start)
		util.DebugLog("export page %d: %d records in %s", n, len(rows), util.FormatDuration(time.Since(start)))

		if opts.OnPage != nil {
			opts.OnPage(pr)
		}
	}
	return res, nil
}

// writeShard writes one gzip-compressed page and returns its compressed size
func writeShard(ctx context.Context, sink Sink, name string, rows []store.ExportRow) (int64, error) {
	f, err := sink.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", name, err)
	}

	cw := &countingWriter{w: f}
	gz := gzip.NewWriter(cw)
	bw := bufio.NewWriterSize(gz, 64*1024)

	fail := func(err error) (int64, error) {
		if a, ok := f.(aborter); ok {
			a.Abort()
		} else {
			f.Close()
		}
		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}

	for _, row := range rows {
		if err := writeBlock(bw, row); err != nil {
			return fail(err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := gz.Close(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", name, err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

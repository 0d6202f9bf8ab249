package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/franz/gg-curator/internal/store"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

func openSeededStore(t *testing.T, n int) (*store.Store, []int64) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "gg.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	ids := make([]int64, 0, n)
	aligned := make(map[int64]string, n)
	for i := 1; i <= n; i++ {
		id, err := s.InsertRecord(ctx, &store.Record{
			Accession: fmt.Sprintf("EU%06d.1", i),
			Decision:  store.DecisionClone,
		}, "")
		if err != nil {
			t.Fatalf("failed to insert record %d: %v", i, err)
		}
		ids = append(ids, id)
		aligned[id] = strings.Repeat("-", i%5) + "ACGU"
	}
	if _, err := s.UpdateSequences(ctx, store.FieldAligned, aligned); err != nil {
		t.Fatalf("failed to set sequences: %v", err)
	}
	return s, ids
}

func readShard(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	if err != nil {
		t.Fatalf("failed to open shard %s: %v", name, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("shard %s is not gzip: %v", name, err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("failed to read shard %s: %v", name, err)
	}
	return string(data)
}

func TestShardedExportMatchesInMemory(t *testing.T) {
	s, ids := openSeededStore(t, 25)
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	var pages []PageResult
	sharded, err := New(s).Export(ctx, ids, Options{
		PageSize: 10,
		Basename: "out/gg",
		Sink:     &FSSink{Fs: fs},
		OnPage:   func(p PageResult) { pages = append(pages, p) },
	})
	if err != nil {
		t.Fatalf("sharded export failed: %v", err)
	}
	if sharded.Pages != 3 || len(sharded.Files) != 3 {
		t.Fatalf("expected ceil(25/10)=3 pages, got %d pages, files %v", sharded.Pages, sharded.Files)
	}
	wantFiles := []string{"out/gg_0.txt.gz", "out/gg_1.txt.gz", "out/gg_2.txt.gz"}
	if !slices.Equal(sharded.Files, wantFiles) {
		t.Errorf("expected files %v, got %v", wantFiles, sharded.Files)
	}
	if len(pages) != 3 || pages[2].Records != 5 {
		t.Errorf("unexpected page callbacks: %+v", pages)
	}
	if sharded.Bytes <= 0 {
		t.Error("expected compressed byte count")
	}

	memory, err := New(s).Export(ctx, ids, Options{PageSize: 10})
	if err != nil {
		t.Fatalf("in-memory export failed: %v", err)
	}
	if len(memory.Blocks) != 25 || memory.Records != 25 {
		t.Fatalf("expected 25 in-memory blocks, got %d", len(memory.Blocks))
	}

	var fromFiles []string
	for _, name := range sharded.Files {
		fromFiles = append(fromFiles, SplitBlocks(readShard(t, fs, name))...)
	}
	want := slices.Clone(memory.Blocks)
	slices.Sort(fromFiles)
	slices.Sort(want)
	if !slices.Equal(fromFiles, want) {
		t.Errorf("sharded blocks differ from in-memory blocks")
	}

	if exists, _ := afero.Exists(fs, "out/gg_0.txt.gz.partial"); exists {
		t.Error("partial file left behind")
	}
}

func TestExportBlockFormat(t *testing.T) {
	s, ids := openSeededStore(t, 1)
	res, err := New(s).Export(context.Background(), ids, Options{Field: store.FieldAligned})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	block := res.Blocks[0]

	if !strings.HasPrefix(block, "BEGIN\ngg_id=1\nprokmsa_id=1\nncbi_acc_w_ver=EU000001.1\nncbi_gi=\n") {
		t.Errorf("unexpected block start:\n%s", block)
	}
	if !strings.HasSuffix(block, "warning=\naligned_seq=-ACGU\nEND\n\n") {
		t.Errorf("unexpected block end:\n%s", block)
	}
	if strings.Count(block, "\n") != len(store.ExportKeys)+4 {
		t.Errorf("expected %d lines, got block:\n%s", len(store.ExportKeys)+4, block)
	}
}

func TestRenderBlockNullsAndWarning(t *testing.T) {
	v := func(s string) *string { return &s }
	row := store.ExportRow{ID: 7, Fields: []store.ExportField{
		{Key: "gg_id", Value: v("7")},
		{Key: "clone", Value: nil},
		{Key: store.SequenceKey, Value: nil},
	}}
	want := "BEGIN\ngg_id=7\nclone=\nwarning=\naligned_seq=\nEND\n\n"
	if got := RenderBlock(row); got != want {
		t.Errorf("RenderBlock =\n%q\nwant\n%q", got, want)
	}
}

func TestPaginateAndShardName(t *testing.T) {
	ids := []int64{5, 3, 9, 1, 7}
	pages := Paginate(ids, 2)
	if len(pages) != 3 || !slices.Equal(pages[2], []int64{7}) || !slices.Equal(pages[0], []int64{5, 3}) {
		t.Errorf("unexpected pages: %v", pages)
	}
	if len(Paginate(nil, 2)) != 0 {
		t.Error("expected no pages for no ids")
	}
	if got := ShardName("gg_13_5", 0); got != "gg_13_5_0.txt.gz" {
		t.Errorf("ShardName = %q", got)
	}
}

type failingSource struct {
	src    Source
	failOn int
	calls  int
}

func (f *failingSource) ExportPage(ctx context.Context, ids []int64, field store.SequenceField) ([]store.ExportRow, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, errors.New("connection reset")
	}
	return f.src.ExportPage(ctx, ids, field)
}

func TestPageFailureKeepsFlushedShards(t *testing.T) {
	s, ids := openSeededStore(t, 6)
	fs := afero.NewMemMapFs()
	src := &failingSource{src: s, failOn: 2}

	res, err := New(src).Export(context.Background(), ids, Options{
		PageSize: 2,
		Basename: "gg",
		Sink:     &FSSink{Fs: fs},
	})
	if err == nil {
		t.Fatal("expected export to fail on page 1")
	}
	if res.Pages != 1 || !slices.Equal(res.Files, []string{"gg_0.txt.gz"}) {
		t.Errorf("expected only page 0 written, got %+v", res)
	}
	if got := SplitBlocks(readShard(t, fs, "gg_0.txt.gz")); len(got) != 2 {
		t.Errorf("expected page 0 intact with 2 blocks, got %d", len(got))
	}
	if exists, _ := afero.Exists(fs, "gg_1.txt.gz"); exists {
		t.Error("failed page must not produce a shard")
	}

	// Resume from the failed page
	res, err = New(s).Export(context.Background(), ids, Options{
		PageSize:  2,
		Basename:  "gg",
		Sink:      &FSSink{Fs: fs},
		StartPage: 1,
	})
	if err != nil {
		t.Fatalf("resumed export failed: %v", err)
	}
	if !slices.Equal(res.Files, []string{"gg_1.txt.gz", "gg_2.txt.gz"}) {
		t.Errorf("unexpected resumed files: %v", res.Files)
	}
}

func TestExportValidation(t *testing.T) {
	e := New(nil)
	ctx := context.Background()
	if _, err := e.Export(ctx, []int64{1}, Options{PageSize: MaxPageSize + 1}); err == nil {
		t.Error("expected oversized page to be rejected")
	}
	if _, err := e.Export(ctx, []int64{1}, Options{Basename: "gg"}); err == nil {
		t.Error("expected sharded export without sink to be rejected")
	}
	if _, err := e.Export(ctx, []int64{1}, Options{Field: "masked"}); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

type fakeS3 struct {
	fail    int
	objects map[string][]byte
	types   map[string]string
}

func TestS3SinkUploadsShards(t *testing.T) {
	s, ids := openSeededStore(t, 3)
	client := &fakeS3{fail: 1, objects: map[string][]byte{}, types: map[string]string{}}
	sink := &S3Sink{Client: client, Bucket: "gg-exports", Prefix: "2024/full"}

	res, err := New(s).Export(context.Background(), ids, Options{PageSize: 2, Basename: "gg", Sink: sink})
	if err != nil {
		t.Fatalf("export to s3 failed: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("expected 2 shards, got %v", res.Files)
	}
	for _, name := range res.Files {
		key := sink.Key(name)
		body, ok := client.objects[key]
		if !ok {
			t.Fatalf("missing object %s", key)
		}
		if client.types[key] != "application/gzip" {
			t.Errorf("unexpected content type %q", client.types[key])
		}
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			t.Fatalf("object %s is not gzip: %v", key, err)
		}
		data, _ := io.ReadAll(gz)
		if !strings.HasPrefix(string(data), "BEGIN\n") {
			t.Errorf("object %s does not hold blocks", key)
		}
	}
	if _, ok := client.objects["2024/full/gg_0.txt.gz"]; !ok {
		t.Errorf("expected prefixed key, have %v", client.objects)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/franz/gg-curator/internal/export"
	"github.com/franz/gg-curator/internal/store"
	"github.com/franz/gg-curator/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export [BASENAME]",
	Short: "Export records as BEGIN/END blocks",
	Long: `Export records as BEGIN/END key=value blocks, one page of records per
query. With BASENAME, page n is written gzip-compressed to
BASENAME_n.txt.gz (n counts from 0) on the local filesystem, or to
object storage with --s3. Without BASENAME the blocks go to stdout.

Records are selected by --ids, by --release, or else every record is
exported. Each shard is complete before the next page is queried, so a
failed run can be resumed with --start-page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.String("field", "aligned", "sequence variant emitted as aligned_seq: unaligned, aligned or pynast")
	f.Int("page-size", export.DefaultPageSize, fmt.Sprintf("records per page and shard (max %d)", export.MaxPageSize))
	f.StringSlice("release", nil, "export records of these releases")
	f.StringSlice("ids", nil, "export these gg_ids")
	f.Int("start-page", 0, "skip pages before this index")
	f.Bool("s3", false, "write shards to the configured S3 bucket")
	f.String("s3-bucket", "", "S3 bucket for --s3")
	f.String("s3-prefix", "", "key prefix for --s3")

	viper.BindPFlag("export.field", f.Lookup("field"))
	viper.BindPFlag("export.page-size", f.Lookup("page-size"))
	viper.BindPFlag("export.releases", f.Lookup("release"))
	viper.BindPFlag("export.s3.bucket", f.Lookup("s3-bucket"))
	viper.BindPFlag("export.s3.prefix", f.Lookup("s3-prefix"))
}

// exportIDs resolves the records to export
func exportIDs(ctx context.Context, db *store.Store, ids []int64, releases []string) ([]int64, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	if len(releases) == 0 {
		return db.RecordIDs(ctx)
	}
	var all []int64
	for _, rel := range releases {
		relIDs, err := db.ReleaseRecordIDs(ctx, rel)
		if err != nil {
			return nil, err
		}
		if len(relIDs) == 0 {
			util.WarnLog("Release %s has no records", rel)
		}
		all = append(all, relIDs...)
	}
	slices.Sort(all)
	return slices.Compact(all), nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	idArgs, _ := f.GetStringSlice("ids")
	ids, err := parseIDs(idArgs)
	if err != nil {
		return err
	}
	startPage, _ := f.GetInt("start-page")
	useS3, _ := f.GetBool("s3")

	ctx := context.Background()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err = exportIDs(ctx, db, ids, cfg.Export.Releases)
	if err != nil {
		return err
	}

	opts := export.Options{
		Field:     store.SequenceField(cfg.Export.Field),
		PageSize:  cfg.Export.PageSize,
		StartPage: startPage,
	}
	if len(args) == 1 {
		opts.Basename = args[0]
		if useS3 {
			sink, err := export.NewS3Sink(ctx, cfg.Export.S3)
			if err != nil {
				return err
			}
			sink.Retry = util.DefaultRetryConfig()
			opts.Sink = sink
			util.InfoLog("Exporting to s3://%s/%s", sink.Bucket, sink.Key(export.ShardName(opts.Basename, 0)))
		} else {
			opts.Sink = export.NewOSSink("")
		}
	} else if useS3 {
		return fmt.Errorf("%w: --s3 needs a BASENAME", util.ErrInvalidInput)
	}

	events := openEventLog(cfg)
	defer events.Close()

	pages := len(export.Paginate(ids, max(opts.PageSize, 1))) - startPage
	var bar *progressbar.ProgressBar
	if opts.Basename != "" && pages > 1 && util.ShowProgress() {
		bar = progressbar.NewOptions(pages,
			progressbar.OptionSetDescription("Exporting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("pages"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	opts.OnPage = func(p export.PageResult) {
		events.LogExportPage(p.Name, p.Records, p.Bytes)
		if bar != nil {
			bar.Add(1)
		}
	}

	util.InfoLog("Exporting %s records in pages of %d", util.FormatCount(int64(len(ids))), opts.PageSize)
	start := time.Now()
	res, err := export.New(db).Export(ctx, ids, opts)
	if bar != nil {
		bar.Finish()
	}
	if res != nil {
		events.LogExport(opts.Basename, res.Records, res.Bytes, time.Since(start), err)
	}
	if err != nil {
		if res != nil && len(res.Files) > 0 {
			util.WarnLog("%d shard(s) written before the failure; resume with --start-page %d",
				len(res.Files), startPage+res.Pages)
		}
		return err
	}

	if opts.Basename == "" {
		return writeBlocks(cmd.OutOrStdout(), res.Blocks)
	}
	util.SuccessLog("Exported %s records to %d shard(s), %s in %s",
		util.FormatCount(int64(res.Records)), len(res.Files),
		util.FormatBytes(res.Bytes), util.FormatDuration(time.Since(start)))
	return nil
}

func writeBlocks(w io.Writer, blocks []string) error {
	for _, b := range blocks {
		if _, err := io.WriteString(w, b); err != nil {
			return err
		}
	}
	return nil
}

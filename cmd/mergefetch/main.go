// Command mergefetch downloads CPTEC MERGE daily rainfall files for a date
// range. Files already in the target directory are not fetched again.
//
// Usage:
//
//	go run ./cmd/mergefetch -start 2023-01-01 -end 2023-01-31 -dir data/merge
//
// MERGE_BASE_URL and MERGE_WORKERS override the source tree and the number
// of concurrent downloads.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/merge"
	"github.com/couchcryptid/hydro-data-etl-service/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mergefetch", flag.ContinueOnError)
	startFlag := fs.String("start", "", "first day (yyyy-mm-dd)")
	endFlag := fs.String("end", "", "last day (yyyy-mm-dd), defaults to -start")
	dir := fs.String("dir", "merge", "download directory")
	timeout := fs.Duration("timeout", 2*time.Minute, "per-file request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *startFlag == "" {
		fs.Usage()
		return errors.New("missing required flag: -start")
	}
	if *endFlag == "" {
		*endFlag = *startFlag
	}

	start, err := time.Parse(time.DateOnly, *startFlag)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, *endFlag)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, "text")

	d := merge.NewDownloader(cfg.MergeBaseURL, cfg.MergeWorkers, nil,
		httpclient.WithTimeout(*timeout),
		httpclient.WithLogger(logger),
	)
	report, err := d.Download(ctx, start, end, *dir)
	printReport(out, report)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(report.Failed), report.Total())
	}
	return nil
}

func printReport(out io.Writer, r merge.Report) {
	fmt.Fprintf(out, "downloaded %d, skipped %d, missing %d, failed %d\n",
		len(r.Downloaded), len(r.Skipped), len(r.Missing), len(r.Failed))
	for _, day := range r.Missing {
		fmt.Fprintf(out, "missing  %s\n", day.Format(time.DateOnly))
	}
	for _, f := range r.Failed {
		fmt.Fprintf(out, "failed   %s: %v\n", f.Day.Format(time.DateOnly), f.Err)
	}
}

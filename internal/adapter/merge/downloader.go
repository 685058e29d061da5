// Package merge downloads CPTEC MERGE daily gridded rainfall files (GRIB2).
// The files are stored as-is; decoding them is left to downstream tools.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the CPTEC MERGE/GPM file tree.
const DefaultBaseURL = "http://ftp.cptec.inpe.br/modelos/tempo/MERGE/GPM"

const defaultWorkers = 20

// Downloader fetches daily MERGE files with a bounded number of concurrent
// requests.
type Downloader struct {
	baseURL string
	workers int
	http    *httpclient.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDownloader creates a Downloader. An empty baseURL selects DefaultBaseURL
// and workers <= 0 selects 20.
func NewDownloader(baseURL string, workers int, metrics *observability.Metrics, opts ...httpclient.Option) *Downloader {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if metrics != nil {
		opts = append(opts, httpclient.WithMetrics(metrics))
	}
	hc := httpclient.New("merge", opts...)
	return &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		workers: workers,
		http:    hc,
		logger:  hc.Logger(),
		metrics: metrics,
	}
}

// Failure is a day whose file could not be fetched or stored.
type Failure struct {
	Day time.Time
	Err error
}

// Report summarises a Download call. Every slice is sorted by day.
type Report struct {
	Downloaded []time.Time
	Skipped    []time.Time
	Missing    []time.Time
	Failed     []Failure
}

// Total is the number of days covered by the report.
func (r Report) Total() int {
	return len(r.Downloaded) + len(r.Skipped) + len(r.Missing) + len(r.Failed)
}

// FileName is the MERGE file name for day.
func FileName(day time.Time) string {
	return "MERGE_CPTEC_" + day.Format("20060102") + ".grib2"
}

// URL is the location of the file for day under baseURL.
func (d *Downloader) URL(day time.Time) string {
	return fmt.Sprintf("%s/DAILY/%04d/%02d/%s", d.baseURL, day.Year(), int(day.Month()), FileName(day))
}

// Download fetches one file per day from start to end inclusive into dir.
// Files already present are skipped, days the server does not have (404)
// are reported missing, and other failures are logged and reported without
// stopping the remaining days. Only a cancelled context or an unusable dir
// returns an error.
func (d *Downloader) Download(ctx context.Context, start, end time.Time, dir string) (Report, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return Report{}, fmt.Errorf("end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Report{}, fmt.Errorf("create download dir: %w", err)
	}

	var (
		mu     sync.Mutex
		report Report
	)
	record := func(day time.Time, err error, skipped bool) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case skipped:
			report.Skipped = append(report.Skipped, day)
			d.observe("skipped")
		case err == nil:
			report.Downloaded = append(report.Downloaded, day)
			d.observe("downloaded")
		case httpclient.IsNotFound(err):
			report.Missing = append(report.Missing, day)
			d.observe("missing")
		default:
			report.Failed = append(report.Failed, Failure{Day: day, Err: err})
			d.observe("failed")
		}
	}

	var g errgroup.Group
	g.SetLimit(d.workers)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			path := filepath.Join(dir, FileName(day))
			if info, err := os.Stat(path); err == nil && info.Size() > 0 {
				record(day, nil, true)
				return nil
			}
			err := d.fetch(ctx, day, path)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			if err != nil && !httpclient.IsNotFound(err) {
				d.logger.Warn("merge download failed",
					"day", day.Format(time.DateOnly),
					"error", err,
				)
			}
			record(day, err, false)
			return nil
		})
	}
	_ = g.Wait()

	report.sort()
	d.logger.Info("merge download finished",
		"downloaded", len(report.Downloaded),
		"skipped", len(report.Skipped),
		"missing", len(report.Missing),
		"failed", len(report.Failed),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (d *Downloader) fetch(ctx context.Context, day time.Time, path string) error {
	body, err := d.http.Get(ctx, d.URL(day), "")
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty file")
	}
	return writeAtomic(path, body)
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place, so an interrupted download never leaves a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func (r *Report) sort() {
	byTime := func(s []time.Time) {
		sort.Slice(s, func(i, j int) bool { return s[i].Before(s[j]) })
	}
	byTime(r.Downloaded)
	byTime(r.Skipped)
	byTime(r.Missing)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Day.Before(r.Failed[j].Day) })
}

func (d *Downloader) observe(outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.MergeFiles.WithLabelValues(outcome).Inc()
}

func truncateDay(t time.Time) time.Time {
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, t.Location())
}

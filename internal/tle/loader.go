package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aweeri/TLEscope/internal/metrics"
)

// ErrNoData is returned when no source produced any element records.
var ErrNoData = errors.New("no element data available")

// Loader resolves the element dataset. With a Fetcher it downloads and
// records each download in the Cache, falling back to the newest cached
// download; without one, or when both fail, it reads DataFile.
type Loader struct {
	DataFile string
	Fetcher  *Fetcher // nil disables downloads
	Cache    *Cache   // nil disables the download history
	Logger   *slog.Logger

	now func() time.Time
}

func (l *Loader) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// Load returns the best available dataset and the ingest report for it.
func (l *Loader) Load(ctx context.Context) (*Dataset, Report, error) {
	if l.Fetcher != nil {
		ds, report, err := l.download(ctx)
		if err == nil {
			return ds, report, nil
		}
		l.Logger.Warn("TLE download failed, trying cache", "error", err)

		ds, report, err = l.fromCache()
		if err == nil {
			return ds, report, nil
		}
		l.Logger.Info("no usable TLE cache", "error", err)
	}

	if l.DataFile == "" {
		return nil, Report{}, ErrNoData
	}
	return l.fromFile()
}

// Refresh downloads a new dataset and installs it in store. The store's
// fetch lock keeps concurrent refreshes from interleaving.
func (l *Loader) Refresh(ctx context.Context, store *Store) error {
	if l.Fetcher == nil {
		return errors.New("TLE fetching is disabled")
	}
	store.Lock()
	defer store.Unlock()

	ds, _, err := l.download(ctx)
	if err != nil {
		return err
	}
	store.Set(ds)
	return nil
}

// RunRefresh calls Refresh every interval until ctx is done. Failures are
// logged and the current dataset is kept.
func (l *Loader) RunRefresh(ctx context.Context, store *Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx, store); err != nil {
				l.Logger.Warn("TLE refresh failed, keeping current dataset", "error", err)
			}
		}
	}
}

func (l *Loader) download(ctx context.Context) (*Dataset, Report, error) {
	data, err := l.Fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncTLEFetchErrors()
		return nil, Report{}, err
	}

	fetchedAt := l.clock()
	ds, report, err := l.build(data, l.Fetcher.SourceURL(), fetchedAt)
	if err != nil {
		metrics.IncTLEFetchErrors()
		return nil, report, err
	}

	if l.Cache != nil {
		m := Manifest{
			Source:    l.Fetcher.SourceURL(),
			FetchedAt: fetchedAt,
			Parsed:    report.Parsed,
			Skipped:   report.Skipped,
		}
		if err := l.Cache.Write(data, m); err != nil {
			l.Logger.Warn("failed to write TLE cache", "dir", l.Cache.Dir(), "error", err)
		}
	}
	return ds, report, nil
}

func (l *Loader) fromCache() (*Dataset, Report, error) {
	if l.Cache == nil {
		return nil, Report{}, ErrNoCacheFiles
	}
	got, err := l.Cache.Latest()
	if err != nil {
		return nil, Report{}, err
	}
	source := "cache"
	if got.Manifest.Source != "" {
		source = "cache:" + got.Manifest.Source
	}
	return l.build(got.Data, source, got.Manifest.FetchedAt)
}

func (l *Loader) fromFile() (*Dataset, Report, error) {
	data, err := os.ReadFile(l.DataFile)
	if err != nil {
		return nil, Report{}, fmt.Errorf("reading %s: %w", l.DataFile, err)
	}
	info, err := os.Stat(l.DataFile)
	modTime := l.clock()
	if err == nil {
		modTime = info.ModTime()
	}
	return l.build(data, "file:"+l.DataFile, modTime)
}

func (l *Loader) build(data []byte, source string, fetchedAt time.Time) (*Dataset, Report, error) {
	entries, report, err := Parse(bytes.NewReader(data), l.Logger)
	if err != nil {
		return nil, report, err
	}
	metrics.AddTLESkipped(len(report.Skipped))
	if len(entries) == 0 {
		return nil, report, fmt.Errorf("%w from %s", ErrNoData, source)
	}

	ds := NewDataset(source, fetchedAt, entries)
	metrics.SetTLEDatasetCount(len(entries))
	l.Logger.Info("loaded TLE data",
		"source", source,
		"count", len(entries),
		"skipped", len(report.Skipped),
		"fetched_at", fetchedAt.UTC().Format(time.RFC3339),
	)
	return ds, report, nil
}

package tle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoCacheFiles is returned by Latest when the cache directory holds no
// usable download.
var ErrNoCacheFiles = errors.New("no cache files found")

const (
	cachePrefix    = "elements-"
	dataSuffix     = ".tle"
	manifestSuffix = ".json"
)

// Manifest describes one cached download. It is stored next to the raw
// bytes so an offline start can report where the data came from and what
// ingestion skipped, and can refuse a file that was cut short.
type Manifest struct {
	Source    string       `json:"source"`
	FetchedAt time.Time    `json:"fetched_at"`
	Bytes     int          `json:"bytes"`
	SHA256    string       `json:"sha256"`
	Parsed    int          `json:"parsed"`
	Skipped   []Diagnostic `json:"skipped,omitempty"`
}

// Cached is a download read back from the cache.
type Cached struct {
	Data     []byte
	Manifest Manifest
}

// Cache keeps the last few downloads on disk, each as a raw element file
// plus its manifest, named by fetch time in milliseconds.
type Cache struct {
	dir      string
	maxFiles int
}

func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

func (c *Cache) Dir() string { return c.dir }

func (c *Cache) base(ms int64) string {
	return filepath.Join(c.dir, cachePrefix+strconv.FormatInt(ms, 10))
}

// Write stores data with its manifest and drops the oldest downloads past
// the limit. Size and checksum are filled in from data. Both files are
// written under temporary names and renamed, data first, so a reader
// never sees a manifest without its data.
func (c *Cache) Write(data []byte, m Manifest) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	sum := sha256.Sum256(data)
	m.Bytes = len(data)
	m.SHA256 = hex.EncodeToString(sum[:])
	m.FetchedAt = m.FetchedAt.UTC()
	meta, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache manifest: %w", err)
	}

	base := c.base(m.FetchedAt.UnixMilli())
	if err := writeAtomic(base+dataSuffix, data); err != nil {
		return err
	}
	if err := writeAtomic(base+manifestSuffix, meta); err != nil {
		return err
	}
	return c.prune()
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Latest returns the newest download whose bytes match its manifest.
// Downloads without a readable manifest are accepted with one rebuilt
// from the file name; downloads whose checksum disagrees are passed over.
func (c *Cache) Latest() (Cached, error) {
	stamps, err := c.stamps()
	if err != nil {
		return Cached{}, err
	}
	for i := len(stamps) - 1; i >= 0; i-- {
		if got, ok := c.read(stamps[i]); ok {
			return got, nil
		}
	}
	return Cached{}, ErrNoCacheFiles
}

// List returns the manifests of every cached download, oldest first.
func (c *Cache) List() ([]Manifest, error) {
	stamps, err := c.stamps()
	if err != nil {
		return nil, err
	}
	out := make([]Manifest, 0, len(stamps))
	for _, ms := range stamps {
		out = append(out, c.manifest(ms))
	}
	return out, nil
}

func (c *Cache) read(ms int64) (Cached, bool) {
	data, err := os.ReadFile(c.base(ms) + dataSuffix)
	if err != nil {
		return Cached{}, false
	}
	m := c.manifest(ms)
	if m.SHA256 != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != m.SHA256 {
			return Cached{}, false
		}
	}
	return Cached{Data: data, Manifest: m}, true
}

func (c *Cache) manifest(ms int64) Manifest {
	var m Manifest
	raw, err := os.ReadFile(c.base(ms) + manifestSuffix)
	if err != nil || json.Unmarshal(raw, &m) != nil {
		m = Manifest{}
	}
	if m.FetchedAt.IsZero() {
		m.FetchedAt = time.UnixMilli(ms).UTC()
	}
	return m
}

// stamps lists the fetch times of cached element files, oldest first.
func (c *Cache) stamps() ([]int64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var out []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, cachePrefix) || !strings.HasSuffix(name, dataSuffix) {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), dataSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, ms)
	}
	slices.Sort(out)
	return out, nil
}

func (c *Cache) prune() error {
	stamps, err := c.stamps()
	if err != nil || len(stamps) <= c.maxFiles {
		return err
	}
	for _, ms := range stamps[:len(stamps)-c.maxFiles] {
		for _, suffix := range []string{dataSuffix, manifestSuffix} {
			if err := os.Remove(c.base(ms) + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("pruning cache: %w", err)
			}
		}
	}
	return nil
}

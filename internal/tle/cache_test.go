package tle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheWriteLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewCache(dir, 2)

	if _, err := c.Latest(); !errors.Is(err, ErrNoCacheFiles) {
		t.Fatalf("Latest on missing dir: err = %v, want ErrNoCacheFiles", err)
	}

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		m := Manifest{Source: "src", FetchedAt: base.Add(time.Duration(i) * time.Hour), Parsed: i}
		if err := c.Write([]byte{byte('a' + i)}, m); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	got, err := c.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if string(got.Data) != "c" {
		t.Errorf("data = %q, want %q", got.Data, "c")
	}
	m := got.Manifest
	if !m.FetchedAt.Equal(base.Add(2*time.Hour)) || m.Source != "src" || m.Parsed != 2 || m.Bytes != 1 {
		t.Errorf("manifest = %+v", m)
	}

	list, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Parsed != 1 {
		t.Fatalf("List = %+v, want the two newest", list)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("cache dir holds %d files, want 2 data + 2 manifests", len(entries))
	}
}

func TestCacheManifestKeepsSkipped(t *testing.T) {
	c := NewCache(t.TempDir(), 0)
	skipped := []Diagnostic{{Index: 3, Name: "BROKEN", Reason: "line 1 checksum mismatch"}}
	if err := c.Write([]byte(issRecord), Manifest{Source: "src", FetchedAt: time.Unix(1_700_000_000, 0), Parsed: 1, Skipped: skipped}); err != nil {
		t.Fatal(err)
	}

	got, err := c.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Manifest.Skipped) != 1 || got.Manifest.Skipped[0] != skipped[0] {
		t.Errorf("Skipped = %+v", got.Manifest.Skipped)
	}
}

func TestCacheSkipsCorruptDownload(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 0)
	older := time.Unix(1_700_000_000, 0)
	newer := older.Add(time.Hour)
	if err := c.Write([]byte("old"), Manifest{Source: "src", FetchedAt: older}); err != nil {
		t.Fatal(err)
	}
	if err := c.Write([]byte("new"), Manifest{Source: "src", FetchedAt: newer}); err != nil {
		t.Fatal(err)
	}

	// Truncate the newest download behind its manifest's back.
	if err := os.WriteFile(c.base(newer.UnixMilli())+dataSuffix, []byte("ne"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := c.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if string(got.Data) != "old" || !got.Manifest.FetchedAt.Equal(older) {
		t.Errorf("Latest = %q at %v, want the older download", got.Data, got.Manifest.FetchedAt)
	}
}

func TestCacheWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "elements-1700000000000.tle"), []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewCache(dir, 0).Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if string(got.Data) != "raw" || got.Manifest.FetchedAt.Unix() != 1_700_000_000 || got.Manifest.Source != "" {
		t.Errorf("Latest = %q %+v", got.Data, got.Manifest)
	}
}

func TestCacheIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "elements-abc.tle", "elements-5.txt", "elements-5.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	c := NewCache(dir, 0)
	if _, err := c.Latest(); !errors.Is(err, ErrNoCacheFiles) {
		t.Fatalf("err = %v, want ErrNoCacheFiles", err)
	}
}

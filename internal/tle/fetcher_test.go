package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))

// serve answers every request with status and body.
func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestFetcherSources(t *testing.T) {
	iss := strings.TrimSuffix(issRecord, "\n")
	starlink := strings.TrimSuffix(starlinkRecord, "\n")

	tests := []struct {
		name    string
		primary func(t *testing.T) string
		extras  func(t *testing.T) []string
		wantIDs []int
		wantErr bool
	}{
		{
			name:    "primary only",
			primary: func(t *testing.T) string { return serve(t, http.StatusOK, issRecord) },
			wantIDs: []int{25544},
		},
		{
			// Bodies without a trailing newline must still split into records.
			name:    "extra appended",
			primary: func(t *testing.T) string { return serve(t, http.StatusOK, starlink) },
			extras:  func(t *testing.T) []string { return []string{serve(t, http.StatusOK, iss)} },
			wantIDs: []int{44713, 25544},
		},
		{
			name:    "failing extra skipped",
			primary: func(t *testing.T) string { return serve(t, http.StatusOK, starlinkRecord) },
			extras: func(t *testing.T) []string {
				return []string{serve(t, http.StatusInternalServerError, ""), serve(t, http.StatusOK, issRecord)}
			},
			wantIDs: []int{44713, 25544},
		},
		{
			name:    "failing primary",
			primary: func(t *testing.T) string { return serve(t, http.StatusInternalServerError, "") },
			extras:  func(t *testing.T) []string { return []string{serve(t, http.StatusOK, issRecord)} },
			wantErr: true,
		},
		{
			name:    "unreachable primary",
			primary: func(t *testing.T) string { return "http://127.0.0.1:1/tle" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var extras []string
			if tt.extras != nil {
				extras = tt.extras(t)
			}
			data, err := NewFetcher(tt.primary(t), testLogger, extras...).Fetch(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}

			entries, report, err := Parse(strings.NewReader(string(data)), testLogger)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(report.Skipped) != 0 {
				t.Errorf("unexpected skips: %+v", report.Skipped)
			}
			var ids []int
			for _, e := range entries {
				ids = append(ids, e.NORADID)
			}
			if !slices.Equal(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestFetcherBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("A", 1<<20)
		for i := 0; i < (maxBodyBytes>>20)+2; i++ {
			if _, err := io.WriteString(w, chunk); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL, testLogger).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("Fetch of oversized body: err = %v, want byte limit error", err)
	}
}

func TestFetcherCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFetcher(serve(t, http.StatusOK, issRecord), testLogger).Fetch(ctx); err == nil {
		t.Fatal("Fetch with canceled context succeeded")
	}
}

func TestFetcherDefaultSource(t *testing.T) {
	f := NewFetcher("", testLogger, "https://example.test/extra")
	if f.SourceURL() != defaultSourceURL {
		t.Errorf("SourceURL = %q, want default", f.SourceURL())
	}
	want := []string{defaultSourceURL, "https://example.test/extra"}
	if got := f.Sources(); !slices.Equal(got, want) {
		t.Errorf("Sources = %v, want %v", got, want)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	on := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)
	off := Middleware(Config{})(ok)

	tests := []struct {
		name    string
		handler http.Handler
		path    string
		header  string
		want    int
	}{
		{"disabled", off, "/api/v1/snapshot", "", http.StatusOK},
		{"missing token", on, "/api/v1/snapshot", "", http.StatusUnauthorized},
		{"wrong token", on, "/api/v1/snapshot", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", on, "/api/v1/snapshot", "s3cret", http.StatusUnauthorized},
		{"valid token", on, "/api/v1/snapshot", "Bearer s3cret", http.StatusOK},
		{"probe exempt", on, "/healthz", "", http.StatusOK},
		{"readiness exempt", on, "/readyz", "", http.StatusOK},
		{"metrics exempt", on, "/metrics", "", http.StatusOK},
		{"tle metadata exempt", on, "/api/v1/tle/metadata", "", http.StatusOK},
		{"query token on stream", on, "/api/v1/ws?access_token=s3cret", "", http.StatusOK},
		{"wrong query token", on, "/api/v1/stream/snapshots?access_token=x", "", http.StatusUnauthorized},
		{"query token ignored elsewhere", on, "/api/v1/snapshot?access_token=s3cret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

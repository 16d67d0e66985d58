package httputil

import (
	"net/http"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "ipv6 with port", remoteAddr: "[::1]:12345", want: "::1"},
		{name: "no port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{name: "mapped ipv4", remoteAddr: "[::ffff:10.0.0.7]:80", want: "10.0.0.7"},
		{name: "unparseable remote kept", remoteAddr: "pipe", want: "pipe"},
		{
			name:       "headers ignored when untrusted",
			remoteAddr: "10.0.0.1:1234",
			xff:        "1.2.3.4",
			xri:        "5.6.7.8",
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded single",
			remoteAddr: "10.0.0.1:1234",
			xff:        "1.2.3.4",
			trustProxy: true,
			want:       "1.2.3.4",
		},
		{
			name:       "forwarded chain takes leftmost",
			remoteAddr: "10.0.0.3:1234",
			xff:        "1.2.3.4, 10.0.0.1, 10.0.0.2",
			trustProxy: true,
			want:       "1.2.3.4",
		},
		{
			name:       "forwarded garbage skipped",
			remoteAddr: "10.0.0.3:1234",
			xff:        "unknown, 1.2.3.4",
			trustProxy: true,
			want:       "1.2.3.4",
		},
		{
			name:       "forwarded with port",
			remoteAddr: "10.0.0.3:1234",
			xff:        "1.2.3.4:5555",
			trustProxy: true,
			want:       "1.2.3.4",
		},
		{
			name:       "real ip fallback",
			remoteAddr: "10.0.0.1:1234",
			xri:        "5.6.7.8",
			trustProxy: true,
			want:       "5.6.7.8",
		},
		{
			name:       "forwarded beats real ip",
			remoteAddr: "10.0.0.1:1234",
			xff:        "1.2.3.4",
			xri:        "5.6.7.8",
			trustProxy: true,
			want:       "1.2.3.4",
		},
		{
			name:       "bad headers fall back to remote",
			remoteAddr: "10.0.0.1:1234",
			xff:        "nope",
			xri:        "also-nope",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: http.Header{}}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

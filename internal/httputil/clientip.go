// Package httputil holds request helpers shared by the API and stream
// handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address used to key per-client limits. With
// trustProxy set, the leftmost parseable X-Forwarded-For entry wins, then
// X-Real-IP; headers that do not hold an address are ignored. Enable
// trustProxy only behind a reverse proxy that rewrites those headers.
//
// IPv4-mapped IPv6 addresses are reported in IPv4 form so that one client
// shares a limiter across both socket families.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip, ok := parseIP(part); ok {
				return ip
			}
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return host
}

func parseIP(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		// Some proxies append the client port.
		ap, perr := netip.ParseAddrPort(s)
		if perr != nil {
			return "", false
		}
		addr = ap.Addr()
	}
	return addr.Unmap().WithZone("").String(), true
}

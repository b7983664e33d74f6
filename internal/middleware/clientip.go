package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address for rate limiting and GeoIP lookups: the
// first parseable X-Forwarded-For entry, else the RemoteAddr host. Behind chi's
// RealIP the two agree.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP from the request peer address.
// Forwarded headers are deliberately not trusted.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

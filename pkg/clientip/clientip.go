package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the client address of r without the port.
// It trusts r.RemoteAddr only; when the server sits behind a proxy, chi's RealIP
// middleware must run first so RemoteAddr already holds the forwarded address.
func FromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

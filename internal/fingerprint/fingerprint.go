// Package fingerprint derives an anonymous device fingerprint from request
// attributes. The fingerprint stands in for an account on anonymous poll
// votes; it is a dedup key, not an identity, and is never reversible.
package fingerprint

import (
	"encoding/base64"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// FromRequest fingerprints the request's client IP and user agent. Requests
// from the same device hash to the same value; the raw IP never leaves this
// function.
func FromRequest(r *http.Request) string {
	return Derive(clientIP(r), r.UserAgent())
}

// Derive hashes the attribute pair into a short URL-safe token.
func Derive(ip, userAgent string) string {
	sum := blake2b.Sum256([]byte(ip + "\x00" + userAgent))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}

// clientIP prefers the first X-Forwarded-For hop so fingerprints survive a
// reverse proxy, falling back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

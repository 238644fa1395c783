package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownIdentity is shared by every caller that sends neither forwarding header.
const UnknownIdentity = "unknown"

// IdentityFromRequest resolves the caller address from X-Forwarded-For, then X-Real-IP.
func IdentityFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return UnknownIdentity
}

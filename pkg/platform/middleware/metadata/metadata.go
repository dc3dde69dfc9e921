package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"signature-service/pkg/requestcontext"
)

// ClientMetadata stores the caller's IP and User-Agent in the request
// context for signature evidence, audit entries and rate limiting. Proxy
// headers are honoured only when trustProxy is set.
func ClientMetadata(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r.RemoteAddr)
			if trustProxy {
				if forwarded := ForwardedIP(r.Header); forwarded != "" {
					ip = forwarded
				}
			}
			ctx := requestcontext.WithClientMetadata(r.Context(), ip, r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ForwardedIP returns the first valid address in X-Forwarded-For, falling
// back to X-Real-IP. Malformed entries are skipped.
func ForwardedIP(h http.Header) string {
	for hop := range strings.SplitSeq(h.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(h.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	return ""
}

func remoteIP(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return host
}

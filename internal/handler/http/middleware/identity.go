// Package middleware holds HTTP middleware shared by the API handlers,
// centered on client identity resolution for rate limiting.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// AnonymousIdentity is the sentinel identity used when no client address can
// be determined. All such clients share one rate limit bucket, which is the
// conservative choice for unattributable traffic.
const AnonymousIdentity = "anonymous"

// IdentityResolver resolves the network identity string that keys the
// per-client rate limit counters.
type IdentityResolver interface {
	// Resolve returns the client identity for the request. It never fails;
	// unattributable requests resolve to AnonymousIdentity.
	Resolve(r *http.Request) string
}

// RemoteAddrResolver derives the identity from the TCP peer address only.
// This is the secure default when the service is directly reachable: the
// peer address cannot be spoofed, unlike forwarding headers.
type RemoteAddrResolver struct{}

// Resolve returns the host part of r.RemoteAddr, or AnonymousIdentity when
// the address does not parse.
func (RemoteAddrResolver) Resolve(r *http.Request) string {
	ip, err := hostFromAddr(r.RemoteAddr)
	if err != nil {
		return AnonymousIdentity
	}
	return ip
}

// TrustedProxyConfig restricts which peers may set forwarding headers.
// An empty AllowedCIDRs list trusts every peer, which matches deployments
// where the service is only reachable through the platform's load balancer.
type TrustedProxyConfig struct {
	AllowedCIDRs []netip.Prefix
}

// NewTrustedProxyConfig parses CIDR strings into a TrustedProxyConfig.
func NewTrustedProxyConfig(cidrs []string) (*TrustedProxyConfig, error) {
	cfg := &TrustedProxyConfig{}
	for _, s := range cidrs {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", s, err)
		}
		cfg.AllowedCIDRs = append(cfg.AllowedCIDRs, prefix)
	}
	return cfg, nil
}

// IsTrusted reports whether the peer address belongs to a trusted proxy.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	if len(c.AllowedCIDRs) == 0 {
		return true
	}
	host, err := hostFromAddr(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ForwardedResolver derives the identity from forwarding headers set by a
// trusted reverse proxy, in priority order:
//
//  1. X-Forwarded-For (first address in the list, the original client)
//  2. X-Real-IP
//  3. the TCP peer address
//  4. AnonymousIdentity
//
// Requests from peers outside the trusted proxy ranges fall straight through
// to the peer address; honoring their headers would let any client rotate its
// apparent identity and walk around the rate limits.
type ForwardedResolver struct {
	Trusted *TrustedProxyConfig
}

// Resolve implements IdentityResolver.
func (e *ForwardedResolver) Resolve(r *http.Request) string {
	if e.Trusted != nil && !e.Trusted.IsTrusted(r.RemoteAddr) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			slog.Warn("untrusted peer sent X-Forwarded-For, ignoring",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_forwarded_for", xff))
		}
		return RemoteAddrResolver{}.Resolve(r)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := firstForwardedIP(xff); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return RemoteAddrResolver{}.Resolve(r)
}

type contextKey string

const identityKey contextKey = "client_identity"

// WithIdentity stores the client identity in the context.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the resolved client identity, or
// AnonymousIdentity if the identity middleware did not run.
func IdentityFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(identityKey).(string); ok && id != "" {
		return id
	}
	return AnonymousIdentity
}

// Identity returns middleware that resolves the client identity once per
// request and stores it in the request context for the handlers.
func Identity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithIdentity(r.Context(), resolver.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// hostFromAddr extracts the IP from "host:port", "[v6]:port", or a bare IP.
func hostFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		if ip := net.ParseIP(addr); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return host, nil
}

// firstForwardedIP parses the first address from a comma-separated
// X-Forwarded-For value ("client, proxy1, proxy2").
func firstForwardedIP(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
		return ip.String()
	}
	return ""
}

package scanner

import (
	"context"
	"net"
	"strings"
)

// Resolver performs reverse name resolution for a host.
// It never fails: unresolvable hosts yield UnknownHostname and no aliases.
type Resolver interface {
	ResolveName(ctx context.Context, host string) (string, []string)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, host string) (string, []string)

// ResolveName calls f(ctx, host).
func (f ResolverFunc) ResolveName(ctx context.Context, host string) (string, []string) {
	return f(ctx, host)
}

// DNSResolver resolves PTR records through a net.Resolver.
type DNSResolver struct {
	lookupAddr func(ctx context.Context, addr string) ([]string, error)
}

// NewDNSResolver wraps r, or net.DefaultResolver when r is nil.
func NewDNSResolver(r *net.Resolver) *DNSResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &DNSResolver{lookupAddr: r.LookupAddr}
}

// ResolveName returns the first PTR name as the hostname and the remaining names as aliases,
// with trailing dots removed.
func (d *DNSResolver) ResolveName(ctx context.Context, host string) (string, []string) {
	names, err := d.lookupAddr(ctx, host)
	if err != nil {
		return UnknownHostname, []string{}
	}

	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSuffix(strings.TrimSpace(name), ".")
		if name != "" {
			cleaned = append(cleaned, name)
		}
	}
	if len(cleaned) == 0 {
		return UnknownHostname, []string{}
	}
	return cleaned[0], cleaned[1:]
}

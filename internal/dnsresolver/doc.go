// Package dnsresolver provides the DNS resolver stack behind SRV peer discovery.
//
// The package turns a list of configured DNS server addresses into a single
// resolver with deterministic fallback behavior. Explicit servers are tried
// in order with first-answer-wins semantics; when none are configured or
// none are usable, resolution falls back to the servers the operating
// system itself uses.
//
// # Features
//
//   - host[:port] server entries with per-entry error tolerance
//   - Ordered composite fallback across servers
//   - System default resolver derived from resolv.conf
//   - TCP or UDP transport, applied to whichever resolver is active
//   - Swappable wire transport for tests
//
// # Basic Usage
//
// Build a resolver from configured servers and query it:
//
//	resolver := dnsresolver.Build(
//		[]string{"10.0.0.2", "10.0.0.3:5353"},
//		dnsresolver.TCP,
//	)
//	records, err := resolver.Lookup(ctx, "_peers._tcp.cluster.example", dns.TypeSRV)
//	if err != nil {
//		log.Printf("lookup failed: %v", err)
//	}
//
// With no servers, Build returns the system default resolver:
//
//	resolver := dnsresolver.Build(nil, dnsresolver.TCP)
//
// # Build Tolerance
//
// Build never fails. Each configured entry that cannot be used is logged
// and dropped:
//
//   - An unparsable port falls back to 53 with a warning
//   - An unresolvable server hostname is skipped with a warning
//   - Zero usable entries means the system default resolver is used
//
// This mirrors the discovery philosophy: a misconfigured server list
// degrades resolution, it never prevents the node from starting.
//
// # Lookup Semantics
//
// Lookup distinguishes an answered-but-empty query from a failed one.
// NOERROR and NXDOMAIN responses are successes, with the answer section
// filtered to the requested record type. Transport failures and other
// rcodes are errors. A Composite walks its sub-resolvers in order, returns
// the first non-empty success, remembers empty successes, and fails only
// when every sub-resolver fails, aggregating the causes with
// go.uber.org/multierr.
//
// # Error Handling
//
// The package defines two error values:
//   - ErrEmptyName: an empty name was queried
//   - ErrEmptyMsg: the server returned an empty response message
//
// # Thread Safety
//
// All resolver variants are immutable after construction and safe for
// concurrent use; the underlying dns.Client supports concurrent exchanges.
//
// # Implementation Notes
//
//   - Uses github.com/miekg/dns for wire operations
//   - Names are canonicalized with dns.Fqdn before each exchange
//   - Server hostnames are pinned to an address at build time, so a dead
//     name is caught once rather than on every query
//   - The system resolver reads /etc/resolv.conf and, when it points at a
//     loopback address, notes the local resolver daemon serving it
package dnsresolver

// Package dnsresolver builds and runs the DNS resolver stack used for peer
// discovery. It supports explicit server lists with composite fallback,
// a system default resolver derived from the platform configuration, and
// TCP or UDP transport.
package dnsresolver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"

	"github.com/lc/srvdisc/internal/log"
)

var (
	// ErrEmptyName is returned when an empty name is queried.
	ErrEmptyName = fmt.Errorf("empty name")
	// ErrEmptyMsg is returned when the DNS response message is empty.
	ErrEmptyMsg = fmt.Errorf("empty message")
)

var (
	_defaultResolver = "1.1.1.1:53"
	_defaultTimeout  = 5 * time.Second
	_resolvConf      = "/etc/resolv.conf"
)

const _defaultPort = 53

// lookupHost validates configured server hostnames at build time.
// Swappable in tests.
var lookupHost = net.LookupHost

var (
	_ Resolver = (*Upstream)(nil)
	_ Resolver = (*Composite)(nil)
	_ Resolver = (*System)(nil)
)

// Protocol is the transport DNS queries are sent over.
type Protocol string

const (
	// TCP transport. Recommended: it reliably returns large record sets
	// that UDP truncates above 512 bytes unless EDNS0 is negotiated.
	TCP Protocol = "tcp"
	// UDP transport.
	UDP Protocol = "udp"
)

// ParseProtocol parses a protocol name. The empty string maps to TCP.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return TCP, nil
	case "udp":
		return UDP, nil
	}
	return "", fmt.Errorf("unknown DNS protocol %q", s)
}

// Resolver issues one DNS query and returns the matching records.
// An answered query with nothing in it is an empty result, not an error;
// errors mean the query could not be completed.
type Resolver interface {
	Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error)
}

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Opt is a function option applied to every Upstream a constructor builds.
type Opt func(u *Upstream)

// WithTimeout returns an option to set a custom timeout for DNS exchanges.
func WithTimeout(timeout time.Duration) Opt {
	return func(u *Upstream) {
		u.Timeout = timeout
	}
}

// WithExchanger returns an option to replace the wire transport.
// Intended for tests.
func WithExchanger(e Exchanger) Opt {
	return func(u *Upstream) {
		u.Client = e
	}
}

// Build assembles the resolver for the configured discovery servers, given
// as host[:port] entries. Every unusable entry is logged and skipped; if no
// usable entries remain the system default resolver is used. Build always
// returns a working resolver.
func Build(servers []string, proto Protocol, opts ...Opt) Resolver {
	subs := make([]Resolver, 0, len(servers))
	for _, entry := range servers {
		host, port := splitServerEntry(entry)
		u, err := NewUpstream(host, port, proto, opts...)
		if err != nil {
			log.Warnf("dnsresolver: skipping DNS server %q: %v", entry, err)
			continue
		}
		subs = append(subs, u)
	}

	if len(subs) == 0 {
		if len(servers) > 0 {
			log.Warnf("dnsresolver: none of the %d configured DNS servers are usable, falling back to the system resolver", len(servers))
		}
		return NewSystem(proto, opts...)
	}
	return NewComposite(subs...)
}

// splitServerEntry splits a host[:port] entry. A missing or unparsable
// port maps to 0 so the upstream constructor applies the default.
func splitServerEntry(entry string) (string, int) {
	host, portStr, err := net.SplitHostPort(entry)
	if err != nil {
		// no port in the entry, e.g. "dns1" or a bare IPv6 address
		return entry, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		log.Warnf("dnsresolver: invalid port %q for DNS server %q, using %d", portStr, host, _defaultPort)
		return host, 0
	}
	return host, port
}

// Upstream is a resolver bound to a single DNS server address.
type Upstream struct {
	Addr    string
	Client  Exchanger
	Timeout time.Duration

	proto Protocol
}

// NewUpstream creates a resolver for one DNS server. A hostname is resolved
// to a concrete address up front so a bad server entry surfaces at build
// time rather than on the first query. Port 0 means the default DNS port.
func NewUpstream(host string, port int, proto Protocol, opts ...Opt) (*Upstream, error) {
	if strings.TrimSpace(host) == "" {
		return nil, ErrEmptyName
	}
	if port <= 0 {
		port = _defaultPort
	}

	addr := host
	if net.ParseIP(host) == nil {
		resolved, err := lookupHost(host)
		if err != nil {
			return nil, fmt.Errorf("resolving DNS server %q: %w", host, err)
		}
		if len(resolved) == 0 {
			return nil, fmt.Errorf("resolving DNS server %q: no addresses", host)
		}
		addr = resolved[0]
	}

	return newUpstreamAddr(net.JoinHostPort(addr, strconv.Itoa(port)), proto, opts...), nil
}

// newUpstreamAddr wires an Upstream for an already resolved host:port.
func newUpstreamAddr(addr string, proto Protocol, opts ...Opt) *Upstream {
	u := &Upstream{
		Addr:    addr,
		Timeout: _defaultTimeout,
		proto:   proto,
	}

	for _, o := range opts {
		o(u)
	}

	if u.Client == nil {
		u.Client = &dns.Client{
			Net:     string(proto),
			Timeout: u.Timeout,
		}
	}
	return u
}

// Lookup sends one query to the upstream server. NOERROR and NXDOMAIN
// responses are successes, possibly with zero matching answers; any other
// rcode or a transport failure is an error.
func (u *Upstream) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(name), qtype)

	resp, _, err := u.Client.ExchangeContext(ctx, req, u.Addr)
	if err != nil {
		return nil, fmt.Errorf("exchange with %s: %w", u.Addr, err)
	}
	if resp == nil {
		return nil, ErrEmptyMsg
	}

	switch resp.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		// NXDOMAIN is an answered "nothing there", not a server failure.
	default:
		return nil, fmt.Errorf("%s answered %s for %q", u.Addr, dns.RcodeToString[resp.Rcode], name)
	}

	return recordsOfType(resp, qtype), nil
}

// recordsOfType filters the answer section down to the requested type.
// Servers may interleave CNAME chain entries with the records asked for.
func recordsOfType(resp *dns.Msg, qtype uint16) []dns.RR {
	var records []dns.RR
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype == qtype {
			records = append(records, rr)
		}
	}
	return records
}

// Composite tries each sub-resolver in order and returns the first
// successful non-empty answer. An empty success is remembered and reported
// as such only when no later sub-resolver produces records. The lookup
// fails only when every sub-resolver fails.
type Composite struct {
	subs []Resolver
}

// NewComposite combines resolvers into one with ordered fallback.
func NewComposite(subs ...Resolver) *Composite {
	return &Composite{subs: subs}
}

// Lookup queries the sub-resolvers in order.
func (c *Composite) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	var (
		errs     error
		answered bool
	)

	for _, sub := range c.subs {
		records, err := sub.Lookup(ctx, name, qtype)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if len(records) > 0 {
			return records, nil
		}
		answered = true
	}

	if errs != nil && !answered {
		return nil, fmt.Errorf("all DNS servers failed for %q: %w", name, errs)
	}
	return nil, nil
}

// System resolves through the servers the operating system is configured
// with. Queries walk the servers in order with the same
// first-non-empty-answer policy as Composite.
type System struct {
	inner *Composite
}

// NewSystem builds the system default resolver from the platform resolver
// configuration. If that configuration cannot be read or lists no servers,
// a well-known public resolver is used instead.
func NewSystem(proto Protocol, opts ...Opt) *System {
	servers, err := SystemServers()
	if err != nil {
		log.Warnf("dnsresolver: reading system resolver config: %v, falling back to %s", err, _defaultResolver)
		servers = nil
	}
	if len(servers) == 0 {
		servers = []string{_defaultResolver}
	}

	logLoopbackDaemon(servers)

	subs := make([]Resolver, 0, len(servers))
	for _, addr := range servers {
		subs = append(subs, newUpstreamAddr(addr, proto, opts...))
	}
	return &System{inner: NewComposite(subs...)}
}

// Lookup queries the system-configured servers in order.
func (s *System) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	return s.inner.Lookup(ctx, name, qtype)
}

// SystemServers returns the DNS server addresses the operating system is
// configured to use, as host:port strings.
func SystemServers() ([]string, error) {
	cfg, err := dns.ClientConfigFromFile(_resolvConf)
	if err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers, nil
}

// logLoopbackDaemon notes which local daemon serves a loopback nameserver,
// the usual explanation for 127.0.0.53-style resolv.conf entries.
func logLoopbackDaemon(servers []string) {
	for _, addr := range servers {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			continue
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			continue
		}
		if name, ok := DetectLocalResolver(); ok {
			log.Debugf("dnsresolver: loopback nameserver %s served by %s", addr, name)
		}
		return
	}
}

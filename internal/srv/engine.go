// Package srv implements SRV-based peer discovery. A discovery round
// resolves a configured SRV query, then resolves each target hostname
// to its IPv4 addresses, producing one endpoint per (address, port)
// pair. Resolution runs strictly sequentially and never fails outright:
// anything that goes wrong is logged and shrinks the result instead.
package srv

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/lc/srvdisc/internal/dnsresolver"
	"github.com/lc/srvdisc/internal/log"
)

// ErrBadName marks a query or target that is not a syntactically valid
// DNS name. It is the only failure lookupRecords surfaces to callers.
var ErrBadName = fmt.Errorf("malformed DNS name")

// Engine turns an SRV discovery query into concrete peer endpoints.
type Engine struct {
	resolver dnsresolver.Resolver
}

func New(resolver dnsresolver.Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// Resolve runs one discovery round: an SRV lookup for query, then one
// A lookup per non-literal target. Record order from the server is
// preserved and duplicates are kept. Every failure is logged and
// absorbed, so the worst outcome is a shorter (possibly empty) slice.
func (e *Engine) Resolve(ctx context.Context, query string) []Endpoint {
	query = strings.TrimSpace(query)
	if query == "" {
		log.Errorf("srv: no discovery query configured, returning no endpoints")
		return nil
	}

	records, err := e.lookupRecords(ctx, query, dns.TypeSRV)
	if err != nil {
		log.Errorf("srv: discovery query %q: %v", query, err)
		return nil
	}

	var endpoints []Endpoint
	for _, record := range records {
		target, ok := record.(*dns.SRV)
		if !ok {
			continue
		}
		endpoints = append(endpoints, e.resolveTarget(ctx, target)...)
	}
	if len(endpoints) == 0 {
		log.Debugf("srv: query %q produced no endpoints this round", query)
	}
	return endpoints
}

// resolveTarget maps one SRV record to its endpoints. A literal IP
// target short-circuits to a single endpoint without touching DNS
// again. Hostname targets are looked up in absolute form first, then
// retried once as a relative name so that search-path resolution still
// gets a chance.
func (e *Engine) resolveTarget(ctx context.Context, record *dns.SRV) []Endpoint {
	host := strings.TrimSuffix(record.Target, ".")
	if net.ParseIP(host) != nil {
		return []Endpoint{{Addr: host, Port: record.Port}}
	}

	records, err := e.lookupRecords(ctx, record.Target, dns.TypeA)
	if err != nil {
		log.Errorf("srv: target %q: %v", record.Target, err)
		return nil
	}
	if len(records) == 0 {
		records, err = e.lookupRecords(ctx, host, dns.TypeA)
		if err != nil {
			log.Errorf("srv: target %q: %v", host, err)
			return nil
		}
	}

	var endpoints []Endpoint
	for _, r := range records {
		a, ok := r.(*dns.A)
		if !ok {
			continue
		}
		endpoints = append(endpoints, Endpoint{Addr: a.A.String(), Port: record.Port})
	}
	return endpoints
}

// lookupRecords wraps the resolver with the engine's failure policy:
// resolver errors and empty record sets are logged and reported as an
// empty answer, because during a rolling restart half the fleet being
// unresolvable is routine. Only a malformed name is a real error.
func (e *Engine) lookupRecords(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	if _, ok := dns.IsDomainName(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadName, name)
	}

	records, err := e.resolver.Lookup(ctx, name, qtype)
	if err != nil {
		log.Warnf("srv: lookup %s %q: %v", dns.TypeToString[qtype], name, err)
		return nil, nil
	}
	if len(records) == 0 {
		log.Warnf("srv: no %s records for %q", dns.TypeToString[qtype], name)
	}
	return records, nil
}

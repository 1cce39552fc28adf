// Package discovery assembles cluster peer lists on top of SRV-based
// endpoint resolution. Each call to Peers runs one discovery round,
// expands the resolved endpoints into dialable peer addresses, and
// keeps a snapshot of the most recent round for inspection.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lc/srvdisc/internal/log"
	"github.com/lc/srvdisc/internal/srv"
)

// _minCompatVersion is the oldest peer release a node built from this
// tree can still talk to. Bump it when the peer wire format changes.
const _minCompatVersion = "v0.1.0"

var (
	_ EndpointResolver = (*srv.Engine)(nil)
	_ Expander         = (*NetExpander)(nil)
)

// EndpointResolver runs one discovery round for a query. srv.Engine is
// the production implementation.
type EndpointResolver interface {
	Resolve(ctx context.Context, query string) []srv.Endpoint
}

// Expander turns one resolved endpoint into the addresses a node
// should actually dial, for example by re-resolving a load-balanced
// hostname into its member IPs.
type Expander interface {
	Expand(ctx context.Context, endpoint string) ([]string, error)
}

// Peer is a single discovered cluster member.
type Peer struct {
	ID         string
	Addr       string
	MinVersion string
}

// Snapshot captures the outcome of one discovery round.
type Snapshot struct {
	Round int64
	ID    string
	Taken time.Time
	Peers []Peer
}

// Provider produces cluster peers from a configured SRV query.
// It is safe for concurrent use.
type Provider struct {
	engine   EndpointResolver
	expander Expander
	query    string

	rounds atomic.Int64
	last   atomic.Pointer[Snapshot]
}

// Opt configures optional Provider behavior.
type Opt func(*Provider)

// WithExpander replaces the default NetExpander.
func WithExpander(x Expander) Opt {
	return func(p *Provider) { p.expander = x }
}

// New creates a Provider that resolves query through engine.
func New(engine EndpointResolver, query string, opts ...Opt) *Provider {
	p := &Provider{
		engine:   engine,
		query:    query,
		expander: &NetExpander{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Peers runs one discovery round and returns the peers it found.
// Failures shrink the result instead of aborting it: an endpoint whose
// expansion fails is dropped and logged, and an unresolvable query
// yields an empty round.
func (p *Provider) Peers(ctx context.Context) []Peer {
	round := p.rounds.Inc()
	rid := uuid.NewString()
	lg := log.With("round", round, "rid", rid)

	endpoints := p.engine.Resolve(ctx, p.query)
	peers := p.expand(ctx, lg, endpoints)

	p.last.Store(&Snapshot{
		Round: round,
		ID:    rid,
		Taken: time.Now(),
		Peers: peers,
	})
	lg.Debugf("discovery round complete: %d endpoints, %d peers", len(endpoints), len(peers))
	return peers
}

// Last returns the most recent round's snapshot, or nil before the
// first round.
func (p *Provider) Last() *Snapshot {
	return p.last.Load()
}

// expand fans endpoint expansion out across goroutines and flattens
// the results back into endpoint order.
func (p *Provider) expand(ctx context.Context, lg *zap.SugaredLogger, endpoints []srv.Endpoint) []Peer {
	if len(endpoints) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		errs    error
		results = make([][]Peer, len(endpoints))
	)

	grp, ctx := errgroup.WithContext(ctx)
	for i, ep := range endpoints {
		i, ep := i, ep // capture loop variables per Uber guidance

		grp.Go(func() error {
			addrs, err := p.expander.Expand(ctx, ep.String())
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("expanding %s: %w", ep, err)) // collect but don't cancel siblings
				mu.Unlock()
				return nil
			}

			peers := make([]Peer, 0, len(addrs))
			for _, addr := range addrs {
				peers = append(peers, Peer{
					ID:         "#srv-" + ep.String() + "-" + addr,
					Addr:       addr,
					MinVersion: _minCompatVersion,
				})
			}
			results[i] = peers
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		lg.Warnf("some endpoints could not be expanded: %v", errs)
	}

	var peers []Peer
	for _, r := range results {
		peers = append(peers, r...)
	}
	return peers
}

// NetExpander expands endpoints through the operating system's
// resolver. Endpoints whose host is already an IP literal pass through
// untouched, which is the common case for SRV-discovered peers.
type NetExpander struct{}

// Expand implements Expander.
func (NetExpander) Expand(ctx context.Context, endpoint string) ([]string, error) {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad endpoint %q: %w", endpoint, err)
	}
	if net.ParseIP(host) != nil {
		return []string{endpoint}, nil
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", host, err)
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip.IP.String(), port))
	}
	return addrs, nil
}

package srv_test

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lc/srvdisc/internal/mocks"
	"github.com/lc/srvdisc/internal/srv"
)

func aRecord(name, ip string) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(name),
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    300,
		},
		A: net.ParseIP(ip),
	}
}

func srvRecord(name, target string, port uint16) *dns.SRV {
	return &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(name),
			Rrtype: dns.TypeSRV,
			Class:  dns.ClassINET,
			Ttl:    300,
		},
		Target: target,
		Port:   port,
	}
}

func endpointStrings(endpoints []srv.Endpoint) []string {
	out := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, ep.String())
	}
	return out
}

type EngineTestSuite struct {
	suite.Suite
	resolver *mocks.MockResolver
	engine   *srv.Engine
	ctx      context.Context
}

func (s *EngineTestSuite) SetupTest() {
	s.resolver = new(mocks.MockResolver)
	s.engine = srv.New(s.resolver)
	s.ctx = context.Background()
}

func (s *EngineTestSuite) TestResolveSingleNode() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{srvRecord(query, "node1.example.", 9300)}, nil)
	s.resolver.On("Lookup", mock.Anything, "node1.example.", dns.TypeA).
		Return([]dns.RR{aRecord("node1.example", "10.0.0.5")}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Equal([]string{"10.0.0.5:9300"}, endpointStrings(endpoints))
	s.resolver.AssertExpectations(s.T())
}

func (s *EngineTestSuite) TestResolveFanoutPreservesOrder() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{
			srvRecord(query, "node1.cluster.example.", 9300),
			aRecord(query, "203.0.113.9"), // stray record type, must be ignored
			srvRecord(query, "node2.cluster.example.", 9301),
			srvRecord(query, "192.168.1.10.", 9302),
		}, nil)
	s.resolver.On("Lookup", mock.Anything, "node1.cluster.example.", dns.TypeA).
		Return([]dns.RR{
			aRecord("node1.cluster.example", "10.0.0.5"),
			aRecord("node1.cluster.example", "10.0.0.6"),
		}, nil)
	s.resolver.On("Lookup", mock.Anything, "node2.cluster.example.", dns.TypeA).
		Return([]dns.RR{aRecord("node2.cluster.example", "10.0.0.7")}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Equal([]string{
		"10.0.0.5:9300",
		"10.0.0.6:9300",
		"10.0.0.7:9301",
		"192.168.1.10:9302",
	}, endpointStrings(endpoints))
	s.resolver.AssertNotCalled(s.T(), "Lookup", mock.Anything, "192.168.1.10.", dns.TypeA)
}

func (s *EngineTestSuite) TestLiteralTargetSkipsAddressLookup() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{srvRecord(query, "192.168.1.10.", 9301)}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Equal([]string{"192.168.1.10:9301"}, endpointStrings(endpoints))
	s.resolver.AssertNotCalled(s.T(), "Lookup", mock.Anything, mock.Anything, dns.TypeA)
	s.resolver.AssertNumberOfCalls(s.T(), "Lookup", 1)
}

func (s *EngineTestSuite) TestAbsoluteThenRelativeRetry() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{srvRecord(query, "node3.internal.", 9300)}, nil)
	// The absolute form misses, the relative form picks up the
	// resolver's search path and answers.
	s.resolver.On("Lookup", mock.Anything, "node3.internal.", dns.TypeA).
		Return([]dns.RR{}, nil)
	s.resolver.On("Lookup", mock.Anything, "node3.internal", dns.TypeA).
		Return([]dns.RR{aRecord("node3.internal.cluster.example", "10.0.0.8")}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Equal([]string{"10.0.0.8:9300"}, endpointStrings(endpoints))
	s.resolver.AssertNumberOfCalls(s.T(), "Lookup", 3)
	s.resolver.AssertExpectations(s.T())
}

func (s *EngineTestSuite) TestDuplicateEndpointsKept() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{
			srvRecord(query, "node1.cluster.example.", 9300),
			srvRecord(query, "node1.cluster.example.", 9300),
		}, nil)
	s.resolver.On("Lookup", mock.Anything, "node1.cluster.example.", dns.TypeA).
		Return([]dns.RR{aRecord("node1.cluster.example", "10.0.0.5")}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Equal([]string{"10.0.0.5:9300", "10.0.0.5:9300"}, endpointStrings(endpoints))
}

func (s *EngineTestSuite) TestEmptyQuery() {
	testCases := []struct {
		name  string
		query string
	}{
		{name: "unset query", query: ""},
		{name: "whitespace query", query: "   "},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			endpoints := s.engine.Resolve(s.ctx, tc.query)

			s.Empty(endpoints)
			s.resolver.AssertNumberOfCalls(s.T(), "Lookup", 0)
		})
	}
}

func (s *EngineTestSuite) TestMalformedQuery() {
	endpoints := s.engine.Resolve(s.ctx, "node..cluster.example")

	s.Empty(endpoints)
	s.resolver.AssertNumberOfCalls(s.T(), "Lookup", 0)
}

func (s *EngineTestSuite) TestZeroRecords() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Empty(endpoints)
	s.resolver.AssertNumberOfCalls(s.T(), "Lookup", 1)
}

func (s *EngineTestSuite) TestLookupFailureAbsorbed() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return(nil, fmt.Errorf("all DNS servers failed for %q", query))

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Empty(endpoints)
	s.resolver.AssertNumberOfCalls(s.T(), "Lookup", 1)
}

func (s *EngineTestSuite) TestTargetFailuresIsolated() {
	const query = "_peers._tcp.cluster.example"

	s.resolver.On("Lookup", mock.Anything, query, dns.TypeSRV).
		Return([]dns.RR{
			srvRecord(query, "node..broken.", 9300),
			srvRecord(query, "node1.cluster.example.", 9300),
			srvRecord(query, "node2.cluster.example.", 9301),
		}, nil)
	s.resolver.On("Lookup", mock.Anything, "node1.cluster.example.", dns.TypeA).
		Return(nil, fmt.Errorf("exchange with 10.0.0.2:53: i/o timeout"))
	s.resolver.On("Lookup", mock.Anything, "node1.cluster.example", dns.TypeA).
		Return(nil, fmt.Errorf("exchange with 10.0.0.2:53: i/o timeout"))
	s.resolver.On("Lookup", mock.Anything, "node2.cluster.example.", dns.TypeA).
		Return([]dns.RR{aRecord("node2.cluster.example", "10.0.0.7")}, nil)

	endpoints := s.engine.Resolve(s.ctx, query)

	s.Equal([]string{"10.0.0.7:9301"}, endpointStrings(endpoints))
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

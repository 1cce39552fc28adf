package mocks

import (
	"context"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/mock"

	"github.com/lc/srvdisc/internal/dnsresolver"
)

var _ dnsresolver.Resolver = (*MockResolver)(nil)

// MockResolver is a mock implementation of the dnsresolver.Resolver interface.
// It is built using testify/mock and is shared by the srv and discovery tests.
type MockResolver struct {
	mock.Mock
}

// Lookup mocks the Lookup method.
func (m *MockResolver) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	args := m.Called(ctx, name, qtype)
	// Need to handle potential nil slice return
	var records []dns.RR
	if args.Get(0) != nil {
		records = args.Get(0).([]dns.RR)
	}
	return records, args.Error(1)
}

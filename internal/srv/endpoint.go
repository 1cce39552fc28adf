package srv

import (
	"net"
	"strconv"
)

// Endpoint is a single resolved peer address. Addr is always an IP
// literal, either lifted straight from an SRV target or resolved from
// the target's A records.
type Endpoint struct {
	Addr string
	Port uint16
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Addr, strconv.Itoa(int(e.Port)))
}

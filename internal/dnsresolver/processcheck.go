package dnsresolver

import (
	"strings"

	"github.com/mitchellh/go-ps"
)

// listProcesses is swappable in tests.
var listProcesses = ps.Processes

// Process names that indicate a DNS daemon is serving loopback queries on
// this host. "systemd-resolve" matches both the truncated comm form and
// the full executable name by prefix.
var _localResolverDaemons = []string{
	"systemd-resolve",
	"dnsmasq",
	"unbound",
	"coredns",
	"named",
}

// DetectLocalResolver reports the first local resolver daemon found in the
// process table. It returns false both when none is running and when the
// process table cannot be read.
func DetectLocalResolver() (string, bool) {
	procs, err := listProcesses()
	if err != nil {
		return "", false
	}

	for _, proc := range procs {
		name := proc.Executable()
		for _, daemon := range _localResolverDaemons {
			if len(name) >= len(daemon) && strings.EqualFold(name[:len(daemon)], daemon) {
				return name, true
			}
		}
	}
	return "", false
}

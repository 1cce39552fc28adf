// Command `srvdisc` is the operator CLI for SRV-based cluster peer discovery.
//
// srvdisc resolves a DNS SRV query into the cluster peers it advertises:
// one SRV lookup for the query, then one A lookup per target hostname,
// yielding ip:port endpoints in record order.
//
// Usage:
//
//	srvdisc resolve [query]  - Resolve a discovery query to peer endpoints
//	srvdisc peers [query]    - Run a full discovery round and list peers
//	srvdisc doctor           - Inspect resolver configuration and environment
//	srvdisc config init      - Write a default configuration file
//	srvdisc version          - Show version information
//
// Examples:
//
//	srvdisc resolve _peers._tcp.cluster.example
//	srvdisc peers
//	srvdisc doctor
//
// When the query argument is omitted, the configured discovery.srv.query
// is used. DNS servers, transport protocol, and exchange timeout come from
// ~/.srvdisc/config.yaml; with no servers configured the system resolver
// from /etc/resolv.conf answers the queries.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lc/srvdisc/internal/buildinfo"
	"github.com/lc/srvdisc/internal/config"
	"github.com/lc/srvdisc/internal/dnsresolver"
	"github.com/lc/srvdisc/internal/srv"
	"github.com/lc/srvdisc/pkg/discovery"
)

func main() {
	provider := config.New()
	cfg, err := provider.Load()
	if err != nil {
		log.Printf("config error: %v (continuing with defaults)", err)
		cfg = config.Default()
	}

	root := &cobra.Command{
		Use:   "srvdisc",
		Short: "SRV-based cluster peer discovery CLI",
		Long: `srvdisc discovers cluster peers through DNS SRV records.
It resolves a configured (or explicitly given) SRV query, follows each
target hostname to its IPv4 addresses, and reports the resulting peer
endpoints in the order the DNS server returned them.`,
	}
	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show version information for the srvdisc CLI.`,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}
	// ---- resolve command ----
	resolveCmd := &cobra.Command{
		Use:   "resolve [query]",
		Short: "Resolve a discovery query to peer endpoints",
		Long: `Resolve an SRV discovery query to peer endpoints.
Each SRV record's target is followed to its IPv4 addresses; literal IP
targets are taken as-is. The endpoint list keeps DNS answer order and
duplicates, exactly as a joining node would see them.

Examples:
  srvdisc resolve                                Use the configured query
  srvdisc resolve _peers._tcp.cluster.example    Resolve an explicit query`,
		Example: "srvdisc resolve _peers._tcp.cluster.example",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			endpoints := engine.Resolve(ctx, queryArg(cfg, args))
			if len(endpoints) == 0 {
				color.Yellow("No endpoints resolved.")
				return nil
			}

			// Create a new table
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"#", "Address", "Port"})
			table.SetHeaderColor(
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
			)
			table.SetBorder(false)
			table.SetColumnColor(
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
				tablewriter.Colors{tablewriter.FgGreenColor},
				tablewriter.Colors{tablewriter.FgYellowColor},
			)

			for i, ep := range endpoints {
				table.Append([]string{strconv.Itoa(i + 1), ep.Addr, strconv.Itoa(int(ep.Port))})
			}

			color.New(color.Bold).Println("RESOLVED ENDPOINTS:")
			table.Render()
			return nil
		},
	}

	// ---- peers command ----
	peersCmd := &cobra.Command{
		Use:   "peers [query]",
		Short: "Run a discovery round and list cluster peers",
		Long: `Run one full discovery round and list the cluster peers it found.
On top of SRV resolution this expands every endpoint to the addresses a
node would dial and assigns each peer its discovery identity.`,
		Example: "srvdisc peers",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			disc := discovery.New(engine, queryArg(cfg, args))

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			peers := disc.Peers(ctx)
			if len(peers) == 0 {
				color.Yellow("No peers discovered.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Peer ID", "Address", "Min Version"})
			table.SetHeaderColor(
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
			)
			table.SetBorder(false)
			table.SetColumnColor(
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
				tablewriter.Colors{tablewriter.FgGreenColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
			)

			for _, p := range peers {
				table.Append([]string{p.ID, p.Addr, p.MinVersion})
			}

			color.New(color.Bold).Println("DISCOVERED PEERS:")
			table.Render()
			if snap := disc.Last(); snap != nil {
				fmt.Printf("round %d (%s) at %s\n", snap.Round, snap.ID, snap.Taken.Format(time.RFC3339))
			}
			return nil
		},
	}

	// ---- doctor command ----
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Inspect resolver configuration and environment",
		Long: `Check the discovery setup: the active configuration, the DNS servers
that will answer discovery queries, and whether a local caching resolver
daemon is running in front of them.`,
		Example: "srvdisc doctor",
		RunE: func(_ *cobra.Command, _ []string) error {
			color.New(color.Bold).Println("CONFIGURATION:")
			fmt.Printf("  query:    %s\n", valueOrNotSet(cfg.Discovery.SRV.Query))
			fmt.Printf("  servers:  %s\n", serversOrSystem(cfg.Discovery.SRV.Servers))
			fmt.Printf("  protocol: %s\n", cfg.Discovery.SRV.Protocol)
			fmt.Printf("  timeout:  %s\n", cfg.Discovery.SRV.Timeout)

			color.New(color.Bold).Println("\nSYSTEM RESOLVERS:")
			servers, err := dnsresolver.SystemServers()
			if err != nil {
				color.Yellow("  could not read resolver config: %v", err)
			} else {
				for _, s := range servers {
					fmt.Printf("  %s\n", s)
				}
			}

			color.New(color.Bold).Println("\nLOCAL RESOLVER DAEMON:")
			if name, ok := dnsresolver.DetectLocalResolver(); ok {
				color.Green("  ✓ %s is running; loopback nameservers are answered locally", name)
			} else {
				fmt.Println("  none detected")
			}
			return nil
		},
	}

	// ---- config command ----
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the srvdisc configuration file",
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file to ~/.srvdisc/config.yaml.
Refuses to overwrite an existing file.`,
		Example: "srvdisc config init",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := provider.WriteDefault(); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Println("✓ Wrote default configuration")
			return nil
		},
	}
	configCmd.AddCommand(configInitCmd)

	root.AddCommand(resolveCmd, peersCmd, doctorCmd, configCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// queryArg prefers an explicit command-line query over the configured one.
func queryArg(cfg *config.Config, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return cfg.Discovery.SRV.Query
}

func buildEngine(cfg *config.Config) (*srv.Engine, error) {
	proto, err := dnsresolver.ParseProtocol(cfg.Discovery.SRV.Protocol)
	if err != nil {
		return nil, fmt.Errorf("invalid protocol: %w", err)
	}
	resolver := dnsresolver.Build(
		cfg.Discovery.SRV.Servers,
		proto,
		dnsresolver.WithTimeout(cfg.Discovery.SRV.Timeout),
	)
	return srv.New(resolver), nil
}

func valueOrNotSet(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not set)"
	}
	return s
}

func serversOrSystem(servers []string) string {
	if len(servers) == 0 {
		return "(system default)"
	}
	return strings.Join(servers, ", ")
}

// Package config provides configuration management for srvdisc.
//
// The package uses a Provider interface to abstract configuration loading, with the
// primary implementation being filesystem-based configuration via YAML files.
//
// # Configuration Structure
//
// Configuration is structured as follows:
//
//	discovery:
//	  srv:
//	    query: _peers._tcp.cluster.example  # SRV name to resolve
//	    servers:                            # explicit DNS servers, host[:port]
//	      - 10.0.0.2
//	      - 10.0.0.3:5353
//	    protocol: tcp                       # DNS transport (tcp or udp)
//	    timeout: 5s                         # per-exchange timeout
//
// # Basic Usage
//
// Load configuration using the default path (~/.srvdisc/config.yaml):
//
//	provider := config.New()
//	cfg, err := provider.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Load configuration from a specific path:
//
//	provider := config.NewWithPath(filesys.OS(), "/etc/srvdisc/config.yaml")
//	cfg, err := provider.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration Validation
//
// The package performs validation of loaded configuration:
//   - Protocol must be tcp or udp
//   - DNS timeout must be at least 1 second
//   - Server addresses must not be blank
//
// The query is deliberately not required: an empty query means resolution is
// a no-op for that round, reported by the engine at runtime rather than
// rejected at load time.
//
// # Default Configuration
//
// If no configuration file exists, the following defaults are used:
//   - Query: empty (resolution disabled until configured)
//   - Servers: none (system default resolver)
//   - Protocol: tcp
//   - DNS Timeout: 5 seconds
//
// Fields omitted from an existing file fall back to the same per-key
// defaults before validation runs.
//
// # Thread Safety
//
// Configuration loading is thread-safe. However, once loaded, the Config
// struct should be treated as immutable. If configuration changes are needed,
// a new Config should be loaded.
//
// # Error Handling
//
// The package defines several error types:
//   - ErrInvalidConfig: Configuration validation failed
//   - ErrNoConfig: Configuration file not found (returns defaults)
//   - ErrConfigExists: WriteDefault refused to overwrite an existing file
//
// Example configuration file:
//
//	# ~/.srvdisc/config.yaml
//	discovery:
//	  srv:
//	    query: _peers._tcp.cluster.example
//	    protocol: tcp
//	    timeout: 5s
//
// The package is designed to be extensible, allowing for additional
// configuration providers to be implemented (e.g., environment variables,
// remote configuration services) by implementing the Provider interface.
package config

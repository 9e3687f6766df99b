package main

import "flag"

// Config holds the daemon configuration.
type Config struct {
	DataPath      string // Directory for the persistent database; empty runs in-memory
	ListenAddress string // HTTP API listen address
	GenesisPath   string // Path to the genesis document, only used on first start
	OwnerHex      string // Hex registry owner for a bare first start without genesis
	LogLevel      string // Log level (debug, info, warn, error)
}

// parseFlags parses command line flags into a Config.
func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DataPath, "data", "./data", "directory for the persistent database (empty: in-memory)")
	flag.StringVar(&cfg.ListenAddress, "listen", ":8080", "HTTP API listen address")
	flag.StringVar(&cfg.GenesisPath, "genesis", "", "genesis document to seed an empty registry")
	flag.StringVar(&cfg.OwnerHex, "owner", "", "hex registry owner for a bare start without a genesis document")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flag.Parse()

	return cfg
}

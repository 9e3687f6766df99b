package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"ValRoster/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg := parseFlags()
	logger.Init(cfg.LogLevel)

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg, node)

	return node.Run()
}

// printStartupInfo displays the daemon configuration at startup.
func printStartupInfo(cfg *Config, node *Node) {
	data := cfg.DataPath
	if data == "" {
		data = "in-memory"
	}

	logger.Info("starting roster daemon",
		"listen", cfg.ListenAddress,
		"data", data,
		"owner", hex.EncodeToString(node.owner[:]),
		"counter", node.reg.Counter(),
		"records", node.reg.Count(),
	)
}

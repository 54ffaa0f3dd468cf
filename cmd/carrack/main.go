// Package main provides the carrack binary: the control plane that deploys
// WAR and EAR artifacts to remote application containers.
//
// Usage:
//
//	carrack serve [-config path]     - Run the HTTP control plane
//	carrack deploy [flags]           - Perform a one-shot deployment
//	carrack version                  - Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return ExitConfigError
	}

	switch os.Args[1] {
	case "version", "-version", "--version":
		fmt.Printf("carrack %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	case "serve":
		return runServe(os.Args[2:])
	case "deploy":
		return runDeploy(os.Args[2:])
	default:
		usage()
		return ExitConfigError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: carrack <serve|deploy|version> [flags]")
}

// runServe starts the control plane HTTP server.
func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("starting carrack",
		"version", Version,
		"config", *configPath,
	)

	server, err := NewServer(cfg, logger)
	if err != nil {
		if sErr, ok := err.(*ServerError); ok {
			logger.Error("failed to create server",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("failed to create server", "error", err)
		return ExitConfigError
	}

	ctx := context.Background()
	if err := server.Start(ctx); err != nil {
		if sErr, ok := err.(*ServerError); ok {
			logger.Error("server error",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("server error", "error", err)
		return ExitConfigError
	}

	return ExitSuccess
}

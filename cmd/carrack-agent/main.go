// Package main provides the carrack-agent binary that runs on the node
// holding the artifact file.
//
// The agent performs the actual container deployment next to the artifact.
// The carrack control plane communicates with the agent via SSH exec,
// exchanging JSON input/output on stdin/stdout. Log lines go to stderr.
//
// Usage:
//
//	carrack-agent <command>
//
// Commands:
//
//	version  - Show agent version
//	deploy   - Deploy an artifact (JSON request from stdin)
package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"runtime"

	"github.com/carrackhq/carrack/internal/core/agent"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		outputError("usage", agent.ErrCodeInvalidInput, "usage: carrack-agent <command>")
		os.Exit(2)
	}

	cmd := os.Args[1]

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := dispatch(cmd, logger); err != nil {
		// Error already written to stdout by command handler
		os.Exit(1)
	}
}

// outputSuccess writes a success response to stdout.
func outputSuccess(data interface{}) {
	resp, err := agent.NewSuccessResponse(data)
	if err != nil {
		outputError("internal", agent.ErrCodeInternal, err.Error())
		return
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// outputError writes an error response to stdout.
func outputError(command, code, message string) {
	resp := agent.NewErrorResponse(command, code, message)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// versionCmd handles the "version" command.
func versionCmd() error {
	info := agent.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	outputSuccess(info)
	return nil
}

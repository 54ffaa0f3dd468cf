package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carrackhq/carrack/internal/core/agent"
	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
	"github.com/carrackhq/carrack/internal/shell/deployer"
)

// dispatch routes the command to the appropriate handler.
func dispatch(cmd string, logger *slog.Logger) error {
	switch cmd {
	case "version":
		return versionCmd()
	case "deploy":
		return deployCmd(logger)
	default:
		outputError(cmd, agent.ErrCodeInvalidInput, "unknown command: "+cmd)
		return errUnknownCommand
	}
}

// errUnknownCommand is returned for unknown commands.
var errUnknownCommand = errors.New("unknown command")

// deployCmd handles the "deploy" command.
// Reads a DeployRequest JSON from stdin and writes the result envelope to
// stdout. SIGINT and SIGTERM cancel the retry loop cooperatively; a wait
// interrupted that way reports a cancelled result, not an error.
func deployCmd(logger *slog.Logger) error {
	var req agent.DeployRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		outputError("deploy", agent.ErrCodeInvalidInput, "invalid JSON input: "+err.Error())
		return err
	}

	if err := req.Validate(); err != nil {
		outputError("deploy", agent.ErrCodeInvalidInput, err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv := deployer.NewInvoker(logger)
	result, err := inv.Invoke(ctx, req)
	if err != nil {
		outputError("deploy", errorCode(err), err.Error())
		return err
	}

	outputSuccess(result)
	return nil
}

// errorCode maps an invocation error to its protocol error code so the
// control plane can reconstruct the error kind across the SSH boundary.
func errorCode(err error) string {
	switch {
	case errors.Is(err, corecontainer.ErrUnknownVariant):
		return agent.ErrCodeUnknownVariant
	case errors.Is(err, deployment.ErrUnsupportedArtifact):
		return agent.ErrCodeUnsupportedArtifact
	case corecontainer.IsContainerError(err):
		return agent.ErrCodeContainerError
	default:
		return agent.ErrCodeInternal
	}
}

// Package remote dispatches deploy requests to the node holding the
// artifact. The agent binary must be present on the node (EnsureAgent
// uploads it); each dispatch is one SSH exec with JSON on stdin/stdout and
// agent log lines relayed from stderr into the local logging sink.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/carrackhq/carrack/internal/core/agent"
	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
	"github.com/carrackhq/carrack/internal/core/domain"
	"golang.org/x/crypto/ssh"
)

// SSHDispatcher runs agent commands on a remote node via SSH exec.
type SSHDispatcher struct {
	node           *domain.Node
	sshClient      *ssh.Client
	signer         ssh.Signer
	agentPath      string        // Path to agent binary on the remote node
	timeout        time.Duration // Command timeout
	connectTimeout time.Duration
	logger         *slog.Logger
	mu             sync.Mutex // Protects sshClient
}

// SSHConfig configures the SSH dispatcher.
type SSHConfig struct {
	AgentPath      string        // Default: ~/.carrack/agent
	CommandTimeout time.Duration // Default: 10 minutes (covers the retry backoffs)
	ConnectTimeout time.Duration // Default: 10 seconds
}

// DefaultSSHConfig returns the default configuration.
func DefaultSSHConfig() SSHConfig {
	return SSHConfig{
		AgentPath:      "~/.carrack/agent",
		CommandTimeout: 10 * time.Minute,
		ConnectTimeout: 10 * time.Second,
	}
}

// NewSSHDispatcher creates an SSH dispatcher for one node. The privateKey
// is the PEM-encoded SSH private key.
func NewSSHDispatcher(node *domain.Node, privateKey []byte, config SSHConfig, logger *slog.Logger) (*SSHDispatcher, error) {
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse SSH private key: %w", err)
	}

	if config.AgentPath == "" {
		config.AgentPath = "~/.carrack/agent"
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = 10 * time.Minute
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SSHDispatcher{
		node:           node,
		signer:         signer,
		agentPath:      config.AgentPath,
		timeout:        config.CommandTimeout,
		connectTimeout: config.ConnectTimeout,
		logger:         logger.With("node", node.SSHHost),
	}, nil
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (d *SSHDispatcher) connect(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sshClient != nil {
		// Check if connection is still alive
		_, _, err := d.sshClient.SendRequest("keepalive@carrack", true, nil)
		if err == nil {
			return nil
		}
		// Connection dead, reconnect
		d.sshClient.Close()
		d.sshClient = nil
	}

	addr := net.JoinHostPort(d.node.SSHHost, strconv.Itoa(d.node.SSHPort))
	client, err := ssh.Dial("tcp", addr, d.clientConfig())
	if err != nil {
		return fmt.Errorf("SSH dial %s: %w", addr, err)
	}

	d.sshClient = client
	return nil
}

// clientConfig builds the SSH client configuration for this node.
func (d *SSHDispatcher) clientConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            d.node.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(d.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: Store and verify host keys
		Timeout:         d.connectTimeout,
	}
}

// Close closes the SSH connection.
func (d *SSHDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sshClient != nil {
		err := d.sshClient.Close()
		d.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Agent Deployment
// =============================================================================

// EnsureAgent ensures the agent binary is present and up-to-date on the
// remote node, uploading it if needed.
func (d *SSHDispatcher) EnsureAgent(ctx context.Context, agentBinary []byte, expectedVersion string) error {
	if err := d.connect(ctx); err != nil {
		return err
	}

	currentVersion, err := d.getAgentVersion(ctx)
	if err == nil && currentVersion == expectedVersion {
		return nil
	}

	return d.uploadAgent(ctx, agentBinary)
}

// getAgentVersion returns the version of the agent binary on the node.
func (d *SSHDispatcher) getAgentVersion(ctx context.Context) (string, error) {
	d.mu.Lock()
	session, err := d.sshClient.NewSession()
	d.mu.Unlock()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() {
		done <- session.Run(d.agentPath + " version")
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Second):
		return "", fmt.Errorf("timeout checking agent version")
	case err := <-done:
		if err != nil {
			return "", err
		}
	}

	resp, err := agent.ParseResponse(stdout.Bytes())
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("agent version check failed")
	}

	var version agent.VersionInfo
	if err := resp.UnmarshalData(&version); err != nil {
		return "", err
	}
	return version.Version, nil
}

// uploadAgent writes the agent binary to the remote node.
func (d *SSHDispatcher) uploadAgent(ctx context.Context, binary []byte) error {
	d.mu.Lock()
	session, err := d.sshClient.NewSession()
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	cmd := uploadCommand(d.agentPath)

	session.Stdin = bytes.NewReader(binary)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(60 * time.Second): // Allow more time for upload
		return fmt.Errorf("timeout uploading agent binary")
	case err := <-done:
		if err != nil {
			return fmt.Errorf("upload agent: %w", err)
		}
	}

	d.logger.Info("agent binary uploaded", "path", d.agentPath)
	return nil
}

// uploadCommand builds the shell command that writes the agent binary to
// the same path later dispatches execute, creating the parent directory
// first. The binary arrives on stdin via cat; avoids tilde expansion
// surprises in scp-style transfers.
func uploadCommand(agentPath string) string {
	agentDir := path.Dir(agentPath)
	return fmt.Sprintf("mkdir -p %s && cat > %s && chmod +x %s", agentDir, agentPath, agentPath)
}

// =============================================================================
// Dispatch
// =============================================================================

// Dispatch executes one deploy request on the remote node and returns its
// typed result. Agent log lines arrive over stderr while the command runs
// and are relayed into the local logging sink as they appear.
func (d *SSHDispatcher) Dispatch(ctx context.Context, req agent.DeployRequest) (*agent.DeployResult, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	session, err := d.sshClient.NewSession()
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create SSH session: %w", err)
	}
	defer session.Close()

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	session.Stdin = bytes.NewReader(input)

	var stdout bytes.Buffer
	session.Stdout = &stdout

	relay := newLineRelay(d.logger)
	session.Stderr = relay
	defer relay.Flush()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(d.agentPath + " deploy")
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.timeout):
		return nil, fmt.Errorf("deploy timeout after %v", d.timeout)
	case err := <-done:
		// Parse the envelope even on a nonzero exit - the agent writes
		// JSON errors before exiting.
		resp, parseErr := agent.ParseResponse(stdout.Bytes())
		if parseErr != nil {
			if err != nil {
				return nil, fmt.Errorf("agent command failed: %w, output: %s", err, stdout.String())
			}
			return nil, fmt.Errorf("parse response: %w", parseErr)
		}
		if !resp.Success {
			return nil, translateError(resp.Error)
		}

		var result agent.DeployResult
		if err := resp.UnmarshalData(&result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		return &result, nil
	}
}

// translateError converts an agent error into the matching local error so
// callers can classify it with errors.Is. The agent-side message is kept
// verbatim.
func translateError(errInfo *agent.ErrorInfo) error {
	switch errInfo.Code {
	case agent.ErrCodeUnknownVariant:
		return fmt.Errorf("%w: %s", corecontainer.ErrUnknownVariant, errInfo.Message)
	case agent.ErrCodeUnsupportedArtifact:
		return fmt.Errorf("%w: %s", deployment.ErrUnsupportedArtifact, errInfo.Message)
	case agent.ErrCodeContainerError:
		return corecontainer.NewContainerError(errInfo.Command, "", errInfo.Message, nil)
	default:
		return fmt.Errorf("agent %s failed: %s", errInfo.Command, errInfo.Message)
	}
}

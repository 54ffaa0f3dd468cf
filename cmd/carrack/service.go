package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/carrackhq/carrack/internal/core/domain"
	"github.com/carrackhq/carrack/internal/shell/deployer"
	"github.com/carrackhq/carrack/internal/shell/remote"
	"github.com/carrackhq/carrack/internal/shell/store"
)

// =============================================================================
// Deploy Service
// =============================================================================

// deployService routes deploy requests to the node owning the artifact.
// Requests without a node name run in-process; named nodes are reached over
// SSH with one cached dispatcher per node.
type deployService struct {
	cfg    *Config
	store  store.Store // may be nil
	logger *slog.Logger

	mu          sync.Mutex
	local       *remote.LocalDispatcher
	dispatchers map[string]*remote.SSHDispatcher
	privateKey  []byte
	agentBinary []byte
}

func newDeployService(cfg *Config, s store.Store, logger *slog.Logger) *deployService {
	return &deployService{
		cfg:         cfg,
		store:       s,
		logger:      logger,
		local:       remote.NewLocalDispatcher(logger),
		dispatchers: make(map[string]*remote.SSHDispatcher),
	}
}

// Run executes one deployment request, applying configured container
// defaults for settings the request leaves unset.
func (s *deployService) Run(ctx context.Context, req deployer.Request) (*domain.Deployment, error) {
	if req.Variant == "" {
		req.Variant = s.cfg.Container.Variant
	}
	if req.Attempts == 0 {
		req.Attempts = s.cfg.Deploy.Attempts
	}
	req.Settings = mergeSettings(s.cfg.Container.Settings, req.Settings)

	dispatcher, err := s.dispatcherFor(ctx, req.NodeName)
	if err != nil {
		return nil, err
	}

	orch := deployer.NewOrchestrator(dispatcher, s.recorder(), s.logger)
	return orch.Run(ctx, req)
}

func (s *deployService) recorder() deployer.Recorder {
	if s.store == nil {
		return nil
	}
	return s.store
}

// dispatcherFor returns the dispatcher for a node name, creating and
// caching an SSH dispatcher on first use. An empty name means local.
func (s *deployService) dispatcherFor(ctx context.Context, nodeName string) (deployer.Dispatcher, error) {
	if nodeName == "" {
		return s.local, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.dispatchers[nodeName]; ok {
		return d, nil
	}

	nodeCfg, ok := s.cfg.Node(nodeName)
	if !ok {
		return nil, fmt.Errorf("unknown node %q", nodeName)
	}

	if s.privateKey == nil {
		if s.cfg.SSH.KeyPath == "" {
			return nil, fmt.Errorf("ssh.key_path is required for node %q", nodeName)
		}
		key, err := os.ReadFile(s.cfg.SSH.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read SSH key: %w", err)
		}
		s.privateKey = key
	}

	node := &domain.Node{
		Name:    nodeCfg.Name,
		SSHHost: nodeCfg.Host,
		SSHPort: nodeCfg.Port,
		SSHUser: nodeCfg.User,
	}

	d, err := remote.NewSSHDispatcher(node, s.privateKey, remote.SSHConfig{
		AgentPath:      s.cfg.SSH.AgentPath,
		CommandTimeout: s.cfg.SSH.CommandTimeout,
		ConnectTimeout: s.cfg.SSH.ConnectTimeout,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.ensureAgent(ctx, d); err != nil {
		d.Close()
		return nil, err
	}

	s.dispatchers[nodeName] = d
	return d, nil
}

// ensureAgent uploads the local agent binary to the node when one is
// configured and the node's agent is missing or outdated.
func (s *deployService) ensureAgent(ctx context.Context, d *remote.SSHDispatcher) error {
	if s.cfg.SSH.AgentBinaryPath == "" {
		return nil
	}

	if s.agentBinary == nil {
		binary, err := os.ReadFile(s.cfg.SSH.AgentBinaryPath)
		if err != nil {
			return fmt.Errorf("read agent binary: %w", err)
		}
		s.agentBinary = binary
	}

	// Both binaries are built from the same tree, so the agent on the node
	// is current when its version matches ours.
	return d.EnsureAgent(ctx, s.agentBinary, Version)
}

// Close closes all cached SSH dispatchers.
func (s *deployService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, d := range s.dispatchers {
		if err := d.Close(); err != nil {
			s.logger.Error("failed to close node connection", "node", name, "error", err)
		}
		delete(s.dispatchers, name)
	}
}

// mergeSettings overlays request settings on configured defaults.
func mergeSettings(defaults, overrides map[string]string) map[string]string {
	if len(defaults) == 0 {
		return overrides
	}
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

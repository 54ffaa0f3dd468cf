package domain

import (
	"errors"
	"net"
)

// =============================================================================
// Node Errors
// =============================================================================

var (
	ErrSSHHostRequired = errors.New("SSH host is required")
	ErrSSHHostInvalid  = errors.New("SSH host must be a valid hostname or IP address")
	ErrSSHPortInvalid  = errors.New("SSH port must be between 1 and 65535")
	ErrSSHUserRequired = errors.New("SSH user is required")
)

// =============================================================================
// Node
// =============================================================================

// Node identifies the machine holding the artifact file. Deployments
// execute there, via the agent, rather than streaming the artifact back to
// the control plane.
type Node struct {
	Name    string `json:"name,omitempty"`
	SSHHost string `json:"ssh_host"`
	SSHPort int    `json:"ssh_port"`
	SSHUser string `json:"ssh_user"`
}

// Validate checks the node's SSH coordinates.
func (n *Node) Validate() error {
	if n.SSHHost == "" {
		return ErrSSHHostRequired
	}
	if net.ParseIP(n.SSHHost) == nil && !isValidHostname(n.SSHHost) {
		return ErrSSHHostInvalid
	}
	if n.SSHPort < 1 || n.SSHPort > 65535 {
		return ErrSSHPortInvalid
	}
	if n.SSHUser == "" {
		return ErrSSHUserRequired
	}
	return nil
}

// isValidHostname performs a light RFC 1123 shape check.
func isValidHostname(host string) bool {
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	for _, label := range splitLabels(host) {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		for i, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			case r == '-' && i != 0 && i != len(label)-1:
			default:
				return false
			}
		}
	}
	return true
}

func splitLabels(host string) []string {
	var labels []string
	start := 0
	for i := 0; i <= len(host); i++ {
		if i == len(host) || host[i] == '.' {
			labels = append(labels, host[start:i])
			start = i + 1
		}
	}
	return labels
}

// Package agent defines the protocol for communication between the carrack
// control plane and the carrack-agent binary that runs on the node holding
// the artifact file.
//
// Artifacts can be large, so deployment executes where the file lives
// instead of streaming the archive back to the control plane. The agent is
// invoked via SSH exec: a JSON request on stdin, a JSON response envelope
// on stdout, human-readable log lines on stderr.
//
// This package contains pure types with no I/O.
package agent

import (
	"encoding/json"
	"fmt"
)

// Version is the current agent protocol version.
// Bump MAJOR for breaking changes, MINOR for new commands, PATCH for fixes.
const Version = "1.0.0"

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the standard envelope for all agent command responses.
// All commands return this structure as JSON to stdout.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains error details when Success is false.
type ErrorInfo struct {
	Command string `json:"command"`        // Command that failed
	Code    string `json:"code,omitempty"` // Error code (e.g., "unknown_variant")
	Message string `json:"message"`        // Human-readable error message
}

// NewSuccessResponse creates a successful response with data.
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		rawData = bytes
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(command, code, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Command: command,
			Code:    code,
			Message: message,
		},
	}
}

// ParseResponse parses a JSON response from the agent.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// UnmarshalData unmarshals the response data into the target type.
func (r *Response) UnmarshalData(target interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, target)
}

// =============================================================================
// Error Codes
// =============================================================================

// Standard error codes for agent responses.
const (
	ErrCodeUnknownVariant      = "unknown_variant"
	ErrCodeUnsupportedArtifact = "unsupported_artifact"
	ErrCodeContainerError      = "container_error"
	ErrCodeInvalidInput        = "invalid_input"
	ErrCodeInternal            = "internal"
)

// =============================================================================
// Deploy Command Types
// =============================================================================

// DeployRequest carries everything the agent needs to configure, package,
// and deploy one artifact. It is the serializable unit of work: a value
// type with no implicit captured state.
type DeployRequest struct {
	// Variant selects the container driver (e.g. "tomcat9x").
	Variant string `json:"variant"`

	// ArtifactPath is the artifact location on the agent's machine.
	ArtifactPath string `json:"artifact_path"`

	// ContextPath is the raw, unexpanded context path for WAR artifacts.
	ContextPath string `json:"context_path,omitempty"`

	// Attempts bounds the retry loop; must be >= 1.
	Attempts int `json:"attempts"`

	// Environment is the build environment snapshot used for macro
	// expansion of the context path and container settings.
	Environment map[string]string `json:"environment,omitempty"`

	// Settings are the raw, unexpanded container settings (endpoint URL,
	// credentials) the adapter turns into a runtime configuration.
	Settings map[string]string `json:"settings,omitempty"`
}

// Validate checks the request for structural problems before execution.
func (r *DeployRequest) Validate() error {
	if r.Variant == "" {
		return fmt.Errorf("variant is required")
	}
	if r.ArtifactPath == "" {
		return fmt.Errorf("artifact_path is required")
	}
	if r.Attempts < 1 {
		return fmt.Errorf("attempts must be >= 1, got %d", r.Attempts)
	}
	return nil
}

// DeployResult is returned by the "deploy" command.
type DeployResult struct {
	// Deployed reports whether the artifact reached the container.
	Deployed bool `json:"deployed"`

	// Skipped is set when the artifact file did not exist. A missing file
	// is logged, not failed.
	Skipped bool `json:"skipped,omitempty"`

	// Cancelled is set when the retry loop was interrupted during its
	// backoff wait. No error is raised; the outcome is indeterminate.
	Cancelled bool `json:"cancelled,omitempty"`

	Container    string `json:"container,omitempty"`
	Context      string `json:"context,omitempty"`
	AttemptsUsed int    `json:"attempts_used,omitempty"`
}

// VersionInfo is returned by the "version" command.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

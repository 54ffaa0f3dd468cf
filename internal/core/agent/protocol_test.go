package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Envelope Tests
// =============================================================================

func TestSuccessResponse_RoundTrip(t *testing.T) {
	result := DeployResult{Deployed: true, Container: "Tomcat 9.x", AttemptsUsed: 2}
	resp, err := NewSuccessResponse(result)
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	parsed, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.True(t, parsed.Success)
	assert.Nil(t, parsed.Error)

	var got DeployResult
	require.NoError(t, parsed.UnmarshalData(&got))
	assert.Equal(t, result, got)
}

func TestErrorResponse_RoundTrip(t *testing.T) {
	resp := NewErrorResponse("deploy", ErrCodeContainerError, "connection refused")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	parsed, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.False(t, parsed.Success)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "deploy", parsed.Error.Command)
	assert.Equal(t, ErrCodeContainerError, parsed.Error.Code)
	assert.Equal(t, "connection refused", parsed.Error.Message)
}

func TestParseResponse_Invalid(t *testing.T) {
	_, err := ParseResponse([]byte("not json"))
	assert.Error(t, err)
}

func TestUnmarshalData_NilData(t *testing.T) {
	resp := &Response{Success: true}
	var got DeployResult
	assert.NoError(t, resp.UnmarshalData(&got))
	assert.False(t, got.Deployed)
}

// =============================================================================
// DeployRequest Tests
// =============================================================================

func TestDeployRequest_Validate(t *testing.T) {
	req := DeployRequest{Variant: "tomcat9x", ArtifactPath: "/builds/app.war", Attempts: 4}
	assert.NoError(t, req.Validate())
}

func TestDeployRequest_Validate_MissingVariant(t *testing.T) {
	req := DeployRequest{ArtifactPath: "/builds/app.war", Attempts: 1}
	assert.Error(t, req.Validate())
}

func TestDeployRequest_Validate_MissingArtifact(t *testing.T) {
	req := DeployRequest{Variant: "tomcat9x", Attempts: 1}
	assert.Error(t, req.Validate())
}

func TestDeployRequest_Validate_ZeroAttempts(t *testing.T) {
	req := DeployRequest{Variant: "tomcat9x", ArtifactPath: "/builds/app.war"}
	assert.Error(t, req.Validate())
}

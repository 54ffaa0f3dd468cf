package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Package Tests
// =============================================================================

func TestPackage_WAR(t *testing.T) {
	d, err := Package("/builds/42/app.war", "/ctx")
	require.NoError(t, err)
	assert.Equal(t, KindWAR, d.Kind)
	assert.Equal(t, "/builds/42/app.war", d.Path)
	assert.Equal(t, "/ctx", d.Context)
}

func TestPackage_WAR_UppercaseExtension(t *testing.T) {
	d, err := Package("app.WAR", "/ctx")
	require.NoError(t, err)
	assert.Equal(t, KindWAR, d.Kind)
	assert.Equal(t, "/ctx", d.Context)
}

func TestPackage_WAR_EmptyContext(t *testing.T) {
	d, err := Package("app.war", "")
	require.NoError(t, err)
	assert.Equal(t, KindWAR, d.Kind)
	assert.Empty(t, d.Context)
}

func TestPackage_EAR_IgnoresContext(t *testing.T) {
	d, err := Package("app.ear", "/ignored")
	require.NoError(t, err)
	assert.Equal(t, KindEAR, d.Kind)
	assert.Empty(t, d.Context)
}

func TestPackage_EAR_MixedCase(t *testing.T) {
	d, err := Package("app.Ear", "")
	require.NoError(t, err)
	assert.Equal(t, KindEAR, d.Kind)
}

func TestPackage_UnsupportedExtension(t *testing.T) {
	_, err := Package("app.zip", "/ctx")
	assert.ErrorIs(t, err, ErrUnsupportedArtifact)
}

func TestPackage_NoExtension(t *testing.T) {
	_, err := Package("app", "")
	assert.ErrorIs(t, err, ErrUnsupportedArtifact)
}

func TestDeployable_Name(t *testing.T) {
	d, err := Package("/builds/42/app.war", "")
	require.NoError(t, err)
	assert.Equal(t, "app.war", d.Name())
}

package deployment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// Artifact Classification
// =============================================================================

// ErrUnsupportedArtifact is returned when an artifact file has an extension
// other than .war or .ear. This is a configuration error, never retried.
var ErrUnsupportedArtifact = errors.New("unsupported artifact type")

// ArtifactKind identifies the archive format of a deployable artifact.
type ArtifactKind string

const (
	// KindWAR is a Web Archive.
	KindWAR ArtifactKind = "war"
	// KindEAR is an Enterprise Archive.
	KindEAR ArtifactKind = "ear"
)

// Deployable is a packaged artifact ready to hand to a container driver.
// Context is only meaningful for WAR deployables; it is empty for EARs.
type Deployable struct {
	Kind    ArtifactKind
	Path    string
	Context string
}

// Name returns the base file name of the artifact.
func (d Deployable) Name() string {
	return filepath.Base(d.Path)
}

// Package classifies an artifact file by its extension (case-insensitive)
// and wraps it in a Deployable. A non-empty contextPath is attached to WAR
// artifacts and ignored for EARs. Package does not check that the file
// exists or is a well-formed archive; that is the driver's concern.
func Package(path, contextPath string) (Deployable, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	switch ext {
	case "war":
		return Deployable{Kind: KindWAR, Path: path, Context: contextPath}, nil
	case "ear":
		return Deployable{Kind: KindEAR, Path: path}, nil
	default:
		return Deployable{}, fmt.Errorf("%w: %q", ErrUnsupportedArtifact, ext)
	}
}

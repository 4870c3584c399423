package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for state and lookup failures.
var (
	// ErrNotFound reports a missing named resource (profile, version, template).
	ErrNotFound = errors.New("not found")

	// ErrSyncInProgress reports a staging operation already running for a package.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrConflict reports an operation invalid in the target's current state.
	ErrConflict = errors.New("conflict")
)

// DetectionError reports that a document's type could not be determined.
// This is a caller-visible input error, never an internal fault.
type DetectionError struct {
	Namespace string
	Root      string
	Message   string
	Cause     error
}

func (e *DetectionError) Error() string {
	if e.Namespace != "" || e.Root != "" {
		return fmt.Sprintf("document type detection failed: %s (namespace=%s, root=%s)",
			e.Message, e.Namespace, e.Root)
	}
	return "document type detection failed: " + e.Message
}

func (e *DetectionError) Unwrap() error {
	return e.Cause
}

// NewDetectionError creates a detection error with structural context.
func NewDetectionError(namespace, root, message string) *DetectionError {
	return &DetectionError{Namespace: namespace, Root: root, Message: message}
}

// AssetError reports a missing or corrupt schema/rule-set/template asset.
// Distinct from document-shape violations: it fails the single request.
type AssetError struct {
	Kind    AssetKind
	Path    string
	Message string
	Cause   error
}

func (e *AssetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("asset error [%s] %s: %s (%v)", e.Kind, e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("asset error [%s] %s: %s", e.Kind, e.Path, e.Message)
}

func (e *AssetError) Unwrap() error {
	return e.Cause
}

// NewAssetError creates an asset integrity error.
func NewAssetError(kind AssetKind, path, message string, cause error) *AssetError {
	return &AssetError{Kind: kind, Path: path, Message: message, Cause: cause}
}

// ProfileError reports a misconfigured profile (cycle, bad pattern,
// unparsable custom rule). Attributed to the profile, not the document.
type ProfileError struct {
	Profile string
	Message string
	Cause   error
}

func (e *ProfileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("profile %q: %s (%v)", e.Profile, e.Message, e.Cause)
	}
	return fmt.Sprintf("profile %q: %s", e.Profile, e.Message)
}

func (e *ProfileError) Unwrap() error {
	return e.Cause
}

// NewProfileError creates a profile configuration error.
func NewProfileError(profile, message string, cause error) *ProfileError {
	return &ProfileError{Profile: profile, Message: message, Cause: cause}
}

// SyncError reports a per-package download or extraction failure. Recorded
// against that package's result entry only, never aborting sibling packages.
type SyncError struct {
	PackageID string
	Stage     string
	Message   string
	Cause     error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sync [%s] %s: %s (%v)", e.PackageID, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("sync [%s] %s: %s", e.PackageID, e.Stage, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// NewSyncError creates a sync failure for one package.
func NewSyncError(packageID, stage, message string, cause error) *SyncError {
	return &SyncError{PackageID: packageID, Stage: stage, Message: message, Cause: cause}
}

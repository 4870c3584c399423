package model

import "time"

// VersionStatus is the lifecycle state of an AssetVersion.
type VersionStatus string

const (
	VersionPending  VersionStatus = "PENDING"
	VersionApplied  VersionStatus = "APPLIED"
	VersionRejected VersionStatus = "REJECTED"
)

// FilesSummary aggregates per-file diff statuses for one sync.
type FilesSummary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Total returns the number of distinct paths covered by the summary.
func (s FilesSummary) Total() int {
	return s.Added + s.Removed + s.Modified + s.Unchanged
}

// AssetVersion is an immutable record of one sync attempt.
type AssetVersion struct {
	ID          string        `json:"id"`
	PackageID   string        `json:"packageId"`
	DisplayName string        `json:"displayName"`
	CreatedAt   time.Time     `json:"createdAt"`
	Status      VersionStatus `json:"status"`
	Files       FilesSummary  `json:"files"`
	AppliedAt   *time.Time    `json:"appliedAt,omitempty"`
	RejectedAt  *time.Time    `json:"rejectedAt,omitempty"`
	DurationMs  int64         `json:"durationMs"`
}

// FileChangeStatus classifies one file in a staged/live diff.
type FileChangeStatus string

const (
	FileAdded     FileChangeStatus = "ADDED"
	FileRemoved   FileChangeStatus = "REMOVED"
	FileModified  FileChangeStatus = "MODIFIED"
	FileUnchanged FileChangeStatus = "UNCHANGED"
)

// FileDiffSummary is one file entry in a directory diff. Sizes are -1 when
// the file does not exist on that side.
type FileDiffSummary struct {
	Path    string           `json:"path"`
	Status  FileChangeStatus `json:"status"`
	OldSize int64            `json:"oldSize"`
	NewSize int64            `json:"newSize"`
}

// FileDiffDetail carries the unified diff and raw contents for one file.
// Binary files are flagged and never diffed by content.
type FileDiffDetail struct {
	Path       string           `json:"path"`
	Status     FileChangeStatus `json:"status"`
	Binary     bool             `json:"binary"`
	Diff       string           `json:"diff,omitempty"`
	OldContent string           `json:"oldContent,omitempty"`
	NewContent string           `json:"newContent,omitempty"`
}

// WarningSeverity grades a suppression-impact warning.
type WarningSeverity string

const (
	SeverityCritical WarningSeverity = "CRITICAL"
	SeverityWarning  WarningSeverity = "WARNING"
	SeverityInfo     WarningSeverity = "INFO"
)

// SuppressionWarning signals that a staged rule-set change may break an
// existing suppression rule's match target.
type SuppressionWarning struct {
	RuleID      string          `json:"ruleId"`
	ProfileName string          `json:"profileName"`
	Pattern     string          `json:"pattern"`
	Severity    WarningSeverity `json:"severity"`
	Message     string          `json:"message"`
}

// SyncPreview is the operator-facing result of staging one package.
type SyncPreview struct {
	Version  AssetVersion         `json:"version"`
	Files    []FileDiffSummary    `json:"files"`
	Warnings []SuppressionWarning `json:"warnings"`
}

// ReloadStatus is the per-component outcome of a reload.
type ReloadStatus string

const (
	ReloadOK      ReloadStatus = "OK"
	ReloadPartial ReloadStatus = "PARTIAL"
	ReloadFailed  ReloadStatus = "FAILED"
)

// ReloadResult reports one component's reload outcome.
type ReloadResult struct {
	Component  string       `json:"component"`
	Status     ReloadStatus `json:"status"`
	Loaded     int          `json:"loaded"`
	DurationMs int64        `json:"durationMs"`
	Errors     []string     `json:"errors,omitempty"`
}

// ReloadOutcome aggregates all component results of one reload run.
type ReloadOutcome struct {
	Results    []ReloadResult `json:"results"`
	DurationMs int64          `json:"durationMs"`
}

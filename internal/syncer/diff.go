package syncer

import (
	"bytes"
	"path"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
)

const (
	// maxDiffSize caps content diffing; larger files are compared by
	// bytes only and reported without a textual diff.
	maxDiffSize = 10 << 20

	diffContextLines = 3
	binarySniffLen   = 8192
)

// StagingPath returns the staging location for one asset path of a package.
func StagingPath(packageID, rel string) string {
	return path.Join(assets.StagingDir, packageID, rel)
}

// DiffPackage compares a package's staged files against the live store.
// Every live file under the package's target directories and every staged
// file appears exactly once in the result, sorted by path.
func DiffPackage(store *assets.Store, pkg PackageDefinition) ([]model.FileDiffSummary, error) {
	stagingRoot := path.Join(assets.StagingDir, pkg.ID)

	staged := map[string]bool{}
	stagedFiles, err := store.ListFiles(stagingRoot)
	if err != nil {
		return nil, model.NewSyncError(pkg.ID, "diff", "list staged files", err)
	}
	for _, f := range stagedFiles {
		staged[f] = true
	}

	live := map[string]bool{}
	for _, m := range pkg.Mappings {
		files, err := store.ListFiles(m.TargetDir)
		if err != nil {
			return nil, model.NewSyncError(pkg.ID, "diff", "list live files", err)
		}
		for _, f := range files {
			live[path.Join(m.TargetDir, f)] = true
		}
	}

	paths := make([]string, 0, len(staged)+len(live))
	seen := map[string]bool{}
	for p := range staged {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for p := range live {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make([]model.FileDiffSummary, 0, len(paths))
	for _, p := range paths {
		sum, err := summarize(store, pkg.ID, p, staged[p], live[p])
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func summarize(store *assets.Store, packageID, rel string, inStaging, inLive bool) (model.FileDiffSummary, error) {
	sum := model.FileDiffSummary{Path: rel, OldSize: -1, NewSize: -1}

	var oldData, newData []byte
	if inLive {
		data, err := store.Read(rel)
		if err != nil {
			return sum, model.NewSyncError(packageID, "diff", "read live "+rel, err)
		}
		oldData = data
		sum.OldSize = int64(len(data))
	}
	if inStaging {
		data, err := store.Read(StagingPath(packageID, rel))
		if err != nil {
			return sum, model.NewSyncError(packageID, "diff", "read staged "+rel, err)
		}
		newData = data
		sum.NewSize = int64(len(data))
	}

	switch {
	case inStaging && !inLive:
		sum.Status = model.FileAdded
	case !inStaging && inLive:
		sum.Status = model.FileRemoved
	case bytes.Equal(oldData, newData):
		sum.Status = model.FileUnchanged
	default:
		sum.Status = model.FileModified
	}
	return sum, nil
}

// FileDiff builds the unified diff between the live and staged version of
// one file. Binary or oversized files are flagged and carry no text diff.
func FileDiff(store *assets.Store, packageID, rel string) (*model.FileDiffDetail, error) {
	return fileDiff(store, packageID, rel, StagingPath(packageID, rel), rel)
}

func fileDiff(store *assets.Store, packageID, oldPath, newPath, rel string) (*model.FileDiffDetail, error) {
	detail := &model.FileDiffDetail{Path: rel}

	oldData, oldOK := readOptional(store, oldPath)
	newData, newOK := readOptional(store, newPath)
	if !oldOK && !newOK {
		return nil, model.ErrNotFound
	}

	switch {
	case newOK && !oldOK:
		detail.Status = model.FileAdded
	case !newOK && oldOK:
		detail.Status = model.FileRemoved
	case bytes.Equal(oldData, newData):
		detail.Status = model.FileUnchanged
	default:
		detail.Status = model.FileModified
	}

	if isBinary(oldData) || isBinary(newData) ||
		len(oldData) > maxDiffSize || len(newData) > maxDiffSize {
		detail.Binary = true
		return detail, nil
	}

	detail.OldContent = string(oldData)
	detail.NewContent = string(newData)

	if detail.Status == model.FileUnchanged {
		return detail, nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(detail.OldContent),
		B:        difflib.SplitLines(detail.NewContent),
		FromFile: "a/" + rel,
		ToFile:   "b/" + rel,
		Context:  diffContextLines,
	})
	if err != nil {
		return nil, model.NewSyncError(packageID, "diff", "diff "+rel, err)
	}
	detail.Diff = diff
	return detail, nil
}

// SnapshotDiff compares the before and after snapshots recorded when a
// version was applied, so the diff of a promoted version stays
// reviewable after staging is gone.
func SnapshotDiff(store *assets.Store, versionID string) ([]model.FileDiffSummary, error) {
	beforeRoot := path.Join(assets.SnapshotsDir, versionID, "_before")
	afterRoot := path.Join(assets.SnapshotsDir, versionID, "_after")

	before := map[string]bool{}
	files, err := store.ListFiles(beforeRoot)
	if err != nil {
		return nil, model.NewSyncError("", "diff", "list before snapshot", err)
	}
	for _, f := range files {
		before[f] = true
	}

	after := map[string]bool{}
	files, err = store.ListFiles(afterRoot)
	if err != nil {
		return nil, model.NewSyncError("", "diff", "list after snapshot", err)
	}
	for _, f := range files {
		after[f] = true
	}

	if len(before) == 0 && len(after) == 0 {
		return nil, model.ErrNotFound
	}

	paths := make([]string, 0, len(before)+len(after))
	for p := range before {
		paths = append(paths, p)
	}
	for p := range after {
		if !before[p] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make([]model.FileDiffSummary, 0, len(paths))
	for _, p := range paths {
		sum := model.FileDiffSummary{Path: p, OldSize: -1, NewSize: -1}
		var oldData, newData []byte
		if before[p] {
			if oldData, err = store.Read(path.Join(beforeRoot, p)); err != nil {
				return nil, model.NewSyncError("", "diff", "read snapshot "+p, err)
			}
			sum.OldSize = int64(len(oldData))
		}
		if after[p] {
			if newData, err = store.Read(path.Join(afterRoot, p)); err != nil {
				return nil, model.NewSyncError("", "diff", "read snapshot "+p, err)
			}
			sum.NewSize = int64(len(newData))
		}
		switch {
		case !before[p]:
			sum.Status = model.FileAdded
		case !after[p]:
			sum.Status = model.FileRemoved
		case bytes.Equal(oldData, newData):
			sum.Status = model.FileUnchanged
		default:
			sum.Status = model.FileModified
		}
		out = append(out, sum)
	}
	return out, nil
}

// SnapshotFileDiff builds the unified diff of one file between a version's
// before and after snapshots.
func SnapshotFileDiff(store *assets.Store, versionID, rel string) (*model.FileDiffDetail, error) {
	return fileDiff(store, "",
		path.Join(assets.SnapshotsDir, versionID, "_before", rel),
		path.Join(assets.SnapshotsDir, versionID, "_after", rel), rel)
}

func readOptional(store *assets.Store, rel string) ([]byte, bool) {
	data, err := store.Read(rel)
	if err != nil {
		return nil, false
	}
	return data, true
}

// isBinary sniffs for a NUL byte in the leading window, the same heuristic
// git uses.
func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

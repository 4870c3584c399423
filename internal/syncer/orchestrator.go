package syncer

import (
	"context"
	"os"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
)

// PackageSyncResult is one package's outcome in a multi-package sync.
// Packages fail independently: a dead upstream URL for one never aborts
// the siblings.
type PackageSyncResult struct {
	PackageID string             `json:"packageId"`
	Preview   *model.SyncPreview `json:"preview,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Orchestrator drives the sync lifecycle: download, stage, preview,
// approve or reject, promote. Staged changes never touch live assets until
// an operator approves the version.
type Orchestrator struct {
	store      *assets.Store
	profiles   *profile.Store
	cache      *assets.Cache
	downloader *Downloader
	history    *History
	reloader   *assets.Reloader
	log        *zap.Logger

	mu      sync.Mutex
	busy    map[string]bool   // packageID -> staging or promoting now
	pending map[string]string // packageID -> pending version id
}

// NewOrchestrator wires the sync workflow together.
func NewOrchestrator(store *assets.Store, profiles *profile.Store, cache *assets.Cache, downloader *Downloader, history *History, reloader *assets.Reloader, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		profiles:   profiles,
		cache:      cache,
		downloader: downloader,
		history:    history,
		reloader:   reloader,
		log:        log.Named("syncer"),
		busy:       make(map[string]bool),
		pending:    make(map[string]string),
	}
}

// acquire marks a package busy, refusing when an operation already runs on it.
func (o *Orchestrator) acquire(packageID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy[packageID] {
		return model.NewSyncError(packageID, "stage", "operation already running", model.ErrSyncInProgress)
	}
	o.busy[packageID] = true
	return nil
}

func (o *Orchestrator) release(packageID string) {
	o.mu.Lock()
	delete(o.busy, packageID)
	o.mu.Unlock()
}

// Preview downloads one package, stages it and returns the diff against
// the live store without touching any live file. A previous pending
// version of the same package is superseded and marked rejected.
func (o *Orchestrator) Preview(ctx context.Context, packageID string) (*model.SyncPreview, error) {
	pkg, ok := PackageByID(packageID)
	if !ok {
		return nil, model.ErrNotFound
	}
	if err := o.acquire(packageID); err != nil {
		return nil, err
	}
	defer o.release(packageID)

	start := time.Now()

	files, err := o.downloader.Fetch(ctx, pkg)
	if err != nil {
		return nil, err
	}
	return o.stage(pkg, files, start)
}

// PreviewFromArchive stages a locally supplied archive, for air-gapped
// deployments where the service cannot reach ebelge.gib.gov.tr.
func (o *Orchestrator) PreviewFromArchive(packageID string, archive []byte) (*model.SyncPreview, error) {
	pkg, ok := PackageByID(packageID)
	if !ok {
		return nil, model.ErrNotFound
	}
	if err := o.acquire(packageID); err != nil {
		return nil, err
	}
	defer o.release(packageID)

	start := time.Now()

	files, err := Extract(pkg, archive)
	if err != nil {
		return nil, err
	}
	return o.stage(pkg, files, start)
}

func (o *Orchestrator) stage(pkg PackageDefinition, files map[string][]byte, start time.Time) (*model.SyncPreview, error) {
	if err := o.supersedePending(pkg.ID); err != nil {
		return nil, err
	}

	stagingRoot := path.Join(assets.StagingDir, pkg.ID)
	if err := o.removeTree(stagingRoot); err != nil {
		return nil, model.NewSyncError(pkg.ID, "stage", "clear staging", err)
	}
	for rel, content := range files {
		if err := o.store.Write(path.Join(stagingRoot, rel), content); err != nil {
			return nil, model.NewSyncError(pkg.ID, "stage", "write "+rel, err)
		}
	}

	diff, err := DiffPackage(o.store, pkg)
	if err != nil {
		return nil, err
	}
	warnings := AnalyzeImpact(o.store, o.profiles, pkg.ID, diff)

	version := model.AssetVersion{
		ID:          uuid.NewString(),
		PackageID:   pkg.ID,
		DisplayName: pkg.DisplayName,
		CreatedAt:   time.Now().UTC(),
		Status:      model.VersionPending,
		Files:       summarizeFiles(diff),
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if err := o.history.Insert(version); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.pending[pkg.ID] = version.ID
	o.mu.Unlock()

	o.log.Info("package staged",
		zap.String("package", pkg.ID),
		zap.String("version", version.ID),
		zap.Int("added", version.Files.Added),
		zap.Int("removed", version.Files.Removed),
		zap.Int("modified", version.Files.Modified),
		zap.Int("warnings", len(warnings)))

	return &model.SyncPreview{Version: version, Files: diff, Warnings: warnings}, nil
}

func (o *Orchestrator) supersedePending(packageID string) error {
	o.mu.Lock()
	prev := o.pending[packageID]
	delete(o.pending, packageID)
	o.mu.Unlock()
	if prev == "" {
		return nil
	}
	o.log.Info("superseding pending version", zap.String("package", packageID), zap.String("version", prev))
	return o.history.MarkRejected(prev, time.Now().UTC())
}

// SyncAll previews every package in the catalog. Each package's failure is
// recorded on its own result entry.
func (o *Orchestrator) SyncAll(ctx context.Context) []PackageSyncResult {
	out := make([]PackageSyncResult, 0, len(packageDefinitions))
	for _, pkg := range packageDefinitions {
		res := PackageSyncResult{PackageID: pkg.ID}
		preview, err := o.Preview(ctx, pkg.ID)
		if err != nil {
			res.Error = err.Error()
			o.log.Warn("package sync failed", zap.String("package", pkg.ID), zap.Error(err))
		} else {
			res.Preview = preview
		}
		out = append(out, res)
	}
	return out
}

// Approve promotes a pending version's staged files into the live store.
// Approving an already applied version is a no-op returning the applied
// record; approving a rejected one is a conflict.
func (o *Orchestrator) Approve(versionID string) (*model.AssetVersion, error) {
	v, err := o.history.Get(versionID)
	if err != nil {
		return nil, err
	}
	switch v.Status {
	case model.VersionApplied:
		return v, nil
	case model.VersionRejected:
		return nil, model.ErrConflict
	}

	pkg, ok := PackageByID(v.PackageID)
	if !ok {
		return nil, model.ErrNotFound
	}
	if err := o.acquire(pkg.ID); err != nil {
		return nil, err
	}
	defer o.release(pkg.ID)

	diff, err := DiffPackage(o.store, pkg)
	if err != nil {
		return nil, err
	}

	if err := o.snapshot(versionID, "_before", diff, false); err != nil {
		return nil, err
	}

	// Cache rebuilds pause while live files are replaced, so a TTL expiry
	// mid-promotion cannot compile a half-promoted package set.
	o.cache.Hold()
	err = o.promote(pkg, diff)
	if err == nil {
		o.cache.InvalidateAll()
	}
	o.cache.Release()
	if err != nil {
		return nil, err
	}

	if err := o.snapshot(versionID, "_after", diff, true); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := o.history.MarkApplied(versionID, now); err != nil {
		return nil, err
	}

	if err := o.removeTree(path.Join(assets.StagingDir, pkg.ID)); err != nil {
		o.log.Warn("clear staging after approve", zap.String("package", pkg.ID), zap.Error(err))
	}
	o.mu.Lock()
	if o.pending[pkg.ID] == versionID {
		delete(o.pending, pkg.ID)
	}
	o.mu.Unlock()

	if outcome, err := o.reloader.ReloadAll(); err != nil {
		o.log.Warn("post-approve reload refused", zap.Error(err))
	} else {
		o.log.Info("post-approve reload finished", zap.Int64("durationMs", outcome.DurationMs))
	}

	o.log.Info("version applied", zap.String("package", pkg.ID), zap.String("version", versionID))
	return o.history.Get(versionID)
}

// Reject discards a pending version's staged files. Rejecting twice is a
// no-op; rejecting an applied version is a conflict.
func (o *Orchestrator) Reject(versionID string) (*model.AssetVersion, error) {
	v, err := o.history.Get(versionID)
	if err != nil {
		return nil, err
	}
	switch v.Status {
	case model.VersionRejected:
		return v, nil
	case model.VersionApplied:
		return nil, model.ErrConflict
	}

	if err := o.acquire(v.PackageID); err != nil {
		return nil, err
	}
	defer o.release(v.PackageID)

	if err := o.removeTree(path.Join(assets.StagingDir, v.PackageID)); err != nil {
		return nil, model.NewSyncError(v.PackageID, "reject", "clear staging", err)
	}
	if err := o.history.MarkRejected(versionID, time.Now().UTC()); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.pending[v.PackageID] == versionID {
		delete(o.pending, v.PackageID)
	}
	o.mu.Unlock()

	o.log.Info("version rejected", zap.String("package", v.PackageID), zap.String("version", versionID))
	return o.history.Get(versionID)
}

// PendingVersionID returns the pending version for a package, if any.
func (o *Orchestrator) PendingVersionID(packageID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.pending[packageID]
	return id, ok
}

// snapshot copies the files a version touches into the version's snapshot
// directory. Before promotion it records the live side, after promotion
// the staged content that just went live.
func (o *Orchestrator) snapshot(versionID, side string, diff []model.FileDiffSummary, after bool) error {
	base := path.Join(assets.SnapshotsDir, versionID, side)
	for _, f := range diff {
		if f.Status == model.FileUnchanged {
			continue
		}
		src := f.Path
		if !after && f.Status == model.FileAdded {
			continue
		}
		if after && f.Status == model.FileRemoved {
			continue
		}
		data, err := o.store.Read(src)
		if err != nil {
			return model.NewSyncError("", "snapshot", "read "+src, err)
		}
		if err := o.store.Write(path.Join(base, src), data); err != nil {
			return model.NewSyncError("", "snapshot", "write "+src, err)
		}
	}
	return nil
}

// promote moves staged content live: added and modified files overwrite,
// files absent from staging are removed.
func (o *Orchestrator) promote(pkg PackageDefinition, diff []model.FileDiffSummary) error {
	for _, f := range diff {
		switch f.Status {
		case model.FileAdded, model.FileModified:
			data, err := o.store.Read(StagingPath(pkg.ID, f.Path))
			if err != nil {
				return model.NewSyncError(pkg.ID, "promote", "read staged "+f.Path, err)
			}
			if err := o.store.Write(f.Path, data); err != nil {
				return model.NewSyncError(pkg.ID, "promote", "write "+f.Path, err)
			}
		case model.FileRemoved:
			if err := o.store.Remove(f.Path); err != nil {
				return model.NewSyncError(pkg.ID, "promote", "remove "+f.Path, err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) removeTree(rel string) error {
	p, err := o.store.Resolve(rel)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func summarizeFiles(diff []model.FileDiffSummary) model.FilesSummary {
	var s model.FilesSummary
	for _, f := range diff {
		switch f.Status {
		case model.FileAdded:
			s.Added++
		case model.FileRemoved:
			s.Removed++
		case model.FileModified:
			s.Modified++
		default:
			s.Unchanged++
		}
	}
	return s
}

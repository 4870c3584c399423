package syncer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/mersel/xslt-service/internal/model"
)

const maxPackageSize = 256 << 20

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Downloader fetches package archives over HTTP and extracts the mapped
// entries.
type Downloader struct {
	client  *http.Client
	timeout time.Duration
}

// NewDownloader creates a downloader with a per-package timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch downloads the package archive and returns the mapped files as
// relative asset paths. Entries no mapping claims are skipped.
func (d *Downloader) Fetch(ctx context.Context, pkg PackageDefinition) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pkg.URL, nil)
	if err != nil {
		return nil, model.NewSyncError(pkg.ID, "download", "build request", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, model.NewSyncError(pkg.ID, "download", "fetch archive", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewSyncError(pkg.ID, "download",
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, pkg.URL), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPackageSize+1))
	if err != nil {
		return nil, model.NewSyncError(pkg.ID, "download", "read archive body", err)
	}
	if len(data) > maxPackageSize {
		return nil, model.NewSyncError(pkg.ID, "download", "archive exceeds size limit", nil)
	}

	return Extract(pkg, data)
}

// Extract opens the archive bytes and routes entries through the package's
// file mappings. The returned map is keyed by relative asset path.
func Extract(pkg PackageDefinition, data []byte) (map[string][]byte, error) {
	if len(data) < len(zipMagic) || !bytes.Equal(data[:len(zipMagic)], zipMagic) {
		return nil, model.NewSyncError(pkg.ID, "extract", "archive is not a ZIP file", nil)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, model.NewSyncError(pkg.ID, "extract", "open archive", err)
	}

	out := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(strings.ReplaceAll(f.Name, "\\", "/"))
		if strings.HasPrefix(name, "../") || path.IsAbs(name) {
			continue
		}

		target, ok := mapEntry(pkg.Mappings, name)
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, model.NewSyncError(pkg.ID, "extract", "open entry "+name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, model.NewSyncError(pkg.ID, "extract", "read entry "+name, err)
		}
		out[target] = content
	}

	if len(out) == 0 {
		return nil, model.NewSyncError(pkg.ID, "extract", "archive contains no mapped files", nil)
	}
	return out, nil
}

// mapEntry routes one archive entry through the mappings; the first glob
// that matches wins.
func mapEntry(mappings []FileMapping, name string) (string, bool) {
	for _, m := range mappings {
		if matchGlob(m.Glob, name) {
			return path.Join(m.TargetDir, path.Base(name)), true
		}
	}
	return "", false
}

// matchGlob matches slash-separated glob patterns where ** spans any
// number of path segments and * stays within one segment.
func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], segs[1:])
}

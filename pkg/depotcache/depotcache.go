// Package depotcache writes manifest files into Steam's depot cache under
// their canonical <depotid>_<manifestid>.manifest names.
package depotcache

import (
	"os"
	"path/filepath"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/types"
)

// Writer copies manifest files into one depot cache directory.
type Writer struct {
	fs  types.FS
	dir string
}

// New creates a Writer for the given depot cache directory.
func New(fs types.FS, dir string) *Writer {
	return &Writer{fs: fs, dir: dir}
}

// Write copies the manifest at srcPath into the cache under the canonical
// name for the depot, overwriting any file already there. The source must
// exist; the cache directory is created as needed.
func (w *Writer) Write(depot types.Depot, srcPath string) error {
	logger := logging.GetLogger("depotcache")

	data, err := w.fs.ReadFile(srcPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to read manifest %s", srcPath).
			WithDetail("path", srcPath)
	}

	if err := w.fs.MkdirAll(w.dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to create depot cache directory %s", w.dir).
			WithDetail("path", w.dir)
	}

	dest := filepath.Join(w.dir, depot.ManifestName())
	if err := w.fs.WriteFile(dest, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to write manifest %s", dest).
			WithDetail("path", dest)
	}

	logger.Debug().
		Uint32("depot", depot.DepotID).
		Uint64("manifest", depot.ManifestID).
		Str("dest", dest).
		Msg("Cached manifest")
	return nil
}

// Remove deletes the canonical manifest file for the depot. A file that is
// already absent is success; other failures propagate as IO errors.
func (w *Writer) Remove(depot types.Depot) error {
	logger := logging.GetLogger("depotcache")
	dest := filepath.Join(w.dir, depot.ManifestName())
	if err := w.fs.Remove(dest); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrIO, "failed to remove manifest %s", dest).
			WithDetail("path", dest)
	}
	logger.Debug().Str("dest", dest).Msg("Removed manifest")
	return nil
}

// Info summarizes the cache directory for the stats surface.
type Info struct {
	Dir           string
	ManifestCount int
	TotalBytes    int64
}

// Stat reports how many manifest files the cache holds and their total size.
// A missing cache directory is an empty cache.
func (w *Writer) Stat() (Info, error) {
	info := Info{Dir: w.dir}
	entries, err := w.fs.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, errors.Wrapf(err, errors.ErrIO, "failed to read depot cache directory %s", w.dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".manifest" {
			continue
		}
		info.ManifestCount++
		if fi, err := entry.Info(); err == nil {
			info.TotalBytes += fi.Size()
		}
	}
	return info, nil
}

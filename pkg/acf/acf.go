// Package acf regenerates Steam's per-application appmanifest descriptor
// files from the installed depot set.
//
// A descriptor is always rebuilt in full from the database's current view of
// the application, never merged incrementally, so an update to one depot
// lands alongside the depots already owned by the same application.
package acf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/types"
	"github.com/depotkit/depotkit/pkg/vdf"
)

// StateFlags value 4 marks the app as "update required", which makes Steam
// fetch the actual content on next launch.
const stateUpdateRequired = "4"

// Generator writes appmanifest_<appid>.acf files into one steamapps
// directory.
type Generator struct {
	fs           types.FS
	steamAppsDir string
	cacheDir     string
}

// New creates a Generator. cacheDir is the depot cache directory, consulted
// for manifest file sizes when filling in depot sizes; it may be empty.
func New(fs types.FS, steamAppsDir, cacheDir string) *Generator {
	return &Generator{fs: fs, steamAppsDir: steamAppsDir, cacheDir: cacheDir}
}

// Write regenerates the descriptor for the application from scratch. The
// depot slice must be the application's full current set, not just the
// depots of the triggering batch.
func (g *Generator) Write(app types.Application) error {
	logger := logging.GetLogger("acf")

	if err := g.fs.MkdirAll(g.steamAppsDir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to create steamapps directory %s", g.steamAppsDir).
			WithDetail("path", g.steamAppsDir)
	}

	doc := g.build(app)
	dest := g.path(app.AppID)
	if err := g.fs.WriteFile(dest, doc.Serialize(), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to write descriptor %s", dest).
			WithDetail("path", dest)
	}

	logger.Debug().
		Uint32("app", app.AppID).
		Int("depots", len(app.Depots)).
		Str("dest", dest).
		Msg("Wrote app descriptor")
	return nil
}

// Remove deletes the descriptor for the application id. Absent is success.
func (g *Generator) Remove(appID uint32) error {
	logger := logging.GetLogger("acf")
	dest := g.path(appID)
	if err := g.fs.Remove(dest); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrIO, "failed to remove descriptor %s", dest).
			WithDetail("path", dest)
	}
	logger.Debug().Str("dest", dest).Msg("Removed app descriptor")
	return nil
}

func (g *Generator) path(appID uint32) string {
	return filepath.Join(g.steamAppsDir, fmt.Sprintf("appmanifest_%d.acf", appID))
}

func (g *Generator) build(app types.Application) *vdf.Document {
	name := app.Name
	if name == "" {
		name = fmt.Sprintf("App %d", app.AppID)
	}

	state := &vdf.Node{Key: "AppState", Section: true}
	appIDStr := strconv.FormatUint(uint64(app.AppID), 10)
	state.SetLeaf("appid", appIDStr)
	state.SetLeaf("Universe", "1")
	state.SetLeaf("LauncherPath", "")
	state.SetLeaf("name", name)
	state.SetLeaf("StateFlags", stateUpdateRequired)
	state.SetLeaf("installdir", sanitizeInstallDir(name))
	state.SetLeaf("LastUpdated", "0")

	var totalSize int64
	installed := &vdf.Node{Key: "InstalledDepots", Section: true}
	for _, d := range app.Depots {
		size := g.manifestSize(d)
		totalSize += size
		entry := installed.EnsureSection(strconv.FormatUint(uint64(d.DepotID), 10))
		entry.SetLeaf("manifest", strconv.FormatUint(d.ManifestID, 10))
		entry.SetLeaf("size", strconv.FormatInt(size, 10))
	}

	state.SetLeaf("SizeOnDisk", strconv.FormatInt(totalSize, 10))
	state.SetLeaf("StagingSize", "0")
	state.SetLeaf("buildid", "0")
	state.SetLeaf("LastOwner", "0")
	state.SetLeaf("UpdateResult", "0")
	state.SetLeaf("BytesToDownload", "0")
	state.SetLeaf("BytesDownloaded", "0")
	state.SetLeaf("BytesToStage", "0")
	state.SetLeaf("BytesStaged", "0")
	state.SetLeaf("TargetBuildID", "0")
	state.SetLeaf("AutoUpdateBehavior", "0")
	state.SetLeaf("AllowOtherDownloadsWhileRunning", "0")
	state.SetLeaf("ScheduledAutoUpdate", "0")
	if len(app.Depots) > 0 {
		state.Children = append(state.Children, installed)
	}

	return &vdf.Document{Nodes: []*vdf.Node{state}}
}

// manifestSize uses the cached manifest file's size as the depot size. The
// true content size is unknown without Steam's product info; the manifest
// size is a stand-in Steam corrects on its update pass.
func (g *Generator) manifestSize(d types.Depot) int64 {
	if g.cacheDir == "" {
		return 0
	}
	fi, err := g.fs.Stat(filepath.Join(g.cacheDir, d.ManifestName()))
	if err != nil {
		return 0
	}
	return fi.Size()
}

// sanitizeInstallDir strips characters Windows forbids in directory names.
func sanitizeInstallDir(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			continue
		}
		b.WriteRune(r)
	}
	dir := strings.TrimSpace(b.String())
	if dir == "" {
		return "unknown"
	}
	return dir
}

// Package paths provides centralized path handling for depotkit.
// Every store location the pipeline touches is derived here, from the
// resolved settings plus the XDG base directories.
package paths

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/depotkit/depotkit/pkg/config"
	"github.com/depotkit/depotkit/pkg/errors"
)

const (
	// AppDirName is the directory name for depotkit-owned files under the
	// XDG base directories.
	AppDirName = "depotkit"

	// DatabaseFileName is the sqlite database filename.
	DatabaseFileName = "depotkit.db"

	// LockFileName guards the single-writer batch discipline.
	LockFileName = "depotkit.lock"

	// loaderModeDir is the loader subdirectory holding AppList and the
	// injector configuration.
	loaderModeDir = "NormalMode"
)

// Paths resolves every filesystem location the pipeline reads or writes.
type Paths struct {
	steamDir  string
	loaderDir string
	dbPath    string
}

// New builds a Paths from settings. Steam and loader directories are
// required; the database path falls back to the XDG data directory.
func New(settings *config.Settings) (*Paths, error) {
	if settings.Steam.Dir == "" {
		return nil, errors.New(errors.ErrConfigValid, "steam.dir is not configured")
	}
	if settings.Loader.Dir == "" {
		return nil, errors.New(errors.ErrConfigValid, "loader.dir is not configured")
	}

	dbPath := settings.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(xdg.DataHome, AppDirName, DatabaseFileName)
	}

	return &Paths{
		steamDir:  settings.Steam.Dir,
		loaderDir: settings.Loader.Dir,
		dbPath:    dbPath,
	}, nil
}

// SteamDir returns the Steam installation root.
func (p *Paths) SteamDir() string {
	return p.steamDir
}

// LoaderDir returns the loader installation root.
func (p *Paths) LoaderDir() string {
	return p.loaderDir
}

// DepotCacheDir returns Steam's depot cache directory.
func (p *Paths) DepotCacheDir() string {
	return filepath.Join(p.steamDir, "depotcache")
}

// ConfigVDFPath returns the path of Steam's config.vdf.
func (p *Paths) ConfigVDFPath() string {
	return filepath.Join(p.steamDir, "config", "config.vdf")
}

// SteamAppsDir returns the directory holding appmanifest_<appid>.acf files.
func (p *Paths) SteamAppsDir() string {
	return filepath.Join(p.steamDir, "steamapps")
}

// AppManifestPath returns the descriptor path for one application.
func (p *Paths) AppManifestPath(appID uint32) string {
	return filepath.Join(p.SteamAppsDir(), fmt.Sprintf("appmanifest_%d.acf", appID))
}

// AppListDir returns the loader's allow-list directory.
func (p *Paths) AppListDir() string {
	return filepath.Join(p.loaderDir, loaderModeDir, "AppList")
}

// InjectorConfigPath returns the loader's DLLInjector.ini path.
func (p *Paths) InjectorConfigPath() string {
	return filepath.Join(p.loaderDir, loaderModeDir, "DLLInjector.ini")
}

// InjectorDLLPath returns the loader DLL the injector configuration points at.
func (p *Paths) InjectorDLLPath() string {
	return filepath.Join(p.loaderDir, loaderModeDir, "GreenLuma_2025_x86.dll")
}

// SteamExePath returns the Steam executable the injector launches.
func (p *Paths) SteamExePath() string {
	return filepath.Join(p.steamDir, "Steam.exe")
}

// DatabasePath returns the sqlite database file path.
func (p *Paths) DatabasePath() string {
	return p.dbPath
}

// LockPath returns the batch lock file path, a sibling of the database.
func (p *Paths) LockPath() string {
	return filepath.Join(filepath.Dir(p.dbPath), LockFileName)
}

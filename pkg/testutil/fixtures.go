package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/depotkit/depotkit/pkg/types"
)

// BundleDepot describes one depot inside a credential bundle fixture.
type BundleDepot struct {
	DepotID    uint32
	ManifestID uint64
	Key        string

	// OmitManifestFile skips writing the companion manifest file, for
	// exercising the already-cached fallback.
	OmitManifestFile bool
}

// Bundle describes a credential bundle fixture: one <AppID>.lua file plus
// its companion manifest files.
type Bundle struct {
	AppID  uint32
	Depots []BundleDepot
}

// Key returns a deterministic 64-character lowercase hex key derived from
// the seed, so tests can pass a depot id directly.
func Key(seed uint32) string {
	return strings.Repeat(fmt.Sprintf("%02x", byte(seed)), 32)
}

// WriteBundle materializes the bundle under dir on fsys and returns the
// .lua file path.
func WriteBundle(t *testing.T, fsys types.FS, dir string, b Bundle) string {
	t.Helper()

	var sb strings.Builder
	fmt.Fprintf(&sb, "addappid(%d)\n", b.AppID)
	for _, d := range b.Depots {
		key := d.Key
		if key == "" {
			key = Key(d.DepotID)
		}
		fmt.Fprintf(&sb, "addappid(%d, 1, %q)\n", d.DepotID, key)
		fmt.Fprintf(&sb, "setManifestid(%d, %q, 0)\n", d.DepotID, fmt.Sprintf("%d", d.ManifestID))
	}

	luaPath := filepath.Join(dir, fmt.Sprintf("%d.lua", b.AppID))
	WriteFile(t, fsys, luaPath, sb.String())

	for _, d := range b.Depots {
		if d.OmitManifestFile {
			continue
		}
		name := fmt.Sprintf("%d_%d.manifest", d.DepotID, d.ManifestID)
		WriteFile(t, fsys, filepath.Join(dir, name), "manifest-"+name)
	}
	return luaPath
}

// MinimalConfigVDF is a config.vdf with the store spine present and no
// depot keys.
const MinimalConfigVDF = `"InstallConfigStore"
{
	"Software"
	{
		"Valve"
		{
			"Steam"
			{
				"Accounts"
				{
				}
			}
		}
	}
}
`

// WriteSteamTree lays out a minimal Steam installation under steamDir:
// config/config.vdf, an empty depotcache and an empty steamapps directory.
func WriteSteamTree(t *testing.T, fsys types.FS, steamDir string) {
	t.Helper()
	WriteFile(t, fsys, filepath.Join(steamDir, "config", "config.vdf"), MinimalConfigVDF)
	if err := fsys.MkdirAll(filepath.Join(steamDir, "depotcache"), 0755); err != nil {
		t.Fatalf("mkdir depotcache: %v", err)
	}
	if err := fsys.MkdirAll(filepath.Join(steamDir, "steamapps"), 0755); err != nil {
		t.Fatalf("mkdir steamapps: %v", err)
	}
}

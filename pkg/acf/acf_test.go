package acf

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotkit/depotkit/pkg/filesystem"
	"github.com/depotkit/depotkit/pkg/testutil"
	"github.com/depotkit/depotkit/pkg/types"
	"github.com/depotkit/depotkit/pkg/vdf"
)

const (
	steamAppsDir = "/steam/steamapps"
	cacheDir     = "/steam/depotcache"
)

func readDescriptor(t *testing.T, fs types.FS, appID uint32) *vdf.Node {
	t.Helper()
	raw, err := fs.ReadFile(fmt.Sprintf("%s/appmanifest_%d.acf", steamAppsDir, appID))
	require.NoError(t, err)
	doc, err := vdf.Parse(raw)
	require.NoError(t, err)
	state := doc.Root("AppState")
	require.NotNil(t, state)
	return state
}

func TestWrite_BasicDescriptor(t *testing.T) {
	fs := filesystem.NewMemory()
	testutil.WriteFile(t, fs, cacheDir+"/200_555.manifest", "12345678")

	g := New(fs, steamAppsDir, cacheDir)
	err := g.Write(types.Application{
		AppID: 100,
		Name:  "Test Game",
		Depots: []types.Depot{
			{DepotID: 200, ManifestID: 555, DecryptionKey: testutil.Key(0xaa)},
		},
	})
	require.NoError(t, err)

	state := readDescriptor(t, fs, 100)
	assert.Equal(t, "100", state.Child("appid").Value)
	assert.Equal(t, "1", state.Child("Universe").Value)
	assert.Equal(t, "Test Game", state.Child("name").Value)
	assert.Equal(t, "4", state.Child("StateFlags").Value)
	assert.Equal(t, "Test Game", state.Child("installdir").Value)
	assert.Equal(t, "8", state.Child("SizeOnDisk").Value, "descriptor size comes from the cached manifest")

	installed := state.Child("InstalledDepots")
	require.NotNil(t, installed)
	entry := installed.Child("200")
	require.NotNil(t, entry)
	assert.Equal(t, "555", entry.Child("manifest").Value)
	assert.Equal(t, "8", entry.Child("size").Value)
}

func TestWrite_EmptyNameFallsBack(t *testing.T) {
	fs := filesystem.NewMemory()
	g := New(fs, steamAppsDir, cacheDir)

	require.NoError(t, g.Write(types.Application{AppID: 100}))

	state := readDescriptor(t, fs, 100)
	assert.Equal(t, "App 100", state.Child("name").Value)
	assert.Nil(t, state.Child("InstalledDepots"), "no depots, no InstalledDepots section")
}

func TestWrite_SanitizesInstallDir(t *testing.T) {
	fs := filesystem.NewMemory()
	g := New(fs, steamAppsDir, "")

	require.NoError(t, g.Write(types.Application{AppID: 100, Name: `Half-Life: Alyx?`}))

	state := readDescriptor(t, fs, 100)
	assert.Equal(t, "Half-Life Alyx", state.Child("installdir").Value)
	assert.Equal(t, `Half-Life: Alyx?`, state.Child("name").Value, "display name keeps its punctuation")
}

func TestWrite_ReplacesPreviousDescriptor(t *testing.T) {
	fs := filesystem.NewMemory()
	g := New(fs, steamAppsDir, "")

	require.NoError(t, g.Write(types.Application{
		AppID:  100,
		Depots: []types.Depot{{DepotID: 200, ManifestID: 555}},
	}))
	require.NoError(t, g.Write(types.Application{
		AppID:  100,
		Depots: []types.Depot{{DepotID: 200, ManifestID: 777}},
	}))

	state := readDescriptor(t, fs, 100)
	entry := state.Child("InstalledDepots").Child("200")
	require.NotNil(t, entry)
	assert.Equal(t, "777", entry.Child("manifest").Value)
}

func TestWrite_MissingCachedManifestSizeIsZero(t *testing.T) {
	fs := filesystem.NewMemory()
	g := New(fs, steamAppsDir, cacheDir)

	require.NoError(t, g.Write(types.Application{
		AppID:  100,
		Depots: []types.Depot{{DepotID: 200, ManifestID: 555}},
	}))

	state := readDescriptor(t, fs, 100)
	assert.Equal(t, "0", state.Child("SizeOnDisk").Value)
}

func TestRemove(t *testing.T) {
	fs := filesystem.NewMemory()
	g := New(fs, steamAppsDir, "")
	require.NoError(t, g.Write(types.Application{AppID: 100}))

	require.NoError(t, g.Remove(100))
	testutil.AssertNoFile(t, fs, steamAppsDir+"/appmanifest_100.acf")
}

func TestRemove_AbsentIsSuccess(t *testing.T) {
	fs := filesystem.NewMemory()
	g := New(fs, steamAppsDir, "")

	assert.NoError(t, g.Remove(100))
}

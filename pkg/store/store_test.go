package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/testutil"
	"github.com/depotkit/depotkit/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func depot(id uint32, manifest uint64) types.Depot {
	return types.Depot{DepotID: id, ManifestID: manifest, DecryptionKey: testutil.Key(id)}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.EnsureApp(100, "Game"))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	has, err := s2.HasApp(100)
	require.NoError(t, err)
	assert.True(t, has, "reopen preserves rows")
}

func TestUpsertDepot_InsertAndUpdate(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, "Game"))

	require.NoError(t, s.UpsertDepot(100, depot(200, 555)))
	require.NoError(t, s.UpsertDepot(100, depot(200, 777)))

	depots, err := s.ListDepots(100)
	require.NoError(t, err)
	require.Len(t, depots, 1, "re-upsert replaces the row, never duplicates it")
	assert.Equal(t, uint64(777), depots[0].ManifestID)
}

func TestUpsertDepot_ConflictWithOtherOwner(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, ""))
	require.NoError(t, s.UpsertDepot(100, depot(200, 555)))
	require.NoError(t, s.EnsureApp(300, ""))

	err := s.UpsertDepot(300, depot(200, 999))
	require.Error(t, err)
	assert.Equal(t, errors.ErrConflict, errors.GetErrorCode(err))

	details := errors.GetErrorDetails(err)
	assert.Equal(t, uint32(100), details["owner"])

	owner, owned, err := s.Owner(200)
	require.NoError(t, err)
	require.True(t, owned)
	assert.Equal(t, uint32(100), owner, "conflict leaves ownership unchanged")
}

func TestReassignDepot_MovesOwnership(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, ""))
	require.NoError(t, s.UpsertDepot(100, depot(200, 555)))
	require.NoError(t, s.EnsureApp(300, ""))

	require.NoError(t, s.ReassignDepot(300, depot(200, 999)))

	owner, owned, err := s.Owner(200)
	require.NoError(t, err)
	require.True(t, owned)
	assert.Equal(t, uint32(300), owner)

	depots, err := s.ListDepots(100)
	require.NoError(t, err)
	assert.Empty(t, depots, "the prior owner loses the row")
}

func TestOwner_Unowned(t *testing.T) {
	s := openStore(t)

	_, owned, err := s.Owner(999)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestEnsureApp_EmptyNameNeverOverwrites(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.EnsureApp(100, "Game"))
	require.NoError(t, s.EnsureApp(100, ""))

	app, err := s.GetApp(100)
	require.NoError(t, err)
	assert.Equal(t, "Game", app.Name)

	require.NoError(t, s.EnsureApp(100, "Renamed"))
	app, err = s.GetApp(100)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", app.Name)
}

func TestSetAppName(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, ""))

	require.NoError(t, s.SetAppName(100, "Named Later"))

	app, err := s.GetApp(100)
	require.NoError(t, err)
	assert.Equal(t, "Named Later", app.Name)
}

func TestGetApp_NotInstalled(t *testing.T) {
	s := openStore(t)

	_, err := s.GetApp(999)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.GetErrorCode(err))
}

func TestGetApp_IncludesDepotsOrdered(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, "Game"))
	require.NoError(t, s.UpsertDepot(100, depot(230, 3)))
	require.NoError(t, s.UpsertDepot(100, depot(210, 1)))
	require.NoError(t, s.UpsertDepot(100, depot(220, 2)))

	app, err := s.GetApp(100)
	require.NoError(t, err)

	require.Len(t, app.Depots, 3)
	assert.Equal(t, uint32(210), app.Depots[0].DepotID)
	assert.Equal(t, uint32(220), app.Depots[1].DepotID)
	assert.Equal(t, uint32(230), app.Depots[2].DepotID)
	assert.False(t, app.InstalledAt.IsZero())
}

func TestListApps(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, "First"))
	require.NoError(t, s.UpsertDepot(100, depot(200, 1)))
	require.NoError(t, s.UpsertDepot(100, depot(201, 2)))
	require.NoError(t, s.EnsureApp(300, "Second"))

	apps, err := s.ListApps()
	require.NoError(t, err)

	require.Len(t, apps, 2)
	assert.Equal(t, uint32(100), apps[0].AppID)
	assert.Equal(t, 2, apps[0].DepotCount)
	assert.Equal(t, uint32(300), apps[1].AppID)
	assert.Equal(t, 0, apps[1].DepotCount, "an application may own no depots")
}

func TestDeleteApp_CascadesAndReturnsDepots(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, "Game"))
	require.NoError(t, s.UpsertDepot(100, depot(200, 1)))
	require.NoError(t, s.EnsureApp(300, "Other"))
	require.NoError(t, s.UpsertDepot(300, depot(400, 1)))

	removed, err := s.DeleteApp(100)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, uint32(200), removed[0].DepotID)

	_, owned, err := s.Owner(200)
	require.NoError(t, err)
	assert.False(t, owned, "depot rows cascade away with their application")

	owner, owned, err := s.Owner(400)
	require.NoError(t, err)
	require.True(t, owned)
	assert.Equal(t, uint32(300), owner, "other applications keep their rows")
}

func TestDeleteApp_NotInstalled(t *testing.T) {
	s := openStore(t)

	_, err := s.DeleteApp(999)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.GetErrorCode(err))
}

func TestDeleteAll(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, "First"))
	require.NoError(t, s.UpsertDepot(100, depot(200, 1)))
	require.NoError(t, s.EnsureApp(300, "Second"))

	prior, err := s.DeleteAll()
	require.NoError(t, err)
	require.Len(t, prior, 2)
	assert.Equal(t, uint32(100), prior[0].AppID)
	require.Len(t, prior[0].Depots, 1)

	st, err := s.Stat()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestStat(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, ""))
	require.NoError(t, s.UpsertDepot(100, depot(200, 1)))
	require.NoError(t, s.UpsertDepot(100, depot(201, 2)))

	st, err := s.Stat()
	require.NoError(t, err)
	assert.Equal(t, Stats{Apps: 1, Depots: 2}, st)
}

func TestAllIDs(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.EnsureApp(100, ""))
	require.NoError(t, s.UpsertDepot(100, depot(200, 1)))
	require.NoError(t, s.UpsertDepot(100, depot(201, 2)))

	appIDs, depotIDs, err := s.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, map[uint32]bool{100: true}, appIDs)
	assert.Equal(t, map[uint32]bool{200: true, 201: true}, depotIDs)
}

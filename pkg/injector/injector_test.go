package injector

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/ini.v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotkit/depotkit/pkg/config"
	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/paths"
)

func newPaths(t *testing.T, loaderDir string) *paths.Paths {
	t.Helper()
	settings := &config.Settings{}
	settings.Steam.Dir = "/steam"
	settings.Loader.Dir = loaderDir
	settings.Database.Path = filepath.Join(t.TempDir(), "test.db")
	p, err := paths.New(settings)
	require.NoError(t, err)
	return p
}

func TestConfigure(t *testing.T) {
	loaderDir := t.TempDir()
	iniPath := filepath.Join(loaderDir, "NormalMode", "DLLInjector.ini")
	require.NoError(t, os.MkdirAll(filepath.Dir(iniPath), 0755))
	require.NoError(t, os.WriteFile(iniPath, []byte(`[DLLInjector]
AllowMultipleInstancesOfDLLInjector = 0
UseFullPathsFromIni = 0
Exe = old.exe
`), 0644))

	p := newPaths(t, loaderDir)
	require.NoError(t, Configure(p))

	cfg, err := ini.Load(iniPath)
	require.NoError(t, err)
	section := cfg.Section("DLLInjector")
	assert.Equal(t, "1", section.Key("UseFullPathsFromIni").String())
	assert.Equal(t, p.SteamExePath(), section.Key("Exe").String())
	assert.Equal(t, p.InjectorDLLPath(), section.Key("Dll").String())
	assert.Equal(t, "0", section.Key("AllowMultipleInstancesOfDLLInjector").String(),
		"unrelated keys survive the rewrite")
}

func TestConfigure_MissingFileIsIOError(t *testing.T) {
	p := newPaths(t, t.TempDir())

	err := Configure(p)
	require.Error(t, err)
	assert.Equal(t, errors.ErrIO, errors.GetErrorCode(err))
}

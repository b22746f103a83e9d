// Package commands holds the operations exposed to the caller, one
// subpackage per verb, plus the shared environment wiring they run in.
package commands

import (
	"github.com/depotkit/depotkit/pkg/config"
	"github.com/depotkit/depotkit/pkg/filesystem"
	"github.com/depotkit/depotkit/pkg/installer"
	"github.com/depotkit/depotkit/pkg/paths"
	"github.com/depotkit/depotkit/pkg/store"
	"github.com/depotkit/depotkit/pkg/types"
)

// Env bundles the resolved configuration, store handles and orchestrator a
// command runs against.
type Env struct {
	Settings  *config.Settings
	Paths     *paths.Paths
	Store     *store.Store
	Installer *installer.Installer
	FS        types.FS
}

// NewEnv loads configuration (from the given path, or the default location
// when empty), opens the database and wires the orchestrator.
func NewEnv(configPath string) (*Env, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	p, err := paths.New(settings)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(p.DatabasePath())
	if err != nil {
		return nil, err
	}

	fs := filesystem.NewOS()
	return &Env{
		Settings:  settings,
		Paths:     p,
		Store:     db,
		Installer: installer.New(fs, p, db, settings),
		FS:        fs,
	}, nil
}

// Close releases the environment's database handle.
func (e *Env) Close() error {
	return e.Store.Close()
}

// Package list reports the installed applications with their depot counts.
package list

import (
	"github.com/depotkit/depotkit/pkg/store"
	"github.com/depotkit/depotkit/pkg/types"
)

// Run returns the installed application list, ordered by application id.
func Run(db *store.Store) ([]types.InstalledApp, error) {
	return db.ListApps()
}

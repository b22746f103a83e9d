// Package stats aggregates statistics across the database, the depot cache
// and the loader allow-list.
package stats

import (
	"github.com/depotkit/depotkit/pkg/applist"
	"github.com/depotkit/depotkit/pkg/config"
	"github.com/depotkit/depotkit/pkg/depotcache"
	"github.com/depotkit/depotkit/pkg/paths"
	"github.com/depotkit/depotkit/pkg/store"
	"github.com/depotkit/depotkit/pkg/types"
)

// Report is the aggregate view shown to the caller.
type Report struct {
	Database   store.Stats
	DepotCache depotcache.Info
	AppList    applist.Stats
}

// Run gathers statistics from the three read-only surfaces.
func Run(fs types.FS, p *paths.Paths, db *store.Store, settings *config.Settings) (Report, error) {
	var report Report

	dbStats, err := db.Stat()
	if err != nil {
		return report, err
	}
	report.Database = dbStats

	cacheInfo, err := depotcache.New(fs, p.DepotCacheDir()).Stat()
	if err != nil {
		return report, err
	}
	report.DepotCache = cacheInfo

	appIDs, depotIDs, err := db.AllIDs()
	if err != nil {
		return report, err
	}
	listStats, err := applist.New(fs, p.AppListDir(), settings.AppList.FiniteSlots, settings.AppList.MaxSlots).
		Stat(appIDs, depotIDs)
	if err != nil {
		return report, err
	}
	report.AppList = listStats

	return report, nil
}

// Package store is the installation database: the durable record of which
// applications and depots are installed, and the single source of truth the
// other four stores are reconciled against.
package store

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for installation records.
type Store struct {
	db *sql.DB
}

// Open creates or opens the sqlite database at the given path, creating
// parent directories, applying pragmas and the schema. Idempotent.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDBOpen, "failed to create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDBOpen, "failed to open database %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, errors.ErrDBOpen, "failed to connect to database %s", path)
	}

	// SQLite supports one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, errors.ErrDBOpen, "failed to execute %q", pragma)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrDBOpen, "failed to apply schema")
	}

	logger := logging.GetLogger("store")
	logger.Debug().Str("path", path).Msg("Database opened")
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Owner returns the application id owning the depot, or false when no
// application owns it.
func (s *Store) Owner(depotID uint32) (uint32, bool, error) {
	var appID uint32
	err := s.db.QueryRow(`SELECT app_id FROM depots WHERE depot_id = ?`, depotID).Scan(&appID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, errors.ErrDBQuery, "failed to look up owner of depot %d", depotID)
	}
	return appID, true, nil
}

// UpsertDepot creates or replaces the row for the depot under the given
// application. A depot owned by a different application is a CONFLICT; the
// caller decides whether to uninstall the owner first.
func (s *Store) UpsertDepot(appID uint32, depot types.Depot) error {
	owner, owned, err := s.Owner(depot.DepotID)
	if err != nil {
		return err
	}
	if owned && owner != appID {
		return errors.Newf(errors.ErrConflict, "depot %d is already owned by application %d", depot.DepotID, owner).
			WithDetail("depot", depot.DepotID).
			WithDetail("owner", owner)
	}
	return s.upsertDepot(appID, depot)
}

// ReassignDepot moves the depot row to the given application regardless of
// the current owner. Callers must have confirmed the takeover first.
func (s *Store) ReassignDepot(appID uint32, depot types.Depot) error {
	return s.upsertDepot(appID, depot)
}

func (s *Store) upsertDepot(appID uint32, depot types.Depot) error {
	_, err := s.db.Exec(`
		INSERT INTO depots (depot_id, app_id, manifest_id, decryption_key)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(depot_id) DO UPDATE SET
			app_id = excluded.app_id,
			manifest_id = excluded.manifest_id,
			decryption_key = excluded.decryption_key,
			installed_at = CURRENT_TIMESTAMP
	`, depot.DepotID, appID, depot.ManifestID, depot.DecryptionKey)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDBQuery, "failed to upsert depot %d", depot.DepotID)
	}
	return nil
}

// EnsureApp creates or refreshes the application row. An empty name never
// overwrites a previously recorded one.
func (s *Store) EnsureApp(appID uint32, name string) error {
	_, err := s.db.Exec(`
		INSERT INTO apps (app_id, name)
		VALUES (?, ?)
		ON CONFLICT(app_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE apps.name END,
			installed_at = CURRENT_TIMESTAMP
	`, appID, name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDBQuery, "failed to upsert application %d", appID)
	}
	return nil
}

// SetAppName updates the display name for an installed application.
func (s *Store) SetAppName(appID uint32, name string) error {
	_, err := s.db.Exec(`UPDATE apps SET name = ? WHERE app_id = ?`, name, appID)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDBQuery, "failed to update name of application %d", appID)
	}
	return nil
}

// HasApp reports whether the application id is installed.
func (s *Store) HasApp(appID uint32) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM apps WHERE app_id = ? LIMIT 1`, appID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrDBQuery, "failed to check application %d", appID)
	}
	return true, nil
}

// GetApp returns the installed application with its full depot set.
func (s *Store) GetApp(appID uint32) (types.Application, error) {
	app := types.Application{AppID: appID}
	err := s.db.QueryRow(`SELECT name, installed_at FROM apps WHERE app_id = ?`, appID).
		Scan(&app.Name, &app.InstalledAt)
	if err == sql.ErrNoRows {
		return app, errors.Newf(errors.ErrNotFound, "application %d is not installed", appID)
	}
	if err != nil {
		return app, errors.Wrapf(err, errors.ErrDBQuery, "failed to load application %d", appID)
	}

	depots, err := s.ListDepots(appID)
	if err != nil {
		return app, err
	}
	app.Depots = depots
	return app, nil
}

// ListDepots returns the application's depots ordered by depot id.
func (s *Store) ListDepots(appID uint32) ([]types.Depot, error) {
	rows, err := s.db.Query(`
		SELECT depot_id, manifest_id, decryption_key
		FROM depots WHERE app_id = ?
		ORDER BY depot_id ASC
	`, appID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDBQuery, "failed to list depots of application %d", appID)
	}
	defer rows.Close()

	var depots []types.Depot
	for rows.Next() {
		var d types.Depot
		if err := rows.Scan(&d.DepotID, &d.ManifestID, &d.DecryptionKey); err != nil {
			return nil, errors.Wrap(err, errors.ErrDBQuery, "failed to scan depot row")
		}
		depots = append(depots, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDBQuery, "failed to iterate depot rows")
	}
	return depots, nil
}

// ListApps returns all installed applications with depot counts, ordered by
// application id.
func (s *Store) ListApps() ([]types.InstalledApp, error) {
	rows, err := s.db.Query(`
		SELECT a.app_id, a.name, COUNT(d.depot_id)
		FROM apps a LEFT JOIN depots d ON d.app_id = a.app_id
		GROUP BY a.app_id
		ORDER BY a.app_id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDBQuery, "failed to list applications")
	}
	defer rows.Close()

	var apps []types.InstalledApp
	for rows.Next() {
		var a types.InstalledApp
		if err := rows.Scan(&a.AppID, &a.Name, &a.DepotCount); err != nil {
			return nil, errors.Wrap(err, errors.ErrDBQuery, "failed to scan application row")
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDBQuery, "failed to iterate application rows")
	}
	return apps, nil
}

// DeleteApp removes the application and all its rows, returning the depot
// set that was removed so the caller can drive store cleanup.
func (s *Store) DeleteApp(appID uint32) ([]types.Depot, error) {
	depots, err := s.ListDepots(appID)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec(`DELETE FROM apps WHERE app_id = ?`, appID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDBQuery, "failed to delete application %d", appID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.Newf(errors.ErrNotFound, "application %d is not installed", appID)
	}
	return depots, nil
}

// DeleteAll removes every row and returns the full prior state.
func (s *Store) DeleteAll() ([]types.Application, error) {
	apps, err := s.ListApps()
	if err != nil {
		return nil, err
	}

	prior := make([]types.Application, 0, len(apps))
	for _, a := range apps {
		app, err := s.GetApp(a.AppID)
		if err != nil {
			return nil, err
		}
		prior = append(prior, app)
	}

	if _, err := s.db.Exec(`DELETE FROM apps`); err != nil {
		return nil, errors.Wrap(err, errors.ErrDBQuery, "failed to clear database")
	}
	return prior, nil
}

// Stats are aggregate counts for the stats surface.
type Stats struct {
	Apps   int
	Depots int
}

// Stat returns aggregate row counts.
func (s *Store) Stat() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM apps`).Scan(&st.Apps); err != nil {
		return st, errors.Wrap(err, errors.ErrDBQuery, "failed to count applications")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM depots`).Scan(&st.Depots); err != nil {
		return st, errors.Wrap(err, errors.ErrDBQuery, "failed to count depots")
	}
	return st, nil
}

// AllIDs returns the application id set and depot id set currently
// installed, the desired content of the loader allow-list.
func (s *Store) AllIDs() (appIDs, depotIDs map[uint32]bool, err error) {
	appIDs = make(map[uint32]bool)
	depotIDs = make(map[uint32]bool)

	apps, err := s.ListApps()
	if err != nil {
		return nil, nil, err
	}
	for _, a := range apps {
		appIDs[a.AppID] = true
	}

	rows, err := s.db.Query(`SELECT depot_id FROM depots`)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrDBQuery, "failed to list depot ids")
	}
	defer rows.Close()
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrDBQuery, "failed to scan depot id")
		}
		depotIDs[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrDBQuery, "failed to iterate depot ids")
	}
	return appIDs, depotIDs, nil
}

// Package installer sequences the five stores per install, uninstall and
// clear-all request, and defines the pipeline's failure behavior.
//
// Forward order per application: cache manifests, merge config keys, write
// the descriptor, update the allow-list, then commit to the database. The
// database commit is last so a partially processed application never
// appears installed; files written before a failure are harmless until a
// database row references them. Uninstall runs the same stores in reverse,
// driven by the rows read before deletion.
package installer

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/depotkit/depotkit/pkg/acf"
	"github.com/depotkit/depotkit/pkg/applist"
	"github.com/depotkit/depotkit/pkg/config"
	"github.com/depotkit/depotkit/pkg/depotcache"
	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/paths"
	"github.com/depotkit/depotkit/pkg/steamcfg"
	"github.com/depotkit/depotkit/pkg/store"
	"github.com/depotkit/depotkit/pkg/types"
)

// ProgressFunc is invoked after each application id finishes, success or
// failure. Sub-step granularity is deliberately not exposed.
type ProgressFunc func(types.AppResult)

// Options control batch behavior.
type Options struct {
	// Reassign permits an install to take over depots currently owned by a
	// different application. Without it such a batch item fails with a
	// CONFLICT before any store is touched.
	Reassign bool
}

// Installer coordinates the five stores. Exactly one batch may run at a
// time; a file lock next to the database enforces this across processes.
type Installer struct {
	fs     types.FS
	paths  *paths.Paths
	db     *store.Store
	cache  *depotcache.Writer
	merger *steamcfg.Merger
	gen    *acf.Generator
	list   *applist.Manager
	lock   *flock.Flock
}

// New wires an Installer from resolved settings and an open database.
func New(fs types.FS, p *paths.Paths, db *store.Store, settings *config.Settings) *Installer {
	return &Installer{
		fs:     fs,
		paths:  p,
		db:     db,
		cache:  depotcache.New(fs, p.DepotCacheDir()),
		merger: steamcfg.New(fs, p.ConfigVDFPath()),
		gen:    acf.New(fs, p.SteamAppsDir(), p.DepotCacheDir()),
		list:   applist.New(fs, p.AppListDir(), settings.AppList.FiniteSlots, settings.AppList.MaxSlots),
		lock:   flock.New(p.LockPath()),
	}
}

// acquire takes the batch lock, failing fast when another batch holds it.
func (in *Installer) acquire() error {
	if err := os.MkdirAll(filepath.Dir(in.paths.LockPath()), 0755); err != nil {
		return errors.Wrap(err, errors.ErrIO, "failed to create lock directory")
	}
	locked, err := in.lock.TryLock()
	if err != nil {
		return errors.Wrap(err, errors.ErrIO, "failed to acquire batch lock")
	}
	if !locked {
		return errors.New(errors.ErrLockHeld, "another install/uninstall batch is in progress")
	}
	return nil
}

func (in *Installer) release() {
	_ = in.lock.Unlock()
}

// Install applies a batch of parsed credentials, one per application id.
// Forward failures abort only the failing application; a config merge
// failure aborts the whole batch. There is no automatic retry.
func (in *Installer) Install(creds []types.Credential, opts Options, progress ProgressFunc) (types.BatchResult, error) {
	logger := logging.GetLogger("installer")

	if err := in.acquire(); err != nil {
		return types.BatchResult{}, err
	}
	defer in.release()
	defer logging.LogOperationStart(logger, "install")()

	var batch types.BatchResult
	for _, cred := range creds {
		res := in.installOne(cred, opts)
		batch.Apps = append(batch.Apps, res)
		if progress != nil {
			progress(res)
		}
		if res.Err != nil {
			logger.Error().Err(res.Err).Uint32("app", cred.AppID).Str("step", string(res.Step)).Msg("Install failed")
			if errors.IsErrorCode(res.Err, errors.ErrConfigFormat) {
				// The shared config file is unparsable; continuing would
				// risk corrupting it for every remaining application.
				batch.Aborted = true
				return batch, res.Err
			}
			continue
		}
		logger.Info().Uint32("app", cred.AppID).Int("depots", res.DepotCount).Msg("Install committed")
	}
	return batch, nil
}

func (in *Installer) installOne(cred types.Credential, opts Options) types.AppResult {
	res := types.AppResult{AppID: cred.AppID, Step: types.StepParsed, DepotCount: len(cred.Depots)}

	fail := func(step types.Step, err error) types.AppResult {
		res.Step = step
		res.Err = err
		return res
	}

	// Ownership check before any store is mutated for this application.
	reassigned := make(map[uint32]bool)
	taken := make(map[uint32]bool)
	for _, d := range cred.Depots {
		owner, owned, err := in.db.Owner(d.DepotID)
		if err != nil {
			return fail(types.StepParsed, err)
		}
		if owned && owner != cred.AppID {
			if !opts.Reassign {
				return fail(types.StepParsed,
					errors.Newf(errors.ErrConflict, "depot %d is already owned by application %d", d.DepotID, owner).
						WithDetail("depot", d.DepotID).
						WithDetail("owner", owner).
						WithDetail("app", cred.AppID))
			}
			reassigned[owner] = true
			taken[d.DepotID] = true
		}
	}

	// Step: cache manifests.
	for _, d := range cred.Depots {
		if err := in.cacheManifest(cred, d); err != nil {
			return fail(types.StepCachedManifest, err)
		}
	}
	res.Step = types.StepCachedManifest

	// Step: merge decryption keys into config.vdf.
	if err := in.merger.SetKeys(cred.Depots); err != nil {
		return fail(types.StepConfigMerged, err)
	}
	res.Step = types.StepConfigMerged

	// Step: regenerate the descriptor from the post-update depot set. The
	// database is not yet committed, so merge its current rows with this
	// batch's depots.
	app, err := in.mergedApp(cred)
	if err != nil {
		return fail(types.StepDescriptorWritten, err)
	}
	if err := in.gen.Write(app); err != nil {
		return fail(types.StepDescriptorWritten, err)
	}
	res.Step = types.StepDescriptorWritten

	// Step: allow-list entries for the application and every depot.
	ids := make([]uint32, 0, len(app.Depots)+1)
	ids = append(ids, cred.AppID)
	for _, d := range app.Depots {
		ids = append(ids, d.DepotID)
	}
	if err := in.list.Add(ids...); err != nil {
		return fail(types.StepAppListUpdated, err)
	}
	res.Step = types.StepAppListUpdated

	// Step: commit. Only now does the application count as installed.
	if err := in.db.EnsureApp(cred.AppID, cred.Name); err != nil {
		return fail(types.StepDBCommit, err)
	}
	for _, d := range cred.Depots {
		commit := in.db.UpsertDepot
		if taken[d.DepotID] {
			commit = in.db.ReassignDepot
		}
		if err := commit(cred.AppID, d); err != nil {
			return fail(types.StepDBCommit, err)
		}
	}

	// Depots taken over from another application changed that application's
	// depot set; its dependent stores must follow.
	for owner := range reassigned {
		if err := in.refreshApp(owner); err != nil {
			return fail(types.StepDBCommit, err)
		}
	}

	res.Step = types.StepCommitted
	return res
}

// cacheManifest copies the bundle's manifest file for the depot into the
// depot cache. A bundle may omit the file when the canonical manifest is
// already cached from an earlier install.
func (in *Installer) cacheManifest(cred types.Credential, d types.Depot) error {
	src := filepath.Join(cred.SourceDir, d.ManifestName())
	if _, err := in.fs.Stat(src); err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrIO, "failed to stat manifest %s", src).WithDetail("path", src)
		}
		cached := filepath.Join(in.paths.DepotCacheDir(), d.ManifestName())
		if _, err := in.fs.Stat(cached); err == nil {
			return nil
		}
		return errors.Newf(errors.ErrIO, "manifest %s is neither in the bundle nor already cached", d.ManifestName()).
			WithDetail("path", src)
	}
	return in.cache.Write(d, src)
}

// mergedApp builds the application's post-commit view: current database
// rows overlaid with the batch's depots.
func (in *Installer) mergedApp(cred types.Credential) (types.Application, error) {
	app := types.Application{AppID: cred.AppID, Name: cred.Name}

	existing, err := in.db.ListDepots(cred.AppID)
	if err != nil {
		return app, err
	}
	if app.Name == "" {
		if has, err := in.db.HasApp(cred.AppID); err == nil && has {
			if stored, err := in.db.GetApp(cred.AppID); err == nil {
				app.Name = stored.Name
			}
		}
	}

	incoming := make(map[uint32]types.Depot, len(cred.Depots))
	for _, d := range cred.Depots {
		incoming[d.DepotID] = d
	}

	for _, d := range existing {
		if repl, ok := incoming[d.DepotID]; ok {
			app.Depots = append(app.Depots, repl)
			delete(incoming, d.DepotID)
			continue
		}
		app.Depots = append(app.Depots, d)
	}
	for _, d := range cred.Depots {
		if _, pending := incoming[d.DepotID]; pending {
			app.Depots = append(app.Depots, d)
		}
	}
	sort.Slice(app.Depots, func(i, j int) bool { return app.Depots[i].DepotID < app.Depots[j].DepotID })
	return app, nil
}

// refreshApp regenerates the descriptor of an application whose depot set
// changed underneath it (depot reassignment).
func (in *Installer) refreshApp(appID uint32) error {
	app, err := in.db.GetApp(appID)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrNotFound) {
			return in.gen.Remove(appID)
		}
		return err
	}
	return in.gen.Write(app)
}

// Uninstall removes one application from every store, driven by the
// database rows read before deletion. Missing files are success; permission
// and IO failures propagate.
func (in *Installer) Uninstall(appID uint32) error {
	logger := logging.GetLogger("installer")

	if err := in.acquire(); err != nil {
		return err
	}
	defer in.release()
	defer logging.LogOperationStart(logger, "uninstall")()

	app, err := in.db.GetApp(appID)
	if err != nil {
		return err
	}

	if err := in.removeStores(app); err != nil {
		return err
	}

	if _, err := in.db.DeleteApp(appID); err != nil {
		return err
	}

	logger.Info().Uint32("app", appID).Int("depots", len(app.Depots)).Msg("Uninstall completed")
	return nil
}

// removeStores reverses the forward order: allow-list, descriptor, config
// keys, cached manifests.
func (in *Installer) removeStores(app types.Application) error {
	ids := make([]uint32, 0, len(app.Depots)+1)
	ids = append(ids, app.AppID)
	depotIDs := make([]uint32, 0, len(app.Depots))
	for _, d := range app.Depots {
		ids = append(ids, d.DepotID)
		depotIDs = append(depotIDs, d.DepotID)
	}

	if err := in.list.Remove(ids...); err != nil {
		return err
	}

	if err := in.gen.Remove(app.AppID); err != nil {
		return err
	}

	if err := in.removeConfigKeys(depotIDs); err != nil {
		return err
	}

	for _, d := range app.Depots {
		if err := in.cache.Remove(d); err != nil {
			return err
		}
	}
	return nil
}

// removeConfigKeys deletes the depots' key entries. A config.vdf that does
// not exist has nothing to remove.
func (in *Installer) removeConfigKeys(depotIDs []uint32) error {
	if len(depotIDs) == 0 {
		return nil
	}
	if _, err := in.fs.Stat(in.paths.ConfigVDFPath()); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrIO, "failed to stat %s", in.paths.ConfigVDFPath())
	}
	return in.merger.RemoveKeys(depotIDs)
}

// ClearAll removes every application from every store and empties the
// database. The allow-list is wiped wholesale; this is the one path allowed
// to do so.
func (in *Installer) ClearAll() (int, error) {
	logger := logging.GetLogger("installer")

	if err := in.acquire(); err != nil {
		return 0, err
	}
	defer in.release()
	defer logging.LogOperationStart(logger, "clear-all")()

	listed, err := in.db.ListApps()
	if err != nil {
		return 0, err
	}

	var allDepotIDs []uint32
	for _, entry := range listed {
		app, err := in.db.GetApp(entry.AppID)
		if err != nil {
			return 0, err
		}
		if err := in.gen.Remove(app.AppID); err != nil {
			return 0, err
		}
		for _, d := range app.Depots {
			allDepotIDs = append(allDepotIDs, d.DepotID)
			if err := in.cache.Remove(d); err != nil {
				return 0, err
			}
		}
	}

	if _, err := in.list.Clear(); err != nil {
		return 0, err
	}

	if err := in.removeConfigKeys(allDepotIDs); err != nil {
		return 0, err
	}

	prior, err := in.db.DeleteAll()
	if err != nil {
		return 0, err
	}

	logger.Info().Int("apps", len(prior)).Msg("Cleared all application data")
	return len(prior), nil
}

// Reconcile repairs the allow-list against the database: the represented id
// set becomes exactly the installed application and depot ids.
func (in *Installer) Reconcile() error {
	if err := in.acquire(); err != nil {
		return err
	}
	defer in.release()

	appIDs, depotIDs, err := in.db.AllIDs()
	if err != nil {
		return err
	}
	desired := make(map[uint32]bool, len(appIDs)+len(depotIDs))
	for id := range appIDs {
		desired[id] = true
	}
	for id := range depotIDs {
		desired[id] = true
	}
	return in.list.Reconcile(desired)
}

// Renumber compacts the allow-list slot numbering after reconciliation left
// gaps. Slot numbers carry no meaning, so this is purely cosmetic.
func (in *Installer) Renumber() error {
	if err := in.acquire(); err != nil {
		return err
	}
	defer in.release()

	return in.list.Renumber()
}

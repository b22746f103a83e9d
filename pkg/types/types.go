// Package types defines the core value types shared across the pipeline:
// applications, depots, credential bundles, and per-application results.
package types

import (
	"fmt"
	"time"
)

// Depot is one Steam content bucket owned by an application. The decryption
// key is persisted as 64 lowercase hex characters; the manifest id names the
// depot content version the credential bundle ships.
type Depot struct {
	DepotID       uint32
	ManifestID    uint64
	DecryptionKey string
}

// ManifestName returns the canonical depot cache filename for this depot.
func (d Depot) ManifestName() string {
	return fmt.Sprintf("%d_%d.manifest", d.DepotID, d.ManifestID)
}

// Application is an installed title and its current depot set.
type Application struct {
	AppID       uint32
	Name        string
	Depots      []Depot
	InstalledAt time.Time
}

// Credential is the parsed content of one <AppID>.lua file together with the
// manifest files that accompanied it. SourceDir is the directory the bundle
// was read from; manifest files are looked up there by canonical name.
type Credential struct {
	AppID     uint32
	Name      string
	Depots    []Depot
	SourceDir string
}

// Step identifies a stage of the per-application install state machine.
type Step string

const (
	StepParsed            Step = "parsed"
	StepCachedManifest    Step = "cached-manifest"
	StepConfigMerged      Step = "config-merged"
	StepDescriptorWritten Step = "descriptor-written"
	StepAppListUpdated    Step = "applist-updated"
	StepDBCommit          Step = "db-commit"
	StepCommitted         Step = "committed"
)

// AppResult reports the outcome of one application within a batch.
type AppResult struct {
	AppID      uint32
	Step       Step
	DepotCount int
	Err        error
}

// Success reports whether the application reached the committed state.
func (r AppResult) Success() bool {
	return r.Err == nil && r.Step == StepCommitted
}

// BatchResult aggregates per-application outcomes of one orchestrator batch.
type BatchResult struct {
	Apps    []AppResult
	Aborted bool
}

// Failed returns the results of applications that did not commit.
func (b BatchResult) Failed() []AppResult {
	var failed []AppResult
	for _, r := range b.Apps {
		if !r.Success() {
			failed = append(failed, r)
		}
	}
	return failed
}

// InstalledApp is the list surface shown to the caller: an application id,
// its display name, and how many depots it owns.
type InstalledApp struct {
	AppID      uint32
	Name       string
	DepotCount int
}

// Package apply implements the install command: collect credential bundles,
// group them by application id, and run the forward pipeline.
package apply

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/installer"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/lua"
	"github.com/depotkit/depotkit/pkg/types"
)

// Options defines the inputs of one apply batch.
type Options struct {
	// Inputs are credential files (<AppID>.lua) or directories containing
	// them. Manifest files are looked up next to each credential.
	Inputs []string

	// Reassign allows taking over depots owned by another application.
	Reassign bool

	// Progress, when set, is invoked after each application finishes.
	Progress installer.ProgressFunc
}

// Run parses the inputs and executes the install batch. Parse and naming
// failures on individual files fail the whole collection step before any
// store is touched; the caller supplies corrected files and re-invokes.
func Run(fsys types.FS, orch *installer.Installer, opts Options) (types.BatchResult, error) {
	logger := logging.GetLogger("commands.apply")

	creds, err := Collect(fsys, opts.Inputs)
	if err != nil {
		return types.BatchResult{}, err
	}
	if len(creds) == 0 {
		return types.BatchResult{}, errors.New(errors.ErrInvalidInput, "no credential files found in the given inputs")
	}

	logger.Info().Int("apps", len(creds)).Msg("Starting install batch")
	return orch.Install(creds, installer.Options{Reassign: opts.Reassign}, opts.Progress)
}

// Collect turns files and directories into parsed credentials, one per
// application id. A later bundle for the same application id replaces an
// earlier one.
func Collect(fsys types.FS, inputs []string) ([]types.Credential, error) {
	var files []string
	for _, input := range inputs {
		info, err := fsys.Stat(input)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrIO, "cannot access input %s", input).WithDetail("path", input)
		}
		if info.IsDir() {
			found, err := luaFilesIn(fsys, input)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		files = append(files, input)
	}

	byApp := make(map[uint32]types.Credential)
	var order []uint32
	for _, file := range files {
		raw, err := fsys.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrIO, "failed to read credential %s", file).WithDetail("path", file)
		}
		cred, err := lua.Parse(file, raw)
		if err != nil {
			return nil, err
		}
		cred.SourceDir = filepath.Dir(file)
		if _, seen := byApp[cred.AppID]; !seen {
			order = append(order, cred.AppID)
		}
		byApp[cred.AppID] = cred
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	creds := make([]types.Credential, 0, len(order))
	for _, appID := range order {
		creds = append(creds, byApp[appID])
	}
	return creds, nil
}

func luaFilesIn(fsys types.FS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIO, "failed to read directory %s", dir).WithDetail("path", dir)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".lua") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

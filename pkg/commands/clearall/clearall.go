// Package clearall implements the clear-all command: every application, every
// store, the whole database.
package clearall

import (
	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/installer"
	"github.com/depotkit/depotkit/pkg/logging"
)

// Options gate the destructive path.
type Options struct {
	// Confirmed must be set; the CLI maps it to an explicit flag.
	Confirmed bool
}

// Run wipes all five stores. Returns the number of applications removed.
func Run(orch *installer.Installer, opts Options) (int, error) {
	if !opts.Confirmed {
		return 0, errors.New(errors.ErrInvalidInput, "clear-all requires explicit confirmation")
	}
	logger := logging.GetLogger("commands.clearall")
	logger.Warn().Msg("Clearing all application data")
	return orch.ClearAll()
}

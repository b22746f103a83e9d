// Package remove implements the uninstall command for one application id.
package remove

import (
	"github.com/depotkit/depotkit/pkg/installer"
	"github.com/depotkit/depotkit/pkg/logging"
)

// Options defines the uninstall target.
type Options struct {
	AppID uint32
}

// Run removes the application from every store and deletes its database
// rows. Missing store files are treated as already cleaned up.
func Run(orch *installer.Installer, opts Options) error {
	logger := logging.GetLogger("commands.remove")
	logger.Info().Uint32("app", opts.AppID).Msg("Starting uninstall")
	return orch.Uninstall(opts.AppID)
}

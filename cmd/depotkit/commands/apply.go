package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/pkg/commands/apply"
	"github.com/depotkit/depotkit/pkg/types"
)

func newApplyCmd(configPath *string) *cobra.Command {
	var reassign bool

	cmd := &cobra.Command{
		Use:   "apply <file-or-dir>...",
		Short: "Install credential bundles",
		Long: `Apply installs one or more credential bundles. Each bundle is an
<AppID>.lua file with its <depotid>_<manifestid>.manifest files next to it;
directories are scanned for .lua files. Bundles are grouped by application
id and each application is installed independently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := apply.Run(env.FS, env.Installer, apply.Options{
				Inputs:   args,
				Reassign: reassign,
				Progress: func(res types.AppResult) {
					if res.Success() {
						fmt.Fprintf(os.Stdout, "installed %d (%d depots)\n", res.AppID, res.DepotCount)
						return
					}
					fmt.Fprintf(os.Stderr, "failed %d at %s: %v\n", res.AppID, res.Step, res.Err)
				},
			})
			if err != nil {
				return err
			}
			if failed := result.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d application(s) failed", len(failed), len(result.Apps))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reassign, "reassign", false, "Take over depots currently owned by another application")
	return cmd
}

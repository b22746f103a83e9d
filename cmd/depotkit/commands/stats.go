package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/pkg/commands/stats"
)

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics across the stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := stats.Run(env.FS, env.Paths, env.Store, env.Settings)
			if err != nil {
				return err
			}

			fmt.Printf("database:    %d application(s), %d depot(s)\n", report.Database.Apps, report.Database.Depots)
			fmt.Printf("depot cache: %d manifest(s), %.1f MiB\n",
				report.DepotCache.ManifestCount, float64(report.DepotCache.TotalBytes)/(1024*1024))
			fmt.Printf("allow-list:  %d slot(s): %d app id(s), %d depot id(s), %d foreign\n",
				report.AppList.TotalSlots, report.AppList.AppIDs, report.AppList.DepotIDs, report.AppList.Foreign)
			return nil
		},
	}
}

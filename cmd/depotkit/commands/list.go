package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/pkg/commands/list"
)

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			apps, err := list.Run(env.Store)
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				fmt.Println("no applications installed")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APPID\tNAME\tDEPOTS")
			for _, app := range apps {
				fmt.Fprintf(w, "%d\t%s\t%d\n", app.AppID, app.Name, app.DepotCount)
			}
			return w.Flush()
		},
	}
}

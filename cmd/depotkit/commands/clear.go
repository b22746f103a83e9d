package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/pkg/commands/clearall"
)

func newClearCmd(configPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every installed application from every store",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			removed, err := clearall.Run(env.Installer, clearall.Options{Confirmed: yes})
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d application(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm removal of all application data")
	return cmd
}

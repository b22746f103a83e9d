package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/pkg/commands/remove"
)

func newRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <appid>",
		Short: "Uninstall one application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid application id %q", args[0])
			}

			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := remove.Run(env.Installer, remove.Options{AppID: uint32(appID)}); err != nil {
				return err
			}
			fmt.Printf("removed %d\n", appID)
			return nil
		},
	}
}

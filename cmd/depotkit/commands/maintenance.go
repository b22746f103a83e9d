package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/pkg/injector"
)

func newReconcileCmd(configPath *string) *cobra.Command {
	var renumber bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the loader allow-list against the database",
		Long: `Reconcile makes the allow-list match the database exactly, adding
missing entries and removing stale ones. Entries belonging to other tools
are removed; run it only when the database is the intended source of truth.

With --renumber the surviving slot files are additionally rewritten
sequentially from 0, closing the gaps removals leave behind.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Installer.Reconcile(); err != nil {
				return err
			}
			if renumber {
				if err := env.Installer.Renumber(); err != nil {
					return err
				}
			}
			fmt.Println("allow-list reconciled")
			return nil
		},
	}

	cmd.Flags().BoolVar(&renumber, "renumber", false, "Compact allow-list slot numbering after reconciling")
	return cmd
}

func newConfigureInjectorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "configure-injector",
		Short: "Point the loader's DLLInjector.ini at Steam and the loader DLL",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := injector.Configure(env.Paths); err != nil {
				return err
			}
			fmt.Println("injector configured")
			return nil
		},
	}
}

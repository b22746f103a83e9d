package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/depotkit/depotkit/internal/version"
	"github.com/depotkit/depotkit/pkg/commands"
	"github.com/depotkit/depotkit/pkg/logging"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity  int
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:   "depotkit",
		Short: "Manage Steam depot credentials across Steam, the loader and a local database",
		Long: `depotkit ingests depot credential bundles (<AppID>.lua plus manifest
files) and keeps five stores consistent: Steam's depot cache, config.vdf,
per-app descriptors, the loader's allow-list, and a local database that
records what is installed so it can be reversed.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase logging verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: ~/.config/depotkit/config.toml)")

	rootCmd.AddCommand(newApplyCmd(&configPath))
	rootCmd.AddCommand(newRemoveCmd(&configPath))
	rootCmd.AddCommand(newClearCmd(&configPath))
	rootCmd.AddCommand(newListCmd(&configPath))
	rootCmd.AddCommand(newStatsCmd(&configPath))
	rootCmd.AddCommand(newReconcileCmd(&configPath))
	rootCmd.AddCommand(newConfigureInjectorCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including commit hash and build date`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("depotkit version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Printf("Commit: %s\n", version.Commit)
			}
			if version.Date != "" {
				fmt.Printf("Built: %s\n", version.Date)
			}
		},
	}
}

// newEnv builds the command environment, shared by every subcommand.
func newEnv(configPath *string) (*commands.Env, error) {
	env, err := commands.NewEnv(*configPath)
	if err != nil {
		return nil, err
	}
	return env, nil
}

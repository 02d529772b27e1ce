package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View taco configuration",
	Long: `View taco configuration.

Without arguments, displays the current configuration. Every key can be
overridden with an environment variable, e.g. TACO_STORE_LOCATION for
store.location.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a config file at ~/.config/taco/config.yaml (or --config) with every available option.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	repo := repository()
	cfg, err := repo.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if repo.Exists() {
		fmt.Fprintf(out, "Config file: %s\n\n", repo.Path())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n\n")
	}
	settings := cfg.Settings()
	for _, key := range slices.Sorted(maps.Keys(settings)) {
		fmt.Fprintf(out, "%s: %v\n", key, settings[key])
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	repo := repository()
	if repo.Exists() {
		return fmt.Errorf("config file already exists at %s", repo.Path())
	}
	cfg, err := repo.Load()
	if err != nil {
		return err
	}
	if err := repo.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", repo.Path())
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), repository().Path())
	return err
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/tanya/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage engine configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file to the config path.
Edit it to add provider credentials, agents, routing rules and tools
before starting the engine.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	if err := loader.Save(config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration written to: %s\n", loader.GetConfigPath())
	fmt.Println("Add AI profiles, agents and routing rules, then run: tanya serve")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(cfg.String())
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tturner/evoprobe/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or validate client configuration",
	}
	cmd.AddCommand(newConfigPrintDefaultCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigPrintDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-default",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(config.CreateDefaultConfig())
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return missingFlagError(cmd, "--config")
			}
			cfg, err := config.LoadConfig(configPath, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (panel %s:%d)\n", configPath, cfg.Panel.Address, cfg.Panel.Port)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (required)")
	return cmd
}

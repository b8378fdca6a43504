package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Sanitize()
		return cfg.Encode(os.Stdout)
	},
}

func init() {
	addConfigFlags(configDumpCmd)
	configCmd.AddCommand(configDumpCmd)
}

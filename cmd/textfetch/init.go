package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyu/textfetch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	initCmd.Flags().Bool("from-current", false, "Write the resolved effective config instead of the commented example")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	fromCurrent, _ := cmd.Flags().GetBool("from-current")

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if fromCurrent {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Write(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	} else if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage DepFlow configuration",
	Long:  `Commands for inspecting the DepFlow configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Displays the effective configuration after defaults and flag overrides are applied.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := showConfig(); err != nil {
			log.Printf("Failed to show configuration: %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func showConfig() error {
	configMgr := GetConfigManager()

	data, err := json.MarshalIndent(configMgr.Get(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

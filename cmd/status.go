package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"depflow/report"
)

var clearReport bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent install batch",
	Long:  `Displays the outcome of the most recent install batch for the project.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := showStatus(); err != nil {
			log.Printf("Failed to read batch report: %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&clearReport, "clear", false, "Remove the batch report after showing it")
}

func showStatus() error {
	configMgr := GetConfigManager()
	dir := configMgr.Get().Dir

	r, err := report.Read(dir)
	if err != nil {
		return err
	}

	if r == nil {
		fmt.Println("No install batches recorded")
		return nil
	}

	fmt.Printf("Batch:          %s\n", r.ID)
	fmt.Printf("Tool:           %s\n", r.Tool)
	fmt.Printf("Classification: %s\n", r.Classification)
	fmt.Printf("Packages:       %s\n", strings.Join(r.Packages, ", "))
	fmt.Printf("Finished:       %s (took %s)\n", r.FinishedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Printf("Status:         %s\n", r.Status)
	if r.Error != "" {
		fmt.Printf("Error:          %s\n", r.Error)
	}

	if clearReport {
		if err := report.Clear(dir); err != nil {
			return err
		}
		fmt.Println("Report cleared")
	}

	return nil
}

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"depflow/config"
	"depflow/installer"
	"depflow/locker"
	"depflow/logger"
	"depflow/report"
	"depflow/scheduler"
)

var (
	// Global flags shared across commands
	verbose    bool
	configFile string
	projectDir string

	// Version is set by the build process
	Version string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "depflow",
	Short: "DepFlow - Debounced batch install queue for project dependencies",
	Long: `DepFlow coalesces individual "ensure package installed" requests into
minimal npm/yarn invocations. Requests are grouped by dependency type,
bursts collapse into one external command per group, and every request
is individually reported as installed or failed.`,
}

// Execute adds all child commands to the root command and sets appropriate flags.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "depflow.json", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "d", "", "Project directory (overrides the config file)")
}

// GetVersion returns the current version string
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// GetUserAgent returns the User-Agent string for outbound connections
func GetUserAgent() string {
	return fmt.Sprintf("DepFlow/%s", GetVersion())
}

// GetConfigManager loads and returns the configuration manager
func GetConfigManager() *config.Manager {
	configMgr, err := config.NewManager(configFile)
	if err != nil {
		log.Printf("Failed to load configuration from %s: %v", configFile, err)
		os.Exit(1)
	}

	if projectDir != "" {
		configMgr.Get().Dir = projectDir
	}

	return configMgr
}

// newScheduler wires the runner, manifest lock, event log and batch report
// for the configured project directory.
func newScheduler(configMgr *config.Manager) (*scheduler.Scheduler, *logger.Manager, error) {
	cfg := configMgr.Get()

	runner, err := installer.ForTool(cfg.Tool, cfg.Dir)
	if err != nil {
		return nil, nil, err
	}

	if verbose || cfg.Verbose {
		log.Printf("Using %s for installs in %s", runner.Name(), cfg.Dir)
	}

	events := logger.NewManager()
	if len(cfg.Logging) > 0 {
		if err := events.UpdateSinks(cfg.Logging); err != nil {
			log.Printf("Warning: failed to configure event sinks: %v", err)
		}
	}
	configMgr.OnChange(func(c *config.Config) {
		if err := events.UpdateSinks(c.Logging); err != nil {
			log.Printf("Warning: failed to update event sinks: %v", err)
		}
	})

	locks := locker.NewRegistry(cfg.Dir)

	sched := scheduler.New(runner, locks, &scheduler.Config{
		Resource: cfg.Manifest,
		Debounce: configMgr.Debounce(),
		Verbose:  verbose || cfg.Verbose,
		OnBatch: func(b scheduler.Batch) {
			recordBatch(cfg.Dir, events, b)
		},
	})

	return sched, events, nil
}

// recordBatch writes the batch outcome to the report file and ships it to
// the configured event sinks.
func recordBatch(dir string, events *logger.Manager, b scheduler.Batch) {
	r := &report.BatchReport{
		ID:             b.ID,
		Tool:           b.Tool,
		Classification: string(b.Classification),
		Packages:       b.Names,
		StartedAt:      b.Started,
		FinishedAt:     b.Finished,
		Status:         report.StatusSucceeded,
	}
	if b.Err != nil {
		r.Status = report.StatusFailed
		r.Error = b.Err.Error()
	}

	if err := report.Write(dir, r); err != nil {
		log.Printf("Warning: failed to write batch report: %v", err)
	}

	if events.HasSinks() {
		events.Write(&logger.Event{Data: map[string]interface{}{
			"timestamp":      b.Finished,
			"batch_id":       b.ID,
			"tool":           b.Tool,
			"classification": string(b.Classification),
			"packages":       b.Names,
			"duration_ms":    b.Finished.Sub(b.Started).Milliseconds(),
			"status":         string(r.Status),
			"error":          r.Error,
		}})
	}
}

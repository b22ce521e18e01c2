package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"depflow/scheduler"
)

var addDev bool

var addCmd = &cobra.Command{
	Use:   "add [packages...]",
	Short: "Queue packages for installation",
	Long: `Queue one or more packages for installation and wait for the result.

All packages given in one invocation share a dependency type and are
materialized by a single npm/yarn command. The command exits non-zero if
any package failed to install.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAdd(args)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().BoolVarP(&addDev, "dev", "D", false, "Install as development dependencies")
}

func runAdd(names []string) {
	configMgr := GetConfigManager()

	sched, events, err := newScheduler(configMgr)
	if err != nil {
		log.Printf("Failed to set up installer: %v", err)
		os.Exit(1)
	}
	defer events.Close()

	class := scheduler.Production
	if addDev {
		class = scheduler.Development
	}

	tickets := make([]*scheduler.Ticket, 0, len(names))
	for _, name := range names {
		tickets = append(tickets, sched.Enqueue(name, class))
	}

	failed := false
	for i, ticket := range tickets {
		if err := ticket.Wait(context.Background()); err != nil {
			log.Printf("%s: %v", names[i], err)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}

	log.Printf("Installed %d package(s)", len(names))
}

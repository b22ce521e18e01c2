package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"depflow/remote"
	"depflow/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the install agent",
	Long: `Run the DepFlow agent.

The agent listens for realtime install events on the configured WebSocket
channel and feeds them into the batch install queue. The configuration
file is watched for changes while the agent is running.`,
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent() {
	log.Printf("DepFlow version %s", GetVersion())

	configMgr := GetConfigManager()

	sched, events, err := newScheduler(configMgr)
	if err != nil {
		log.Printf("Failed to set up installer: %v", err)
		os.Exit(1)
	}
	defer events.Close()

	if err := configMgr.StartWatcher(); err != nil {
		log.Printf("Warning: config watcher not started: %v", err)
	} else {
		defer configMgr.StopWatcher()
	}

	cfg := configMgr.Get()
	if cfg.Realtime == nil {
		log.Printf("No realtime configuration, nothing to listen for")
		os.Exit(1)
	}

	client := remote.NewClient(cfg.Realtime, GetUserAgent(), verbose || cfg.Verbose)
	client.OnEvent("install", func(msg remote.Message) {
		handleInstallEvent(sched, msg)
	})

	if err := client.Connect(); err != nil {
		log.Printf("Warning: initial connect failed, will keep retrying: %v", err)
	}
	defer client.Disconnect()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("DepFlow is running and waiting for install events...")
	<-sigChan
}

func handleInstallEvent(sched *scheduler.Scheduler, msg remote.Message) {
	ev, err := remote.DecodeInstallEvent(msg)
	if err != nil {
		log.Printf("Failed to decode install event: %v", err)
		return
	}

	for _, pkg := range ev.Packages {
		class := scheduler.Production
		if pkg.Dev {
			class = scheduler.Development
		}

		ticket := sched.Enqueue(pkg.Name, class)
		go func(name string) {
			if err := ticket.Wait(context.Background()); err != nil {
				log.Printf("Install of %s failed: %v", name, err)
			}
		}(pkg.Name)
	}
}

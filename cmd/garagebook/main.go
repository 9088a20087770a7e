// Command garagebook keeps a repair shop's vehicles and service history in
// a JSON file chosen by the user.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configFile string
	dataDir    string
	logLevel   string
	yes        bool
	file       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "garagebook",
		Short: "Vehicle and service records for a small repair shop",
		Long: `garagebook tracks vehicles and the services performed on them.

All data lives in one JSON file that you choose with 'garagebook new' or
'garagebook open'. The file is remembered, and every change is saved to it
immediately.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default is $DATA_DIR/config.yaml)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory for settings and the remembered file handle")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "grant file permission without asking")

	root.AddGroup(
		&cobra.Group{ID: "file", Title: "Data file:"},
		&cobra.Group{ID: "records", Title: "Records:"},
	)
	root.AddCommand(
		newStatusCmd(opts),
		newNewCmd(opts),
		newOpenCmd(opts),
		newWatchCmd(opts),
		newVehiclesCmd(opts),
		newServicesCmd(opts),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

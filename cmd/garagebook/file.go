package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/garagebook/internal/filesync"
	"github.com/kittclouds/garagebook/internal/shop"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "file",
		Short:   "Show the connected data file and record counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			switch rt.app.Start(ctx) {
			case shop.ScreenUnsupported:
				warn("File access is unavailable; changes are kept in memory only.")
				return nil
			case shop.ScreenChooseFile:
				warn("No data file. Run 'garagebook new' to create one or 'garagebook open' to use an existing one.")
				return nil
			}

			if err := rt.app.AccessSavedFile(ctx); err != nil {
				return err
			}
			if !rt.sync.IsConnected() {
				warn("The remembered data file is gone. Run 'garagebook open' to pick it again.")
				return nil
			}

			printStatus(rt)
			return nil
		},
	}
}

func printStatus(rt *runtime) {
	green.Print("▶ ")
	fmt.Print("File:     ")
	cyan.Println(rt.sync.FileName())
	green.Print("▶ ")
	fmt.Printf("State:    %s\n", rt.sync.State())
	green.Print("▶ ")
	fmt.Printf("Vehicles: %d\n", len(rt.app.Vehicles()))
	green.Print("▶ ")
	fmt.Printf("Services: %d\n", len(rt.app.Services()))
	gray.Println(rt.app.StatusLine())
}

func newNewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "new [path]",
		GroupID: "file",
		Short:   "Create a new data file and remember it",
		Long: `Create a new data file and remember it.

Without a path you are asked where to save. An existing file at that path
is replaced by an empty dataset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.file = args[0]
			}
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			if rt.app.Start(ctx) == shop.ScreenUnsupported {
				return filesync.ErrCapabilityUnsupported
			}
			created, err := rt.app.CreateFile(ctx)
			if err != nil {
				return err
			}
			if !created {
				gray.Println("Cancelled.")
				return nil
			}
			success("Created %s", rt.sync.FileName())
			return nil
		},
	}
}

func newOpenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "open [path]",
		GroupID: "file",
		Short:   "Use an existing data file and remember it",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.file = args[0]
			}
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			rt.app.Start(ctx)
			opened, err := rt.app.OpenFile(ctx)
			if err != nil {
				return err
			}
			if !opened {
				gray.Println("Cancelled.")
				return nil
			}
			success("Opened %s: %d vehicles, %d services",
				rt.sync.FileName(), len(rt.app.Vehicles()), len(rt.app.Services()))
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: "file",
		Short:   "Stay connected and report if the data file disappears",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			if !rt.cfg.Watch.Enabled {
				return fmt.Errorf("watching is disabled (watch.enabled)")
			}
			if err := rt.load(ctx); err != nil {
				return err
			}
			printStatus(rt)
			gray.Println("Watching; press Ctrl-C to stop.")

			tick := time.NewTicker(rt.cfg.Watch.Debounce + 100*time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick.C:
					if !rt.sync.IsConnected() {
						warn("The data file was moved or deleted; it is no longer remembered.")
						return nil
					}
				}
			}
		},
	}
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/garagebook/internal/dataset"
)

// =============================================================================
// Vehicles
// =============================================================================

func newVehiclesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"v"},
		GroupID: "records",
		Short:   "List, add, edit and remove vehicles",
	}
	cmd.AddCommand(newVehiclesListCmd(opts), newVehiclesAddCmd(opts), newVehiclesRmCmd(opts))
	return cmd
}

func newVehiclesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List vehicles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.load(cmd.Context()); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tOWNER\tENGINE\tYEAR\tCHASSIS\tSERVICES")
			for _, v := range rt.app.Vehicles() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\n",
					v.ID, v.OwnerName, v.Engine, v.Year, v.ChassisID, rt.app.ServiceCount(v.ID))
			}
			return w.Flush()
		},
	}
}

func newVehiclesAddCmd(opts *rootOptions) *cobra.Command {
	var v dataset.Vehicle
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a vehicle, or edit one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()
			if err := rt.load(ctx); err != nil {
				return err
			}

			if existing, found := rt.app.Vehicle(v.ID); found {
				f := cmd.Flags()
				if !f.Changed("owner") {
					v.OwnerName = existing.OwnerName
				}
				if !f.Changed("engine") {
					v.Engine = existing.Engine
				}
				if !f.Changed("year") {
					v.Year = existing.Year
				}
				if !f.Changed("chassis") {
					v.ChassisID = existing.ChassisID
				}
			}

			saved, err := rt.app.SaveVehicle(ctx, v)
			if err != nil {
				return err
			}
			success("Saved vehicle %s", saved.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&v.ID, "id", "", "id of the vehicle to edit")
	f.StringVar(&v.OwnerName, "owner", "", "owner name")
	f.StringVar(&v.Engine, "engine", "", "engine")
	f.IntVar(&v.Year, "year", 0, "model year")
	f.StringVar(&v.ChassisID, "chassis", "", "chassis number (VIN)")
	return cmd
}

func newVehiclesRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a vehicle and all of its services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()
			if err := rt.load(ctx); err != nil {
				return err
			}

			n := rt.app.ServiceCount(args[0])
			if err := rt.app.DeleteVehicle(ctx, args[0]); err != nil {
				return err
			}
			success("Removed vehicle %s and %d services", args[0], n)
			return nil
		},
	}
}

// =============================================================================
// Services
// =============================================================================

func newServicesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"s"},
		GroupID: "records",
		Short:   "List, add, edit and remove services",
	}
	cmd.AddCommand(newServicesListCmd(opts), newServicesAddCmd(opts), newServicesRmCmd(opts))
	return cmd
}

func newServicesListCmd(opts *rootOptions) *cobra.Command {
	var vehicleID string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List services, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.load(cmd.Context()); err != nil {
				return err
			}

			services := rt.app.Services()
			if vehicleID != "" {
				services = rt.app.ServicesFor(vehicleID)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tVEHICLE\tSERVICE\tMILEAGE\tNOTES")
			for _, s := range services {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d km\t%s\n",
					s.ID, s.Date, vehicleLabel(rt, s.VehicleID), s.ServiceName, s.Mileage, s.Notes)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "only services of this vehicle id")
	return cmd
}

// vehicleLabel shows owner and chassis, or the raw id for a dangling link.
func vehicleLabel(rt *runtime, id string) string {
	if v, found := rt.app.Vehicle(id); found {
		return v.OwnerName + " - " + v.ChassisID
	}
	return id
}

func newServicesAddCmd(opts *rootOptions) *cobra.Command {
	var s dataset.Service
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a service, or edit one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()
			if err := rt.load(ctx); err != nil {
				return err
			}

			if s.ID != "" {
				for _, existing := range rt.app.Services() {
					if existing.ID != s.ID {
						continue
					}
					f := cmd.Flags()
					if !f.Changed("vehicle") {
						s.VehicleID = existing.VehicleID
					}
					if !f.Changed("name") {
						s.ServiceName = existing.ServiceName
					}
					if !f.Changed("mileage") {
						s.Mileage = existing.Mileage
					}
					if !f.Changed("date") {
						s.Date = existing.Date
					}
					if !f.Changed("notes") {
						s.Notes = existing.Notes
					}
				}
			}

			saved, err := rt.app.SaveService(ctx, s)
			if err != nil {
				return err
			}
			success("Saved service %s", saved.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&s.ID, "id", "", "id of the service to edit")
	f.StringVar(&s.VehicleID, "vehicle", "", "vehicle id")
	f.StringVar(&s.ServiceName, "name", "", "what was done")
	f.IntVar(&s.Mileage, "mileage", 0, "odometer reading in km")
	f.StringVar(&s.Date, "date", time.Now().Format(time.DateOnly), "service date (YYYY-MM-DD)")
	f.StringVar(&s.Notes, "notes", "", "free-form notes")
	return cmd
}

func newServicesRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()
			if err := rt.load(ctx); err != nil {
				return err
			}
			if err := rt.app.DeleteService(ctx, args[0]); err != nil {
				return err
			}
			success("Removed service %s", args[0])
			return nil
		},
	}
}

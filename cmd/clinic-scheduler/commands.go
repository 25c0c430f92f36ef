package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinic/scheduler/internal/config"
	"github.com/clinic/scheduler/internal/domain/scheduling"
)

// withApp loads configuration and runs fn against a freshly wired app.
// Logs go to stderr so stdout carries only the command's result.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// dateFlag parses --date in the --utc-offset location, falling back to the
// clinic's configured offset.
func dateFlag(cmd *cobra.Command, a *app) (time.Time, error) {
	loc := a.loc
	if off, _ := cmd.Flags().GetString("utc-offset"); off != "" {
		parsed, err := scheduling.ParseUTCOffset(off)
		if err != nil {
			return time.Time{}, err
		}
		loc = parsed
	}
	raw, _ := cmd.Flags().GetString("date")
	return scheduling.ParseDate(raw, loc)
}

func addDateFlags(cmd *cobra.Command) {
	cmd.Flags().String("date", "", "Calendar date (YYYY-MM-DD)")
	cmd.Flags().String("utc-offset", "", "UTC offset of the date, e.g. +02:00 (default: CLINIC_UTC_OFFSET)")
	_ = cmd.MarkFlagRequired("date")
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List available start times for an appointment type on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName, _ := cmd.Flags().GetString("type")
			t, err := scheduling.ParseAppointmentType(typeName)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				date, err := dateFlag(cmd, a)
				if err != nil {
					return err
				}
				times, err := a.scheduler.GetAvailableAppointmentTimes(cmd.Context(), date, t)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(times) == 0 {
					fmt.Fprintf(out, "No %s slots available on %s\n", t, date.Format("2006-01-02"))
					return nil
				}
				for _, start := range times {
					fmt.Fprintln(out, start.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	addDateFlags(cmd)
	cmd.Flags().String("type", "", "Appointment type: initial_consultation, standard or check_in")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func dailyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "List the appointments booked on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				date, err := dateFlag(cmd, a)
				if err != nil {
					return err
				}
				appointments, err := a.scheduler.GetDailyAppointments(cmd.Context(), date)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-25s %-25s %-22s %s\n", "START", "END", "TYPE", "ID")
				for _, appt := range appointments {
					fmt.Fprintf(out, "%-25s %-25s %-22s %s\n",
						appt.Start.Format(time.RFC3339), appt.End().Format(time.RFC3339), appt.Type, appt.ID)
				}
				return nil
			})
		},
	}
	addDateFlags(cmd)
	return cmd
}

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawStart, _ := cmd.Flags().GetString("start")
			start, err := time.Parse(time.RFC3339, rawStart)
			if err != nil {
				return fmt.Errorf("invalid --start %q: expected RFC3339, e.g. 2026-03-02T10:30:00+02:00", rawStart)
			}
			typeName, _ := cmd.Flags().GetString("type")
			t, err := scheduling.ParseAppointmentType(typeName)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				appt := scheduling.NewAppointment(start, t)
				saved, err := a.scheduler.BookAnAppointment(cmd.Context(), appt)
				if err != nil {
					if scheduling.IsValidationError(err) {
						return fmt.Errorf("booking rejected: %w", err)
					}
					return err
				}
				if !saved {
					return errors.New("booking was not persisted: the start time was taken concurrently")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Booked %s %s-%s (%s)\n",
					appt.Type, appt.Start.Format(time.RFC3339), appt.End().Format("15:04"), appt.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("start", "", "Start time (RFC3339)")
	cmd.Flags().String("type", "", "Appointment type: initial_consultation, standard or check_in")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwangaza12/meditime/internal/client"
	"github.com/mwangaza12/meditime/internal/session"
)

func appointmentsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt"},
		Short:   "List and manage appointments",
	}

	cmd.AddCommand(appointmentsListCmd(get))
	cmd.AddCommand(appointmentsBookCmd(get))
	cmd.AddCommand(appointmentsStatusCmd(get))
	cmd.AddCommand(appointmentsCancelCmd(get))
	cmd.AddCommand(appointmentsConfirmCmd(get))
	cmd.AddCommand(appointmentsRescheduleCmd(get))
	cmd.AddCommand(appointmentsPayCmd(get))
	return cmd
}

// appointmentsListCmd shows the listing for the signed-in role: all
// appointments for admins, their own for doctors and patients.
func appointmentsListCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments for the signed-in role",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			page, _ := cmd.Flags().GetInt("page")
			size, _ := cmd.Flags().GetInt("size")
			all, _ := cmd.Flags().GetBool("all")
			asc, _ := cmd.Flags().GetBool("asc")

			store := client.NewAppointmentStore(a.api.Session(), a.api, a.cache, a.logger)
			view := store.Load(cmd.Context())

			switch view.State {
			case client.ViewError:
				return view.Err
			case client.ViewIdle:
				return a.requireSession()
			case client.ViewEmpty:
				fmt.Fprintln(a.out, "No appointments found.")
				return nil
			}

			list := view.Appointments
			if !all && status != string(client.StatusCancelled) {
				list = client.Visible(list)
			}
			list = client.FilterByStatus(list, client.Status(status))
			list = client.SortByDate(list, !asc)
			items, pages := client.Paginate(list, page, size)

			if len(items) == 0 {
				fmt.Fprintln(a.out, "No appointments found.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTIME\tPATIENT\tDOCTOR\tSTATUS\tAMOUNT\tPAYMENT\tACTIONS")
			for _, appt := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					appt.ID,
					appt.Date.Format(time.DateOnly),
					appt.TimeSlot,
					orDash(appt.Patient.Full()),
					orDash(doctorLabel(appt)),
					appt.Status,
					amountLabel(appt.TotalAmount),
					paymentLabel(appt),
					actionsLabel(appt, a.api.Session().Role),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "page %d of %d\n", max(page, 1), pages)
			return nil
		},
	}
	cmd.Flags().String("status", "", "only show pending, confirmed or cancelled")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("size", 10, "page size")
	cmd.Flags().Bool("all", false, "include cancelled appointments")
	cmd.Flags().Bool("asc", false, "oldest first")
	return cmd
}

func appointmentsBookCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment with a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			doctorID, _ := cmd.Flags().GetString("doctor")
			patientID, _ := cmd.Flags().GetString("patient")
			dateStr, _ := cmd.Flags().GetString("date")
			slot, _ := cmd.Flags().GetString("slot")
			duration, _ := cmd.Flags().GetInt("duration")

			date, err := time.Parse(time.DateOnly, dateStr)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD")
			}

			appt, err := a.api.CreateAppointment(cmd.Context(), client.NewBooking{
				PatientID:       patientID,
				DoctorID:        doctorID,
				Date:            date,
				TimeSlot:        slot,
				DurationMinutes: duration,
			})
			if err != nil {
				return err
			}
			a.cache.Invalidate(client.TagAppointments)

			fmt.Fprintf(a.out, "Booked %s on %s at %s (%s, %s)\n",
				appt.ID, appt.Date.Format(time.DateOnly), appt.TimeSlot, appt.Status, amountLabel(appt.TotalAmount))
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "doctor id")
	cmd.Flags().String("patient", "", "patient id (admins only)")
	cmd.Flags().String("date", "", "YYYY-MM-DD")
	cmd.Flags().String("slot", "", "HH:MM")
	cmd.Flags().Int("duration", 0, "minutes")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

func appointmentsStatusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <pending|confirmed|cancelled>",
		Short: "Set an appointment's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			return a.statusHandler().ChangeStatus(cmd.Context(), args[0], client.Status(args[1]))
		},
	}
}

func appointmentsCancelCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			appt, err := a.api.GetAppointment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			h := a.statusHandler()
			if yes, _ := cmd.Flags().GetBool("yes"); yes {
				h = client.NewStatusHandler(a.api, a.cache, nil, a, a.logger)
			}
			return h.Cancel(cmd.Context(), appt)
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func appointmentsConfirmCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a pending appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			appt, err := a.api.GetAppointment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.statusHandler().Confirm(cmd.Context(), appt)
		},
	}
}

func appointmentsRescheduleCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <id> <YYYY-MM-DD> <HH:MM>",
		Short: "Move an appointment to another date and slot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			date, err := time.Parse(time.DateOnly, args[1])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD")
			}
			return a.statusHandler().Reschedule(cmd.Context(), args[0], date, args[2])
		},
	}
}

func appointmentsPayCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <id>",
		Short: "Pay for a pending appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			appt, err := a.api.GetAppointment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if client.Payment(appt) == client.PaymentPaid {
				fmt.Fprintln(a.out, "Paid")
				return nil
			}
			return a.statusHandler().Pay(cmd.Context(), appt)
		},
	}
}

func (a *app) statusHandler() *client.StatusHandler {
	return client.NewStatusHandler(a.api, a.cache, a, a, a.logger)
}

func doctorLabel(appt client.Appointment) string {
	name := appt.Doctor.Full()
	if name != "" && appt.DoctorSpecialization != "" {
		return name + " (" + appt.DoctorSpecialization + ")"
	}
	return name
}

func amountLabel(amount *float64) string {
	if amount == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *amount)
}

func paymentLabel(appt client.Appointment) string {
	switch client.Payment(appt) {
	case client.PaymentPaid:
		return "Paid"
	case client.PaymentOffered:
		return "Pay"
	}
	return "-"
}

func actionsLabel(appt client.Appointment, role session.Role) string {
	var actions []string
	if role != session.RolePatient && client.CanConfirm(appt) {
		actions = append(actions, "confirm")
	}
	if client.CanCancel(appt) {
		actions = append(actions, "cancel")
	}
	if len(actions) == 0 {
		return "-"
	}
	return fmt.Sprint(actions)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

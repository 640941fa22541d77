package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwangaza12/meditime/internal/client"
	"github.com/mwangaza12/meditime/internal/session"
)

func complaintsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "File complaints and chat with the clinic",
	}

	cmd.AddCommand(complaintsListCmd(get))
	cmd.AddCommand(complaintsCreateCmd(get))
	cmd.AddCommand(complaintsStatusCmd(get))
	cmd.AddCommand(complaintsChatCmd(get))
	return cmd
}

func complaintsListCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List complaints",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			limit, _ := cmd.Flags().GetInt("limit")

			sess := a.api.Session()
			if userID == "" && sess.Role == session.RolePatient {
				userID = sess.ActorID
			}

			var list []client.Complaint
			var err error
			if userID != "" {
				list, err = a.api.ListUserComplaints(cmd.Context(), userID, client.WithLimit(limit))
			} else {
				list, err = a.api.ListComplaints(cmd.Context(), client.WithLimit(limit))
			}
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No complaints found.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tSUBJECT")
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.CreatedAt.Local().Format(time.DateTime), c.Status, c.Subject)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("user", "", "patient id (defaults to yourself for patients)")
	cmd.Flags().Int("limit", 50, "maximum rows")
	return cmd
}

func complaintsCreateCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a complaint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			subject, _ := cmd.Flags().GetString("subject")
			description, _ := cmd.Flags().GetString("description")
			appointmentID, _ := cmd.Flags().GetString("appointment")

			var appt *string
			if appointmentID != "" {
				appt = &appointmentID
			}

			c, err := a.api.CreateComplaint(cmd.Context(), subject, description, appt)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Complaint %s filed (%s)\n", c.ID, c.Status)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "short summary")
	cmd.Flags().String("description", "", "what happened")
	cmd.Flags().String("appointment", "", "related appointment id")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func complaintsStatusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <open|in_progress|resolved|closed>",
		Short: "Move a complaint through its workflow (admins)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			c, err := a.api.UpdateComplaintStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Complaint %s is now %s\n", c.ID, c.Status)
			return nil
		},
	}
}

// complaintsChatCmd mounts a chat view on the complaint and turns every
// input line into a reply until EOF or /quit.
func complaintsChatCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <complaint-id>",
		Short: "Open the live conversation for a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}

			printer := &threadPrinter{out: a.out}
			var view *client.ChatView
			view = client.NewChatView(a.api, client.GorillaDialer{}, a.cfg.WSBaseURL, a.api.Session(), a.logger, func() {
				printer.flush(view)
			})

			if err := view.Mount(cmd.Context(), args[0]); err != nil {
				fmt.Fprintf(a.out, "(earlier replies could not be loaded: %s)\n", errorText(err))
			}
			defer view.Unmount()

			printer.flush(view)
			if view.ChannelState() != client.ChannelConnected {
				fmt.Fprintln(a.out, "(live updates unavailable, new replies appear after you send)")
			}
			fmt.Fprintln(a.out, "Type a message and press enter. /quit to leave.")

			lines := make(chan string)
			go func() {
				defer close(lines)
				for {
					line, err := a.readLine()
					if line != "" {
						lines <- line
					}
					if err != nil {
						return
					}
				}
			}()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case line, ok := <-lines:
					if !ok || strings.TrimSpace(line) == "/quit" {
						return nil
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					if err := view.Send(cmd.Context(), line); err != nil {
						a.Failure(client.UserMessage(err))
						fmt.Fprintf(a.out, "(draft kept: %q)\n", view.Draft())
						continue
					}
					printer.flush(view)
				}
			}
		},
	}
}

// threadPrinter writes each reply of the thread once, in thread order.
type threadPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]struct{}
}

func (p *threadPrinter) flush(view *client.ChatView) {
	if view == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed == nil {
		p.printed = make(map[string]struct{})
	}

	for _, r := range view.Replies() {
		if _, done := p.printed[r.ID]; done {
			continue
		}
		p.printed[r.ID] = struct{}{}

		stamp := ""
		if !r.CreatedAt.IsZero() {
			stamp = r.CreatedAt.Local().Format(time.TimeOnly) + " "
		}
		fmt.Fprintf(p.out, "%s[%s] %s\n", stamp, view.Author(r), r.Message)
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwangaza12/meditime/internal/client"
	"github.com/mwangaza12/meditime/internal/config"
	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

// app is what every subcommand shares: one API client acting as the
// session from MEDITIME_TOKEN, one query cache and the terminal.
type app struct {
	cfg    config.ClientConfig
	api    *client.API
	cache  *client.Cache
	logger *logging.Logger
	in     *bufio.Reader
	out    io.Writer

	reported bool // a Failure was already shown for the current command

	inMu sync.Mutex
}

func newApp() (*app, error) {
	cfg := config.LoadClient()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	sess := session.Session{}
	if cfg.Token != "" {
		var err error
		sess, err = session.FromToken(cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("MEDITIME_TOKEN: %w", err)
		}
	}

	return &app{
		cfg:    cfg,
		api:    client.NewAPI(cfg.APIBaseURL, sess, nil, logger),
		cache:  client.NewCache(),
		logger: logger,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *app) readLine() (string, error) {
	a.inMu.Lock()
	defer a.inMu.Unlock()
	line, err := a.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

// Confirm asks on the terminal. Anything but y/yes declines.
func (a *app) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := a.readLine()
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *app) Success(message string) { fmt.Fprintln(a.out, message) }
func (a *app) Failure(message string) {
	a.reported = true
	fmt.Fprintln(os.Stderr, "error:", message)
}

func (a *app) requireSession() error {
	if a.api.Session().ActorID == "" {
		return fmt.Errorf("not signed in: run `meditime login` and export MEDITIME_TOKEN")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "meditime",
		Short:         "MediTime appointments and complaints from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var a *app
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = newApp()
		return err
	}
	get := func() *app { return a }

	rootCmd.AddCommand(loginCmd(get))
	rootCmd.AddCommand(appointmentsCmd(get))
	rootCmd.AddCommand(complaintsCmd(get))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if a == nil || !a.reported {
			fmt.Fprintln(os.Stderr, "error:", errorText(err))
		}
		if a != nil {
			a.logger.Debug().Err(err).Msg("command failed")
		}
		stop()
		os.Exit(1)
	}
}

// errorText prefers the server's message for API failures.
func errorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return client.UserMessage(err)
	}
	return err.Error()
}

func loginCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a token for MEDITIME_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			if email == "" {
				fmt.Fprint(a.out, "Email: ")
				line, err := a.readLine()
				if err != nil && line == "" {
					return err
				}
				email = line
			}
			if password == "" {
				fmt.Fprint(a.out, "Password: ")
				line, err := a.readLine()
				if err != nil && line == "" {
					return err
				}
				password = line
			}

			sess, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", sess.ActorID, sess.Role)
			fmt.Fprintf(a.out, "export MEDITIME_TOKEN=%s\n", sess.Token)
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (prompted when empty)")
	return cmd
}

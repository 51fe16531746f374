// Command pmctl drives the project dashboard from a terminal: it logs in
// against the backend, lists and classifies projects, runs status
// transitions and task flows, and exports reports.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/config"
	"pmo-dashboard/internal/logging"
)

// errSessionExpired is returned before any call is made with a stale token.
var errSessionExpired = errors.New("sessão expirada ou inexistente, execute 'pmctl login'")

// app carries the state shared by every command of one invocation.
type app struct {
	cfg *config.Config

	apiURL      string
	sessionFile string
	timeout     time.Duration
	logLevel    string
	jsonOut     bool

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
	logger *zap.Logger
}

func newApp(cfg *config.Config, in io.Reader, out, errOut io.Writer) *app {
	return &app{
		cfg:    cfg,
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

// client returns a backend client that keeps its token in the session file.
func (a *app) client() *apiclient.Client {
	opts := []apiclient.Option{apiclient.WithLogger(a.logger.Named("apiclient"))}
	if a.timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(a.timeout))
	}
	return apiclient.New(a.apiURL, apiclient.NewFileTokenStore(a.sessionFile), opts...)
}

// authed returns a client after checking locally that the saved token is
// still usable, so an expired session fails without a round trip.
func (a *app) authed() (*apiclient.Client, error) {
	c := a.client()
	token, err := c.Tokens().Load()
	if err != nil {
		return nil, err
	}
	if _, err := auth.Inspect(token, a.now()); err != nil {
		a.logger.Debug("saved token rejected", zap.Error(err))
		return nil, errSessionExpired
	}
	return c, nil
}

// readLine prompts on errOut and reads one trimmed line from in.
func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.errOut, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirmer asks prompt on the terminal, or accepts without asking when yes is set.
func (a *app) confirmer(yes bool) func(string) bool {
	return func(prompt string) bool {
		if yes {
			return true
		}
		answer, err := a.readLine(prompt + " [s/N] ")
		if err != nil {
			return false
		}
		answer = strings.ToLower(answer)
		return answer == "s" || answer == "sim" || answer == "y" || answer == "yes"
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pmctl",
		Short:         "Project dashboard client",
		Long:          `pmctl talks to the project-management backend with the session saved by 'pmctl login'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(a.logLevel, "console")
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.apiURL, "api", a.cfg.APIBaseURL, "Backend base URL, including /api")
	rootCmd.PersistentFlags().StringVar(&a.sessionFile, "session", a.cfg.TokenFile, "Session file holding the access token")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", a.cfg.HTTPTimeout, "Per-call timeout (0 disables)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRegisterCmd(a),
		newProfileCmd(a),
		newAdminCmd(a),
		newTokenInfoCmd(a),
		newTokenGenCmd(a),
		newProjectsCmd(a),
		newProjectCmd(a),
		newMineCmd(a),
		newRoadmapCmd(a),
		newTransitionCmd(a),
		newTaskCmd(a),
		newTestsCmd(a),
		newUploadCmd(a),
		newReportCmd(a),
		newExportCmd(a),
	)
	return rootCmd
}

func main() {
	a := newApp(config.Load(), os.Stdin, os.Stdout, os.Stderr)
	ctx := context.Background()
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

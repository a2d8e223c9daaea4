package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tjsync/config"
	"tjsync/web"
)

var (
	servePort   int
	serveDBPath string
	serveNoOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local JSON API for diff, sync and stored runs",
	Long: `Start a local HTTP server exposing the Toggl/Jira comparison as JSON.

Endpoints:
- GET  /api/settings                           Jira user, Toggl workspace and window length
- GET  /api/diff?delta=N or ?min=...&max=...   per-day report
- POST /api/diff/sync                          store and apply the actions, one JSON line before each action
- GET  /api/runs                               stored runs, newest first
- POST /api/runs/{id}/step                     apply the next action of a run
- GET  /metrics                                Prometheus metrics

Only one sync or step runs at a time. A second request gets 409 Conflict.`,
	Example: `
  # Start local server on default port
  tjsync serve

  # Use another port and database without opening a browser
  tjsync serve --port 9090 --db ./team.db --no-open
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		if serveDBPath != "" {
			cfg.Database = serveDBPath
		}

		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := web.NewServer(web.Config{
			Inspector: a.inspector,
			Store:     a.store,
			Executor:  a.executor,
			Metrics:   a.metrics,
			Bin:       a.bin,
			Days:      cfg.Window.Days,
			Settings: web.SettingsView{
				JiraUsername:   cfg.Jira.Username,
				JiraURL:        cfg.Jira.URL,
				TogglWorkspace: cfg.Toggl.Workspace,
				WindowDays:     cfg.Window.Days,
			},
			Logger: a.logger,
		})

		addr := fmt.Sprintf(":%d", servePort)
		server := &http.Server{
			Addr:              addr,
			Handler:           withRequestLog(withRootRedirect(handler, "/api/diff"), a.logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		listenURL := fmt.Sprintf("http://localhost:%d", servePort)
		fmt.Printf("Listening on %s\n", listenURL)
		if !serveNoOpen {
			if openErr := openURLInBrowser(listenURL + "/api/diff"); openErr != nil {
				a.logger.Warn().Err(openErr).Msg("failed to open browser")
			}
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-sigCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			err := <-errCh
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP port for the local web server")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "Path to local SQLite database (default: database from config)")
	serveCmd.Flags().BoolVar(&serveNoOpen, "no-open", false, "Do not open browser automatically")
}

func withRootRedirect(next http.Handler, target string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the Flusher of the sync stream.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func withRequestLog(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func openURLInBrowser(rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		cmd = exec.Command("xdg-open", rawURL)
	}
	return cmd.Start()
}

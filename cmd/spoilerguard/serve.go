package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/spoilerguard/internal/config"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/engine"
	"github.com/nao1215/spoilerguard/internal/metrics"
	"github.com/nao1215/spoilerguard/internal/server"
	"github.com/nao1215/spoilerguard/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local reading proxy",
		Long: `Serve starts a local HTTP proxy for reading pages with spoilers hidden.

Open http://127.0.0.1:8765/view?url=<page> in a browser: the page is loaded,
redacted and shown with placeholders. Clicking a placeholder reveals it and
stops its keyword from being hidden again on that page.

Endpoints:
  GET    /view?url=                          redacted page
  GET    /sessions/{id}                      session state as JSON
  POST   /sessions/{id}/reveal/{spoilerID}   reveal one placeholder
  POST   /sessions/{id}/mode                 {"mode":"both|api|keywords"}
  POST   /sessions/{id}/content              {"html":"..."} appended to the page
  POST   /sessions/{id}/reset                forget ignored keywords
  DELETE /sessions/{id}                      close the session
  POST   /api/messages                       keyword store messages
  GET    /metrics, /healthz`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress, "Address to listen on")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for loading one page")
	cmd.Flags().Bool("render", false, "Load pages through headless Chrome")
	cmd.Flags().String("chrome-path", "", "Chrome executable used with --render")
	cmd.Flags().Int("max-sessions", server.DefaultMaxSessions, "Maximum number of open page sessions")
	addClassifierFlags(cmd)

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	maxSessions := server.DefaultMaxSessions
	for _, err := range []error{
		override(cmd, "listen", &cfg.ListenAddress, f.GetString),
		override(cmd, "timeout", &cfg.Timeout, f.GetDuration),
		override(cmd, "render", &cfg.Render, f.GetBool),
		override(cmd, "chrome-path", &cfg.ChromePath, f.GetString),
		override(cmd, "max-sessions", &maxSessions, f.GetInt),
		applyClassifierFlags(cmd, cfg),
	} {
		if err != nil {
			return err
		}
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	factory := func(doc *dom.Document, src *source.Adapter) *engine.Engine {
		return engine.New(doc, src, a.engineOptions(config.SiteConfig{}, m))
	}
	srv := server.New(a.broker, a, factory,
		server.WithLogger(a.logger),
		server.WithGatherer(reg),
		server.WithMaxSessions(maxSessions),
		server.WithMessenger(&overlay{next: a.broker, keywords: cfg.Keywords}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Reading proxy on http://%s/view?url=<page>\n", cfg.ListenAddress)
	return srv.ListenAndServe(ctx, cfg.ListenAddress)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/auth"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/server"
	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local REST API server",
	Long:  `Start an HTTP server that exposes the popup operations (JD, tailoring, exports, autopilot, field sync) as REST endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("addr") {
		a.cfg.Server.Addr = serveAddr
	}

	cfg, deps, err := serverSetup(ctx, a)
	if err != nil {
		return err
	}
	return server.New(cfg, deps).Start(ctx)
}

// serverSetup builds the server configuration and its collaborators from the app.
func serverSetup(ctx context.Context, a *app) (server.Config, server.Deps, error) {
	repo, err := a.repository(ctx)
	if err != nil {
		return server.Config{}, server.Deps{}, err
	}

	cfg := server.Config{Addr: a.cfg.Server.Addr, Logger: a.logger}
	if a.cfg.Server.Secret != "" {
		signer, err := auth.NewSigner(a.cfg.Server.Secret, auth.DefaultTTL)
		if err != nil {
			return server.Config{}, server.Deps{}, fmt.Errorf("invalid API secret: %w", err)
		}
		cfg.Validator = signer
	}

	opts, err := a.cfg.AutopilotOptions()
	if err != nil {
		return server.Config{}, server.Deps{}, err
	}

	// The master resume is optional here; requests may send their own text.
	var resume string
	if a.cfg.ResumePath != "" {
		if resume, err = a.resumeText(""); err != nil {
			return server.Config{}, server.Deps{}, err
		}
	}

	deps := server.Deps{
		Session:    session.New(),
		Loop:       a.loop(repo, nil),
		Exporter:   tailoring.NewExporter(repo, a.logger),
		Fields:     a.syncer(repo),
		Repo:       repo,
		Service:    a.client,
		OpenPage:   a.pageOpener(),
		Autopilot:  opts,
		ResumeText: resume,
	}
	return cfg, deps, nil
}

func (a *app) pageOpener() server.PageOpener {
	return func(ctx context.Context, url string) (page.Automator, func(), error) {
		opts, err := a.browserOptions(url)
		if err != nil {
			return nil, nil, err
		}
		b, err := page.NewBrowser(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("browser opened", zap.String("url", url))
		return b, b.Close, nil
	}
}

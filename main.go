package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adaptive_task_generator/config"
	"adaptive_task_generator/coverage"
	"adaptive_task_generator/pipeline"
	"adaptive_task_generator/profile"
	"adaptive_task_generator/report"
	"adaptive_task_generator/server"
	"adaptive_task_generator/telemetry"
)

var (
	configPath string
	verbose    bool
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "atg",
		Short:         "Adaptive task generation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.json")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(serveCmd(), planCmd(), coverageCmd(), cacheCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// setup loads config, logger and telemetry, then wires the app.
func setup(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	if err := telemetry.Init(ctx, "adaptive_task_generator", version); err != nil {
		logger.Warn("telemetry init failed", zap.Error(err))
	}
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
		_ = logger.Sync()
	}
	return a, cleanup, nil
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.cfg.Templates.Watch && a.cfg.Templates.Path != "" {
				go func() {
					if err := a.registry.Watch(ctx, a.cfg.Templates.Path); err != nil {
						a.logger.Warn("template watch stopped", zap.Error(err))
					}
				}()
			}

			srv, err := server.New(a.pipeline,
				server.WithLogger(a.logger),
				server.WithCache(a.cache),
				server.WithTimeout(a.cfg.RequestTimeout()),
			)
			if err != nil {
				return err
			}
			listen := a.cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			if listen == "" {
				listen = ":8080"
			}
			hs := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = hs.Shutdown(shutdownCtx)
			}()

			a.logger.Info("starting web server", zap.String("addr", listen))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config server_addr)")
	return cmd
}

func readRequest(path string) (pipeline.Request, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return pipeline.Request{}, err
		}
		defer f.Close()
		r = f
	}
	var req pipeline.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return pipeline.Request{}, fmt.Errorf("decode request %s: %w", path, err)
	}
	return req, nil
}

func planCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plan <request.json|->",
		Short: "Generate a plan for one request and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			a, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res := a.pipeline.Generate(cmd.Context(), req)
			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			body, err := report.Render(report.Plan{
				Title:    req.Goal.Title,
				Coverage: res.Coverage,
				Tasks:    res.Tasks,
				Cost:     res.Cost,
				Warnings: res.Warnings,
			}, report.Format(format))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, body)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, markdown, html, inline")
	return cmd
}

func coverageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coverage <request.json|->",
		Short: "Show the coverage score and routing strategy for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			res := coverage.NewDetector(cfg.Coverage).Detect(profile.Extract(req.Profile, req.Goal))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Manage the task cache"}
	var ver string
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached entries for one template-set version, or all entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			var n int
			if ver == "" {
				n, err = a.cache.InvalidateAll(cmd.Context())
			} else {
				n, err = a.cache.InvalidateVersion(cmd.Context(), ver)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
			return nil
		},
	}
	invalidate.Flags().StringVar(&ver, "version", "", "template-set version to drop (default: all)")
	cmd.AddCommand(invalidate)
	return cmd
}

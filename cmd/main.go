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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/tabletriage/internal/adapters/http/api"
	"github.com/okian/tabletriage/internal/adapters/http/swagger"
	app "github.com/okian/tabletriage/internal/app"
	"github.com/okian/tabletriage/internal/config"
	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/internal/loadgen"
	"github.com/okian/tabletriage/internal/surgeon"
	"github.com/okian/tabletriage/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 30 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

const outputSuffix = ".preproc.json"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "tabletriage",
		Short:        "Classify, normalize and deduplicate extracted tables",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides "+config.EnvConfig+")")
	root.AddCommand(newRunCmd(&configPath), newServeCmd(&configPath), newLoadtestCmd())
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var inputs []string
	var outDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Triage legacy input documents into preproc files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer syncLogs()
			return runTriage(ctx, cfg, inputs, outDir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "legacy JSON input (repeatable)")
	cmd.Flags().StringVar(&outDir, "out", "out/preproc", "output directory")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the triage HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer syncLogs()
			return serve(ctx, cfg)
		},
	}
}

func newLoadtestCmd() *cobra.Command {
	cfg := loadgen.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Submit synthetic dossiers to a running API and verify the review queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := logger.InitWithWriter(os.Stderr, true); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer syncLogs()
			_, err := loadgen.Run(ctx, cfg)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.IntVar(&cfg.Dossiers, "dossiers", cfg.Dossiers, "number of dossiers to generate")
	f.IntVar(&cfg.Tables, "tables", cfg.Tables, "tables per dossier")
	f.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "dossiers per request")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.IntVar(&cfg.ReviewLimit, "review-limit", cfg.ReviewLimit, "review entries to verify")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "generator seed")
	return cmd
}

func syncLogs() {
	if err := logger.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// setup initializes logging on stderr and loads the configuration.
func setup(ctx context.Context, configPath string) (*config.Config, error) {
	if err := logger.InitWithWriter(os.Stderr, true); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(ctx, configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

type runSummary struct {
	OK        bool   `json:"ok"`
	Input     string `json:"input"`
	Source    string `json:"source"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Out       string `json:"out"`
}

// runTriage processes every input through one service so learning state
// carries over between files, and writes a summary line per output.
func runTriage(ctx context.Context, cfg *config.Config, inputs []string, outDir string, stdout io.Writer) error {
	if len(inputs) == 0 {
		return errors.New("no inputs")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	svc := app.New(app.WithConfig(cfg))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	enc := json.NewEncoder(stdout)
	for _, in := range inputs {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		dossiers, err := surgeon.ParseInput(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}

		results, err := svc.Process(ctx, dossiers)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		for _, res := range results {
			name := stem + outputSuffix
			if len(results) > 1 {
				name = stem + "." + safeName(res.Source) + outputSuffix
			}
			path := filepath.Join(outDir, name)
			if err := writeResultFile(path, res); err != nil {
				return err
			}
			_ = enc.Encode(runSummary{
				OK: true, Input: in, Source: res.Source,
				Processed: res.ProcessedCount, Skipped: res.SkippedCount, Out: path,
			})
		}
	}
	return nil
}

func writeResultFile(path string, res model.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := surgeon.WriteResult(f, res); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// safeName keeps a dossier key usable as a file name fragment.
func safeName(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if out == "" {
		return "unknown"
	}
	return out
}

func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, cfg.Review.MaxLimit).Register(mux)
	swagger.Register(mux)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc := app.New(app.WithConfig(cfg), app.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	srv := newHTTPServer(cfg, svc)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}

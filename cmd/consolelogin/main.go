// Command consolelogin runs the console login flow in a terminal against a
// security API, or against a built-in demo backend when no API url is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/consolelogin"
	"github.com/MrEthical07/consolelogin/api"
	"github.com/MrEthical07/consolelogin/metrics/export/prometheus"
	"github.com/MrEthical07/consolelogin/token"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "consolelogin: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiURL := cfg.APIURL
	if apiURL == "" {
		url, shutdown, err := startDemo()
		if err != nil {
			return fmt.Errorf("start demo backend: %w", err)
		}
		defer shutdown()
		apiURL = url
		fmt.Fprintf(stdout, "using demo backend at %s\n", apiURL)
	}

	engineCfg := consolelogin.DefaultConfig()
	engineCfg.API.BaseURL = apiURL
	engineCfg.API.Timeout = cfg.Timeout
	engineCfg.Redirect.DefaultCallback = cfg.CallbackURL
	engineCfg.Metrics.EnableLatencyHistograms = cfg.MetricsAddr != ""

	store, closeStore, err := openStore(cfg, engineCfg.Storage.Prefix)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens := token.NewStore(store, engineCfg.Storage.TokenKey)
	client, err := api.FromConfig(engineCfg.API,
		api.WithTokenSource(tokens),
		api.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	term := newTerminal(stdin, stdout)
	b := consolelogin.New().
		WithConfig(engineCfg).
		WithAPI(client).
		WithStorage(store).
		WithTokenSaver(tokens).
		WithLogger(logger).
		WithNavigator(term).
		WithNotifier(term).
		WithOnSuccess(func(ctx context.Context) {
			if claims := token.Inspect(loadToken(ctx, tokens)); claims.Subject != "" {
				logger.Info("session refreshed", "subject", claims.Subject)
			}
		})
	if cfg.Audit {
		b = b.WithAuditSink(consolelogin.NewJSONWriterSink(os.Stderr))
	}
	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prometheus.NewExporter(engine).Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	flow, err := engine.NewFlow(ctx, consolelogin.FlowOptions{})
	if err != nil {
		return err
	}
	defer flow.Close()
	term.flow = flow

	err = term.run(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func loadToken(ctx context.Context, tokens *token.Store) string {
	raw, _, err := tokens.Load(ctx)
	if err != nil {
		return ""
	}
	return raw
}

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"

	"hue-mcp-gateway/internal/adapters/input/mcp"
	"hue-mcp-gateway/internal/adapters/input/rest"
	"hue-mcp-gateway/internal/adapters/output/hue"
	"hue-mcp-gateway/internal/adapters/output/persistence"
	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/domain/queue"
	"hue-mcp-gateway/internal/domain/service"
	"hue-mcp-gateway/internal/logctx"
)

type config struct {
	Addr       string `env:"GATEWAY_ADDR,default=:8080"`
	HubHost    string `env:"HUE_HOST"`
	HubUser    string `env:"HUE_USER"`
	ConfigPath string `env:"CONFIG_PATH,default=./gateway-config.json"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		slog.Error("invalid environment", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Error("invalid LOG_LEVEL", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log := slog.New(logctx.Handler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway.fatal", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	// The hub serves a self-signed certificate on the local network.
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	repo := persistence.NewJSONConfigRepository(cfg.ConfigPath)
	hub := hue.NewClient(log)

	// Persisted credentials win; the environment seeds them on first run.
	stored, err := repo.Get(ctx)
	if err != nil {
		return err
	}
	switch {
	case stored.Complete():
		hub.Configure(stored.HubHost, stored.HubUser)
	case cfg.HubHost != "" && cfg.HubUser != "":
		hub.Configure(cfg.HubHost, cfg.HubUser)
		if err := repo.Save(ctx, &model.Config{HubHost: cfg.HubHost, HubUser: cfg.HubUser}); err != nil {
			return err
		}
	default:
		log.Warn("hub.unconfigured", slog.String("hint", "POST /api/setup/pair after pressing the hub link button"))
	}

	q := queue.NewSerializer()
	defer q.Close()

	svc := service.NewHubService(hub, repo, q, log)
	registry := mcp.NewRegistry()
	defer registry.CloseAll()

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewHandler(registry, mcp.NewToolset(svc, log), log))
	mux.Handle("/api/", rest.NewServer(svc, log))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("gateway.listen", slog.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("gateway.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

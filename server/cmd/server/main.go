package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/hrstress/hrstress/pkg/logging"
	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/server/internal/alerts"
	"github.com/hrstress/hrstress/server/internal/api"
	"github.com/hrstress/hrstress/server/internal/auth"
	"github.com/hrstress/hrstress/server/internal/config"
	"github.com/hrstress/hrstress/server/internal/metrics"
	"github.com/hrstress/hrstress/server/internal/publish"
	"github.com/hrstress/hrstress/server/internal/receiver"
	"github.com/hrstress/hrstress/server/internal/record"
	"github.com/hrstress/hrstress/server/internal/store"
	"github.com/hrstress/hrstress/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	uiDir := flag.String("ui-dir", "", "serve static UI files from this directory; leave empty to disable")
	flag.Parse()

	// A missing .env is normal; the process environment still applies.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Server.Log, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	slog.Info("hrstress-server starting",
		"config", *configPath,
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"session_ttl", cfg.Server.Session.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.NewWithHistory(cfg.Server.Session.TTL, cfg.Server.Session.History)
	m := metrics.New()
	alertEngine := alerts.New(cfg.Server.Alerts)
	hub := ws.New(st, cfg.Server.BroadcastInterval)

	rec := record.New(st, alertEngine, m).OnRecord(hub.Notify)
	if url := cfg.Server.Publish.URL(); url != "" {
		pub, err := publish.Connect(url, cfg.Server.Publish.Subject, "hrstress-server")
		if err != nil {
			slog.Error("failed to connect publisher", "err", err)
			os.Exit(1)
		}
		defer pub.Close() //nolint:errcheck
		rec.WithPublisher(pub)
		slog.Info("publishing sessions", "subject", pub.Subject())
	}

	go st.Run(ctx, rec.Evicted)
	go hub.Run(ctx)

	interceptor := auth.APIKeyInterceptor(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	rpc.RegisterSessionServiceServer(grpcSrv, receiver.New(rec))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	apiHandler := api.New(st, alertEngine, api.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		WindowSeconds:  cfg.Server.WindowSeconds,
		Recorder:       rec,
		Metrics:        m,
	})
	requireKey := auth.HTTPMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		"/api/v1/health",
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(apiHandler))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())

	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			// Unknown paths fall back to index.html for client-side routing.
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("hrstress-server shutting down")
	grpcSrv.GracefulStop()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"chapter-relay/internal/bootstrap"
	"chapter-relay/internal/config"
	"chapter-relay/internal/server"
	"chapter-relay/pkg/logger"
	"chapter-relay/pkg/tracer"
)

func main() {
	initConfig := flag.Bool("init-config", false, "write a default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.DefaultPath()
		if err != nil {
			logger.Fatalf("Fatal resolving config path: %v", err)
		}
		if err := config.WriteTemplate(path); err != nil {
			logger.Fatalf("Fatal writing config template: %v", err)
		}
		fmt.Println("config template written to", path)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Fatal parsing config: %v", err)
	}
	logger.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatalf("Fatal initialising tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		logger.Fatalf("Fatal wiring providers: %v", err)
	}

	srv := server.NewServer(app.Orchestrator, server.Options{
		ServiceName:     cfg.Tracing.ServiceName,
		Tracing:         cfg.Tracing.Enabled,
		Metrics:         cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
		LocalProbe:      app.LocalProbe,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	if err := srv.Start(ctx, addr); err != nil {
		logger.Errorf("Server stopped: %v", err)
		os.Exit(1)
	}
}

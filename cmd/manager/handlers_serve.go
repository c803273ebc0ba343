package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nocodo/manager/internal/agentloop"
	"github.com/nocodo/manager/internal/auth"
	"github.com/nocodo/manager/internal/authz"
	"github.com/nocodo/manager/internal/config"
	"github.com/nocodo/manager/internal/connsup"
	"github.com/nocodo/manager/internal/gate"
	"github.com/nocodo/manager/internal/llm"
	"github.com/nocodo/manager/internal/metrics"
	"github.com/nocodo/manager/internal/sessionstore"
	"github.com/nocodo/manager/internal/sshtunnel"
	"github.com/nocodo/manager/internal/tools"
	"github.com/nocodo/manager/internal/tools/files"
	"github.com/nocodo/manager/internal/tools/imap"
	"github.com/nocodo/manager/internal/tools/shell"
	sqltool "github.com/nocodo/manager/internal/tools/sql"
	"github.com/nocodo/manager/internal/tracing"
)

// runServe implements the serve command: load configuration, wire every
// core component, and run the HTTP server until a shutdown signal or
// fatal error arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("starting manager", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	tracer := tracing.New("manager")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret)
	gateStore := gate.NewMemoryStore()
	permissions := authz.New(gateStore)
	g := gate.New(jwtService, permissions, gateStore)

	supervisor := connsup.New(sshtunnel.NewDialer(), slog.Default())
	_ = supervisor // held for lifetime management; desktop-facing wiring is a companion-side concern

	adapter, err := llm.NewAdapter(llm.ProviderConfig{
		Kind:      providerKind(cfg.LLM.Provider),
		APIKey:    cfg.LLM.APIKey,
		AWSRegion: cfg.LLM.AWSRegion,
	}, cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("build llm adapter: %w", err)
	}

	executor := tools.NewExecutor()
	if err := tools.RegisterAllSchemas(executor); err != nil {
		return fmt.Errorf("register tool schemas: %w", err)
	}
	registerTools(executor, cfg)

	store := sessionstore.NewMemoryStore()

	loop := agentloop.New(agentloop.Config{
		Adapter:  adapter,
		Model:    cfg.LLM.Model,
		Tools:    tools.ToolDefinitions(),
		Executor: executor,
		Store:    store,
	})

	srv := newHTTPServer(cfg.Server.ListenAddr, g, loop, store, m)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("manager listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, stopping")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("manager stopped gracefully")
	return nil
}

// providerKind maps the configured provider name to the LLM Provider
// Abstraction's family constant (§4.1).
func providerKind(name string) llm.ProviderKind {
	switch name {
	case "anthropic":
		return llm.ProviderAnthropic
	case "azure":
		return llm.ProviderAzure
	case "bedrock":
		return llm.ProviderBedrock
	case "ollama":
		return llm.ProviderOllama
	case "openrouter":
		return llm.ProviderOpenRouter
	case "copilot":
		return llm.ProviderCopilot
	default:
		return llm.ProviderOpenAI
	}
}

// registerTools binds a handler for every closed-set tool name (§4.3) to
// executor, reading connection details for the imap_reader tool from the
// external config section spec.md §6 describes.
func registerTools(executor *tools.Executor, cfg *config.Config) {
	filesCfg := files.Config{BaseDir: cfg.Tools.BaseDir, MaxReadBytes: 1 << 20}
	executor.Register(tools.ListFiles, files.NewListHandler(filesCfg))
	executor.Register(tools.ReadFile, files.NewReadHandler(filesCfg))
	executor.Register(tools.WriteFile, files.NewWriteHandler(filesCfg))

	executor.Register(tools.Grep, tools.NewGrepHandler(tools.GrepConfig{BaseDir: cfg.Tools.BaseDir}))

	executor.Register(tools.Bash, shell.NewBashHandler(shell.Config{BaseDir: cfg.Tools.BaseDir}))

	executor.Register(tools.SQL, sqltool.NewSQLiteHandler(sqltool.SQLiteConfig{BaseDir: cfg.Tools.BaseDir}))
	executor.Register(tools.PostgresReader, sqltool.NewPostgresHandler(sqltool.PostgresConfig{}))

	imapSection := cfg.ConfigSection("imap_email")
	port, _ := strconv.Atoi(imapSection["port"])
	if port == 0 {
		port = 993
	}
	executor.Register(tools.IMAPReader, imap.NewHandler(imap.Config{
		Credentials: imap.Credentials{
			Host:     imapSection["host"],
			Port:     port,
			Username: imapSection["username"],
			Password: imapSection["password"],
		},
	}))
}

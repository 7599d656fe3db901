/*
Package main is the entry point of the OriginChats server.

It loads the configuration, initializes logging, opens the storage backend and seeds the
default roles and channel, wires the chat server with its rate limiter, plugins and identity
validator, serves HTTP and websocket traffic, and shuts everything down gracefully on
SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"originchats/internal/app/channel"
	"originchats/internal/app/chat"
	"originchats/internal/app/message"
	"originchats/internal/app/plugin"
	"originchats/internal/app/ratelimit"
	"originchats/internal/app/slash"
	"originchats/internal/app/store"
	"originchats/internal/app/user"
	"originchats/internal/app/voice"
	"originchats/internal/configs"
	"originchats/internal/handler"
	"originchats/internal/pkg/auth"
	"originchats/internal/pkg/limiter"
	"originchats/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("storage_backend", cfg.Storage.Backend).
		Str("auth_mode", cfg.AuthMode).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		logx.Fatal(err, "Failed to open storage backend", "backend", cfg.Storage.Backend)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logx.Error(err, "Failed to close storage backend")
		}
	}()

	users := user.NewDirectory(backend, cfg.DefaultRoles)
	if err := users.EnsureDefaults(ctx); err != nil {
		logx.Fatal(err, "Failed to seed default roles")
	}
	channels := channel.NewRegistry(backend)
	if err := channels.EnsureDefault(ctx); err != nil {
		logx.Fatal(err, "Failed to seed default channel")
	}

	var gate ratelimit.Gate = ratelimit.Disabled{}
	if cfg.RateLimit.Enabled {
		l := ratelimit.New(ratelimit.Config{
			MessagesPerMinute: cfg.RateLimit.MessagesPerMinute,
			BurstLimit:        cfg.RateLimit.BurstLimit,
			CooldownSeconds:   cfg.RateLimit.CooldownSeconds,
		})
		go l.Run(ctx)
		gate = l
	}

	automod, err := plugin.NewAutomod(cfg.AutomodConfigPath)
	if err != nil {
		logx.Fatal(err, "Failed to load automod plugin", "path", cfg.AutomodConfigPath)
	}
	plugins := plugin.NewManager(automod)

	var validator auth.Validator
	var validatorKey string
	switch cfg.AuthMode {
	case configs.AuthModeJWT:
		validator = auth.NewJWTValidator(cfg.JWTSecret)
	default:
		rotur := auth.NewRoturValidator(cfg.RoturValidateURL, cfg.RoturValidateKey)
		validator = rotur
		validatorKey = rotur.Key()
	}

	srv := chat.NewServer(chat.Deps{
		Users:     users,
		Channels:  channels,
		Messages:  message.NewStore(backend),
		Voice:     voice.NewState(),
		Slash:     slash.NewRegistry(),
		Gate:      gate,
		Hooks:     plugins,
		Plugins:   plugins,
		Validator: validator,
	}, chat.Options{
		ServerName:   cfg.ServerName,
		ServerIcon:   cfg.ServerIcon,
		Version:      cfg.ServerVersion,
		ValidatorKey: validatorKey,
		ContentLimit: cfg.PostContentLimit,
		Heartbeat:    cfg.Heartbeat,
	})
	plugins.Bind(srv)
	srv.Start(ctx)

	connLimiter := limiter.NewIPRateLimiter(rate.Limit(cfg.ConnectRate), cfg.ConnectBurst)
	go connLimiter.Run(ctx)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Server:      srv,
		Config:      cfg,
		ConnLimiter: connLimiter,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("%s starting on ws://localhost%s", cfg.ServerName, serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	srv.Shutdown()

	logx.Info("Server gracefully stopped.")
}

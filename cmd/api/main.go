package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-popup/backend/internal/config"
	"github.com/zhouzirui/chat-popup/backend/internal/handler"
	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
	"github.com/zhouzirui/chat-popup/backend/internal/service/bot"
	"github.com/zhouzirui/chat-popup/backend/internal/service/chat"
	"github.com/zhouzirui/chat-popup/backend/internal/service/widget"
	"github.com/zhouzirui/chat-popup/backend/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	shellPersona, ok := personaStore.FindByID(cfg.Widget.PersonaID)
	if !ok {
		log.Fatal().Str("persona", cfg.Widget.PersonaID).Msg("configured persona not found")
	}

	chatService := chat.NewService(personaStore, chat.Options{
		DefaultPersonaID: cfg.Widget.PersonaID,
		TypingDelay:      cfg.Widget.TypingDelay,
		TimeFormat:       cfg.Widget.TimeFormat,
		IdleTimeout:      cfg.Widget.IdleTimeout,
		Repliers: func(ctx context.Context, p persona.Persona) (widget.Replier, error) {
			return bot.NewService(ctx, p)
		},
	})
	defer chatService.Shutdown()

	router := handler.NewRouter(personaStore, chatService, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ShellPersona:   shellPersona,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("chat popup demo listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

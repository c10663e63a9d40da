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

	"github.com/your-org/pizzeria-agent/internal/archive"
	"github.com/your-org/pizzeria-agent/internal/buffer"
	"github.com/your-org/pizzeria-agent/internal/config"
	"github.com/your-org/pizzeria-agent/internal/handlers"
	"github.com/your-org/pizzeria-agent/internal/logger"
	"github.com/your-org/pizzeria-agent/internal/openai"
	"github.com/your-org/pizzeria-agent/internal/orchestrator"
	"github.com/your-org/pizzeria-agent/internal/store"
	"github.com/your-org/pizzeria-agent/internal/uazapi"
)

// turnTimeout bounds one full conversation turn (two completion calls plus
// redis and the outbound send in the worst case).
const turnTimeout = 2 * time.Minute

// dispatcherFunc adapts a function to handlers.Dispatcher.
type dispatcherFunc func(phone, name, text string)

func (f dispatcherFunc) Dispatch(phone, name, text string) { f(phone, name, text) }

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Conversation store (redis)
	st, err := store.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect error")
	}
	defer st.Close()

	// OpenAI + WhatsApp gateway clients
	ai := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIMaxTokens)
	wpp := uazapi.New(cfg.UazapiBaseSend, cfg.UazapiTokenSend).
		WithLogging(true).
		WithMinVisibleDelay(1000)

	orch := orchestrator.New(ai, wpp, st, cfg.StoreName).
		WithReplyDelay(cfg.ReplyDelay)

	// Optional closed-order archive (postgres)
	if cfg.DatabaseURL != "" {
		arc, err := archive.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("archive connect error")
		}
		defer arc.Close()
		orch.WithArchiver(arc)
		log.Info().Msg("order archive enabled")
	}

	handleTurn := func(phone, name, text string) {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		if err := orch.HandleMessage(ctx, phone, name, text); err != nil {
			log.Error().Err(err).Str("phone", phone).Msg("message handling failed")
		}
	}

	// Inbound dispatch: debounced per phone, or direct when disabled.
	var dispatch handlers.Dispatcher
	if cfg.BufferTimeoutSeconds > 0 {
		mgr := buffer.NewManager(
			time.Duration(cfg.BufferTimeoutSeconds)*time.Second,
			func(phone, name, combined string) { handleTurn(phone, name, combined) },
		)
		dispatch = dispatcherFunc(mgr.AddMessage)
	} else {
		dispatch = dispatcherFunc(func(phone, name, text string) { go handleTurn(phone, name, text) })
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(cfg.WebhookPath, handlers.NewWebhookHandler(dispatch))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("webhook", cfg.WebhookPath).
			Str("session", cfg.SessionName).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahesh-arinnovate/multi-chat/internal/dotenv"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/providers/openai"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/voice/tts"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/config"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/session"
	gatewayserver "github.com/mahesh-arinnovate/multi-chat/pkg/gateway/server"
)

type appDeps struct {
	loadConfig   func() (config.Config, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultAppDeps() appDeps {
	return appDeps{
		loadConfig: config.LoadFromEnv,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func buildSessionManager(cfg config.Config, logger *slog.Logger) *session.Manager {
	provider := openai.New(cfg.OpenAIAPIKey, openai.WithBaseURL(cfg.OpenAIBaseURL))

	var speech tts.Provider
	if cfg.ElevenLabsAPIKey != "" {
		speech = tts.NewElevenLabs(cfg.ElevenLabsAPIKey).WithWSBaseURL(cfg.ElevenLabsWSBaseURL)
	} else {
		logger.Warn("no elevenlabs api key configured, sessions run text-only")
	}

	return session.NewManager(session.Deps{
		Provider:       provider,
		TTS:            speech,
		Model:          cfg.Model,
		Logger:         logger,
		PostAudioDelay: cfg.PostAudioDelay,
		FlushTimeout:   cfg.SpeechFlushTimeout,
	})
}

func run(ctx context.Context, logger *slog.Logger, deps appDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sessions := buildSessionManager(cfg, logger)
	gw := gatewayserver.New(cfg, logger, sessions)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting server", "addr", cfg.Addr, "model", cfg.Model)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Cancel whatever sessions outlived their connections.
	for _, info := range sessions.List() {
		_ = sessions.Delete(info.ID)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps appDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "multi-chat: %v\n", err)
		return 1
	}

	if err := run(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "multi-chat: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultAppDeps()))
}

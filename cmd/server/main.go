package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/portal-session-server/auth"
	"github.com/jrsteele09/portal-session-server/branding"
	"github.com/jrsteele09/portal-session-server/internal/config"
	"github.com/jrsteele09/portal-session-server/otc"
	"github.com/jrsteele09/portal-session-server/server"
	"github.com/jrsteele09/portal-session-server/store"
	"github.com/jrsteele09/portal-session-server/store/memory"
	"github.com/jrsteele09/portal-session-server/store/redis"
	"github.com/jrsteele09/portal-session-server/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	kv, closeKV, err := openKV(c)
	if err != nil {
		return err
	}
	defer closeKV()

	sessionStore := store.New(kv,
		store.WithKeyPrefix(c.GetStoreKeyPrefix()),
		store.WithDefaultTTL(c.GetSessionTTL()),
	)

	tokens := token.NewService()
	if err := tokens.Initialize(c.GetJWTSecret()); err != nil {
		return fmt.Errorf("token.Initialize (is JWT_SECRET set?): %w", err)
	}

	sessionService, err := auth.NewSessionService(sessionStore, tokens,
		auth.WithIssuer(c.GetJWTIssuer()),
		auth.WithSessionTTL(c.GetSessionTTL()),
		auth.WithTokenTTL(c.GetTokenTTL()),
		auth.WithBranding(branding.NewFromFile(c.GetBrandingFile())),
	)
	if err != nil {
		return err
	}

	otcService, err := newOTCService(c, sessionStore)
	if err != nil {
		return err
	}

	handler, err := server.New(c, sessionService, otcService)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if c.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("deployment", c.GetDeploymentEnvironment()).
		Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

func openKV(c config.Config) (store.KV, func(), error) {
	switch c.GetStoreBackend() {
	case config.StoreBackendMemory:
		log.Warn().Msg("Using in-memory session store; sessions are lost on restart")
		return memory.New(), func() {}, nil
	case config.StoreBackendRedis:
		cfg, err := redis.ConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		kv, err := redis.Dial(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to redis")
		return kv, func() {
			if err := kv.Close(); err != nil {
				log.Err(err).Msg("Closing redis")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", c.GetStoreBackend())
}

// newOTCService returns nil when no provider is configured, which disables the OTC routes.
func newOTCService(c config.Config, sessionStore *store.SessionStore) (*otc.Service, error) {
	code := c.GetOTCFixedCode()
	if code == "" {
		log.Info().Msg("No one-time code provider configured, OTC routes disabled")
		return nil, nil
	}
	if c.IsProduction() {
		return nil, errors.New("OTC_FIXED_CODE must not be set in production")
	}
	log.Warn().Msg("Using fixed one-time code provider")
	return otc.NewService(sessionStore, otc.NewFixedCodeProvider(code),
		otc.WithMaxAttempts(c.GetOTCMaxAttempts()),
		otc.WithTTL(c.GetOTCTTL()),
	)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/config"
	"github.com/vuonglv2610/storefront/internal/events"
	"github.com/vuonglv2610/storefront/internal/gateway"
	h "github.com/vuonglv2610/storefront/internal/http"
	"github.com/vuonglv2610/storefront/internal/payment"
	"github.com/vuonglv2610/storefront/internal/session"
)

func main() {
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "storefront").Logger()

	// Checkout handoff store
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis is unreachable")
		}
		cancel()
	}
	sessions := session.NewRedisStore(redisClient)

	// Payments backend
	client := backend.NewClient(cfg.BackendBaseURL, log)
	orchestrator := payment.NewOrchestrator(client, log)
	verifier := gateway.NewVerifier(client, sessions, log)

	// Event bus (optional)
	var publisher events.Publisher = events.NopPublisher{Log: log}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, log)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	checkoutHandler := h.NewCheckoutHandler(sessions, orchestrator, publisher, cfg.RequestTimeout, cfg.RedirectDelay, log)
	callbackHandler := h.NewCallbackHandler(verifier, client, publisher, cfg.RequestTimeout, log)
	orderHandler := h.NewOrderHandler(client, cfg.RequestTimeout, cfg.PollInterval, log)

	router := h.NewRouter(checkoutHandler, callbackHandler, orderHandler, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

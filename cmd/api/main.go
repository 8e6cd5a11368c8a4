package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/config"
	"github.com/snappy-loop/paintchat/internal/handlers"
	"github.com/snappy-loop/paintchat/internal/kafka"
	"github.com/snappy-loop/paintchat/internal/llm"
	"github.com/snappy-loop/paintchat/internal/services"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting paintchat API")

	ctx := context.Background()
	chatModel, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chat backend")
	}
	imageGen, err := llm.NewImageGenerator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image backend")
	}

	var publisher services.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		defer producer.Close()
		publisher = producer
	} else {
		log.Info().Msg("KAFKA_BROKERS not set, relay events disabled")
	}

	h := handlers.NewHandler(
		services.NewChatService(chatModel, publisher),
		services.NewImageService(imageGen, publisher),
		cfg.MaxRequestBytes,
	)

	r := mux.NewRouter()
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/styles", h.Styles).Methods("GET")
	api.HandleFunc("/chat", h.Chat).Methods("POST")
	api.HandleFunc("/chat/ws", h.ChatWS).Methods("GET")
	api.HandleFunc("/images", h.Images).Methods("POST")

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      h2c.NewHandler(r, &http2.Server{}),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}

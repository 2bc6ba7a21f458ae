package main

import (
	"context"
	"net/http"
	"time"

	"github.com/medibook/medibook/libs/config"
	"github.com/medibook/medibook/libs/db"
	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/libs/httpx"
	"github.com/medibook/medibook/libs/kafkax"
	otelx "github.com/medibook/medibook/libs/otel"
	"github.com/medibook/medibook/libs/runtime"
	"github.com/medibook/medibook/services/notification-service/internal/consumer"
	"github.com/medibook/medibook/services/notification-service/internal/dispatch"
	"github.com/medibook/medibook/services/notification-service/internal/handlers"
	"github.com/medibook/medibook/services/notification-service/internal/storage"
	"github.com/medibook/medibook/services/notification-service/internal/ws"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	notificationsRepo := storage.NewRepository(pool)

	hub := ws.NewHub(logger)
	go func() { _ = hub.Run(ctx) }()

	dispatcher := dispatch.New(notificationsRepo, hub, logger)

	eventDriver := config.String("EVENT_DRIVER", events.DriverKafka)
	brokers := config.String("KAFKA_BROKERS", "")
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if eventDriver == events.DriverKafka {
		groupID := config.String("KAFKA_GROUP_ID", "notification-service")
		for _, topic := range events.Topics() {
			eventConsumer := consumer.New(logger, consumer.Config{
				Brokers: brokers,
				GroupID: groupID,
				Topic:   topic,
			}, func(ctx context.Context, msg kafka.Message) error {
				_, err := dispatcher.HandleEvent(ctx, msg.Topic, msg.Value)
				return err
			})
			go eventConsumer.Run(ctx)
			logger.Info("consumer started", "topic", topic, "group_id", groupID)
		}
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Info("broker consumers disabled, ingress endpoint only", "event_driver", eventDriver)
	}

	notificationHandler := handlers.NewNotificationHandler(
		notificationsRepo,
		dispatcher,
		logger,
		config.String("JWT_SECRET", "dev-secret"),
	)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("POST /api/v1/events", notificationHandler.HandleEvent)
	mux.HandleFunc("GET /api/v1/notifications/my", notificationHandler.My)
	mux.HandleFunc("PATCH /api/v1/notifications/{id}/read", notificationHandler.MarkRead)
	mux.Handle("/ws", ws.ServeWS(hub, config.String("FRONTEND_ORIGIN", ""), logger))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

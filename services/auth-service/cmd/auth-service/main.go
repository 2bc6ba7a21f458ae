package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/medibook/medibook/libs/config"
	"github.com/medibook/medibook/libs/db"
	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/libs/httpx"
	"github.com/medibook/medibook/libs/kafkax"
	otelx "github.com/medibook/medibook/libs/otel"
	"github.com/medibook/medibook/libs/runtime"
	"github.com/medibook/medibook/services/auth-service/internal/handlers"
	"github.com/medibook/medibook/services/auth-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "auth-service")
	port, err := config.Port("PORT", "8081")
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

	eventDriver := config.String("EVENT_DRIVER", events.DriverKafka)
	brokers := config.String("KAFKA_BROKERS", "localhost:9092")
	publisher, err := events.New(events.Config{
		Driver:     eventDriver,
		Brokers:    brokers,
		IngressURL: config.String("NOTIFICATION_SERVICE_URL", "http://localhost:8084"),
	}, logger)
	if err != nil {
		logger.Error("event publisher init failed", "err", err)
		panic(err)
	}
	defer func() { _ = publisher.Close() }()

	ready := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if eventDriver == events.DriverKafka {
		ready = append(ready, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(ready...)

	userRepo := storage.NewUserRepository(pool)
	authHandler := handlers.NewAuthHandler(
		userRepo,
		publisher,
		logger,
		config.String("JWT_SECRET", "dev-secret"),
		config.Bool("SECURE_COOKIES", false),
	)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", authHandler.Me)
	mux.HandleFunc("GET /api/v1/auth/users/{id}", authHandler.GetUser)
	mux.HandleFunc("GET /api/v1/auth/doctors", authHandler.Doctors)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "auth")
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

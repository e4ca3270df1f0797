// Package main runs the payments HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kelasvisa/payments/config"
	"github.com/kelasvisa/payments/internal/auth"
	"github.com/kelasvisa/payments/internal/callbacks"
	"github.com/kelasvisa/payments/internal/catalog"
	"github.com/kelasvisa/payments/internal/emaillogs"
	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/invoice"
	"github.com/kelasvisa/payments/internal/metrics"
	"github.com/kelasvisa/payments/internal/middleware"
	"github.com/kelasvisa/payments/internal/notifications"
	"github.com/kelasvisa/payments/internal/payments"
	"github.com/kelasvisa/payments/internal/signature"
	"github.com/kelasvisa/payments/pkg/database"
	"github.com/kelasvisa/payments/pkg/events"
	"github.com/kelasvisa/payments/pkg/queue"
	"github.com/kelasvisa/payments/pkg/redis"
	"github.com/kelasvisa/payments/pkg/response"
	"github.com/kelasvisa/payments/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	metrics.Register()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var archive callbacks.Archive
	if cfg.AWS.PaymentsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.PaymentsBucket,
		}, logger)
		if err != nil {
			logger.Warn("callback archive disabled", zap.Error(err))
		} else {
			archive = s3Client
		}
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer publisher.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	signer := signature.NewSigner(cfg.Doku.ClientID, cfg.Doku.SecretKey)
	gw := gateway.NewClient(cfg.Doku.BaseURL, signer, cfg.Doku.RequestTimeout(), logger)

	userRepo := auth.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	enrollmentRepo := enrollments.NewRepository(pool)
	callbackRepo := callbacks.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	sinks := []notifications.Sink{
		notifications.NewStoreSink(notifications.NewRepository(pool)),
		notifications.NewEmailSink(userRepo, jobQueue),
	}
	if publisher.Enabled() {
		sinks = append(sinks, notifications.NewEventSink(publisher))
	}
	emitter := notifications.NewEmitter(logger, 10*time.Second, sinks...)

	svc := payments.NewService(catalogRepo, enrollmentRepo, gw, invoice.NewAllocator(nil), emitter, payments.Config{
		AppBaseURL:  cfg.App.BaseURL,
		PaymentDue:  time.Duration(cfg.Doku.PaymentDueMinutes) * time.Minute,
		PollTimeout: cfg.Doku.RequestTimeout(),
	}, logger)

	var verifier payments.NotificationVerifier
	if cfg.Doku.VerifyNotifications {
		verifier = signer
	} else {
		logger.Warn("notification signature checks disabled")
	}

	paymentHandler := payments.NewHandler(svc, logger)
	webhookHandler := payments.NewWebhookHandler(svc, verifier, cfg.Doku.NotificationPath, callbacks.NewRecorder(callbackRepo, archive, logger), logger)
	adminHandler := payments.NewAdminHandler(enrollmentRepo, callbackRepo)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway notifications (no JWT; signature checked in handler)
	router.POST(cfg.Doku.NotificationPath, webhookHandler.Notification)

	api := router.Group("/payments")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/orders", paymentHandler.CreateOrder)
		api.POST("/verify", paymentHandler.Verify)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole("admin"))
	{
		admin.GET("/payments/:invoice", adminHandler.GetInvoice)
		admin.GET("/payments/:invoice/emails", emailLogsHandler.ListByInvoice)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	emitter.Wait()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

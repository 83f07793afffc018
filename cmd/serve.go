package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finjan-labs/ms-go-fortunes/app/auth"
	"github.com/finjan-labs/ms-go-fortunes/app/controller"
	"github.com/finjan-labs/ms-go-fortunes/app/factory"
	"github.com/finjan-labs/ms-go-fortunes/app/identity"
	"github.com/finjan-labs/ms-go-fortunes/app/notifier"
	"github.com/finjan-labs/ms-go-fortunes/app/predictor"
	"github.com/finjan-labs/ms-go-fortunes/app/provider"
	"github.com/finjan-labs/ms-go-fortunes/app/repository"
	"github.com/finjan-labs/ms-go-fortunes/app/service"
	"github.com/finjan-labs/ms-go-fortunes/app/storage"
	"github.com/finjan-labs/ms-go-fortunes/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the Echo HTTP server exposing the fortune, payment and email routes.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, services, cleanup := mustCreateServices()
	defer cleanup()

	fortuneController := controller.NewFortuneController(services.fortune, services.email)
	paymentController := controller.NewPaymentController(services.payment)
	sessionVerifier := auth.NewSessionVerifier(cfg.Session.Secret)

	e := setupHTTPServer(fortuneController, paymentController, sessionVerifier)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	fortuneController *controller.FortuneController,
	paymentController *controller.PaymentController,
	sessionVerifier *auth.SessionVerifier,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(sessionVerifier.Middleware())

	e.GET("/health", fortuneController.Health)

	fortunes := e.Group("/fortunes")
	fortunes.POST("", fortuneController.SubmitFortune)
	fortunes.GET("", fortuneController.ListFortunes)
	fortunes.POST("/pending", fortuneController.CreatePendingFortune)
	fortunes.POST("/process", fortuneController.ProcessFortune)
	fortunes.POST("/process-paid", fortuneController.ProcessPaidFortune)
	fortunes.GET("/status", fortuneController.GetFortuneStatus)

	payments := e.Group("/payments")
	payments.POST("/intent", paymentController.CreatePaymentIntent)
	payments.GET("", paymentController.GetPayment)

	emails := e.Group("/emails")
	emails.POST("/fortune", fortuneController.SendReading)

	return e
}

type appServices struct {
	fortune *service.FortuneService
	payment *service.PaymentService
	email   *service.EmailService
}

func mustCreateServices() (*config.Config, *appServices, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	objects, err := storage.NewGCSObjectStore(context.Background(), storage.GCSConfig{
		Bucket:        cfg.GCS.Bucket,
		PublicBaseURL: cfg.GCS.PublicBaseURL,
	})
	if err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to create object store")
	}

	staging := storage.NewRedisStagedUploadStore(rdb, storage.RedisStagingConfig{
		TTL: cfg.Fortunes.StagedUploadTTL,
	})

	fortuneRepo := repository.NewFortuneRepository(db)
	eventRepo := repository.NewFortuneEventRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	stripeProvider := provider.NewStripeProvider(provider.StripeConfig{
		SecretKey:         cfg.Stripe.SecretKey,
		PriceID:           cfg.Stripe.PriceID,
		DefaultPriceCents: cfg.Stripe.DefaultPriceCents,
		Currency:          cfg.Stripe.Currency,
		HTTPTimeout:       cfg.Stripe.HTTPTimeout,
	})
	providerRegistry := provider.NewRegistry(stripeProvider)

	openAIPredictor := predictor.NewOpenAIPredictor(predictor.OpenAIConfig{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		HTTPTimeout: cfg.OpenAI.HTTPTimeout,
	})

	resendNotifier := notifier.NewResendNotifier(notifier.ResendConfig{
		APIKey:      cfg.Resend.APIKey,
		FromAddress: cfg.Resend.FromAddress,
		HTTPTimeout: cfg.Resend.HTTPTimeout,
	})

	clerkProvider := identity.NewClerkProvider(identity.ClerkConfig{
		SecretKey:   cfg.Clerk.SecretKey,
		HTTPTimeout: cfg.Clerk.HTTPTimeout,
	})

	fortuneService := service.NewFortuneService(
		fortuneRepo,
		eventRepo,
		paymentRepo,
		objects,
		staging,
		openAIPredictor,
		providerRegistry,
		cfg.Fortunes,
		factory.NewModuleLogger("fortunes-service"),
	)

	paymentService := service.NewPaymentService(
		paymentRepo,
		fortuneRepo,
		providerRegistry,
		cfg.Fortunes,
		cfg.Stripe.Currency,
		factory.NewModuleLogger("payments-service"),
	)

	emailService := service.NewEmailService(
		fortuneRepo,
		clerkProvider,
		resendNotifier,
		factory.NewModuleLogger("emails-service"),
	)

	cleanup := func() {
		if err := objects.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close object store")
		}
		if err := rdb.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, &appServices{
		fortune: fortuneService,
		payment: paymentService,
		email:   emailService,
	}, cleanup
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	intconfig "busticket/internal/config"
	"busticket/internal/db"
	router "busticket/internal/http"
	"busticket/internal/http/handlers"
	"busticket/internal/payment"
	"busticket/internal/queue"
	"busticket/internal/repositories"
	"busticket/internal/services"
	"busticket/internal/utils"
	"busticket/internal/worker"
)

// notificationSink is the queue the payment flow publishes to.
type notificationSink interface {
	services.Dispatcher
	Close() error
}

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	logger, err := utils.InitLogger(env.GinMode)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := intconfig.ConnectDB(env)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer intconfig.CloseDB()

	if env.DBAutoMigrate {
		if err := db.EnsureSchema(ctx, sqlDB); err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
	}

	bookingRepo := repositories.BookingRepository{DB: sqlDB}
	tripRepo := repositories.TripsRepository{DB: sqlDB}
	seatRepo := repositories.BookingSeatRepository{DB: sqlDB}
	loyaltyRepo := repositories.LoyaltyRepository{DB: sqlDB}
	agentRepo := repositories.AgentRepository{DB: sqlDB}

	var cache services.StatusCache
	if rdb := intconfig.NewRedisClient(env); rdb != nil {
		defer rdb.Close()
		cache = repositories.PaymentStatusCache{Client: rdb, TTL: env.StatusCacheTTL}
		logger.Info("payment status cache enabled", zap.String("addr", env.RedisAddr))
	}

	var notifier services.Notifier = services.LogNotifier{}
	if env.NotifySMSURL != "" || env.NotifyEmailURL != "" {
		notifier = services.WebhookNotifier{
			SMSURL:   env.NotifySMSURL,
			EmailURL: env.NotifyEmailURL,
			Client:   &http.Client{Timeout: 10 * time.Second},
		}
	}
	notifications := services.NewNotificationService(notifier)

	var consumers sync.WaitGroup
	var sink notificationSink
	if env.RabbitMQURL != "" {
		rq, err := queue.NewRabbitQueue(env.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, using in-process queue", zap.Error(err))
		} else {
			sink = rq
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				_ = rq.Consume(ctx, 4, notifications.Deliver)
			}()
		}
	}
	if sink == nil {
		mq := queue.NewMemoryQueue(256)
		sink = mq
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			mq.Run(ctx, 2, notifications.Deliver)
		}()
	}

	registry := payment.NewRegistryFromEnv(env)
	logger.Info("payment providers ready", zap.String("mode", env.PaymentMode))

	payments := &services.PaymentService{
		Bookings:      bookingRepo,
		Providers:     registry,
		Cache:         cache,
		Loyalty:       loyaltyRepo,
		Notifications: sink,
		Config: services.PaymentConfig{
			PollInterval:    env.PaymentPollInterval,
			PollTimeout:     env.PaymentPollTimeout,
			LoyaltyPerPoint: env.LoyaltyXAFPerPoint,
			ExpiryCeiling:   2 * env.PendingBookingTTL,
		},
	}
	payments.Start(ctx)

	refs := utils.NewReferenceGenerator(env.ReferencePrefix)
	auth := services.AuthService{Agents: agentRepo, Secret: []byte(env.JWTSecret), TTL: env.JWTTTL}

	expiry := worker.NewExpiryWorker(bookingRepo, payments, worker.ExpiryWorkerConfig{
		ScanInterval: env.ExpiryScanInterval,
		TTL:          env.PendingBookingTTL,
		BatchSize:    100,
	})
	if err := expiry.Start(ctx); err != nil {
		logger.Fatal("expiry worker failed to start", zap.Error(err))
	}

	h := &handlers.Handlers{
		Bookings: services.BookingService{
			Trips:      tripRepo,
			Seats:      seatRepo,
			Bookings:   bookingRepo,
			Providers:  registry,
			References: refs,
			Payments:   payments,
			Config: services.BookingConfig{
				FeeBps:               env.MobileMoneyFeeBps,
				ReferenceMaxAttempts: env.ReferenceMaxAttempts,
			},
		},
		Payments:     payments,
		Verification: services.VerificationService{Bookings: bookingRepo, References: refs},
		Tickets:      services.TicketService{},
		Auth:         auth,
		Seats:        services.SeatGuard{Seats: seatRepo},
		Expiry:       expiry,
		Loyalty:      loyaltyRepo,
		DB:           sqlDB,
	}
	r := router.NewRouter(env, h)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      env.PaymentPollTimeout + 20*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", env.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	expiry.Stop()
	payments.Wait()
	_ = sink.Close()
	consumers.Wait()
	logger.Info("server stopped")
}

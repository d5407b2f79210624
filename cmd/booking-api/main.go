package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotline/slotline/internal/booking"
	"github.com/slotline/slotline/internal/clock"
	"github.com/slotline/slotline/internal/handlers"
	"github.com/slotline/slotline/internal/outbox"
	"github.com/slotline/slotline/internal/payments"
	"github.com/slotline/slotline/internal/pricing"
	"github.com/slotline/slotline/internal/storage"
	"github.com/slotline/slotline/libs/auth"
	"github.com/slotline/slotline/libs/config"
	"github.com/slotline/slotline/libs/db"
	"github.com/slotline/slotline/libs/httpx"
	"github.com/slotline/slotline/libs/kafkax"
	otelx "github.com/slotline/slotline/libs/otel"
	"github.com/slotline/slotline/libs/runtime"
)

func intEnv(key string, fallback int64) int64 {
	raw := strings.TrimSpace(config.String(key, ""))
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func main() {
	service := config.String("SERVICE_NAME", "booking-api")
	port, err := config.Port("PORT", "8080")
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

	redisAddr, err := config.RequiredString("REDIS_ADDR")
	if err != nil {
		panic(err)
	}
	redisDB := 0
	if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
		redisDB = v
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	defer func() { _ = rdb.Close() }()

	fees := pricing.Config{
		BookingFeeCents:           intEnv("BOOKING_FEE_CENTS", 338),
		PlatformShareFullCents:    intEnv("PLATFORM_SHARE_FULL_CENTS", 200),
		PlatformShareFeeOnlyCents: intEnv("PLATFORM_SHARE_FEE_ONLY_CENTS", 88),
	}
	if err := fees.Validate(); err != nil {
		logger.Error("invalid pricing config", "err", err)
		panic(err)
	}

	var jwksClient *auth.JWKSClient
	if jwksURL := strings.TrimSpace(config.String("AUTH_JWKS_URL", "")); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, time.Duration(intEnv("AUTH_JWKS_TTL_MINUTES", 5))*time.Minute)
	}
	jwtSecret, err := config.RequiredString("AUTH_JWT_SECRET")
	if err != nil {
		panic(err)
	}
	verifier := handlers.NewVerifier(jwtSecret, jwksClient)

	clk := clock.System()
	outboxRepo := outbox.NewRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	availRepo := storage.NewAvailabilityRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	sessions := booking.NewSessionStore(rdb, time.Duration(intEnv("SESSION_TTL_MINUTES", 30))*time.Minute)
	engine := booking.NewEngine(apptRepo, fees, clk, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(apptRepo, availRepo, catalogRepo, sessions, engine, outboxRepo, verifier, clk, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(availRepo, catalogRepo, clk, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)
	calendarHandler := handlers.NewCalendarHandler(apptRepo, catalogRepo, clk, logger)
	stripeWebhook := payments.NewWebhookHandler(
		payments.NewRepository(pool),
		apptRepo,
		outboxRepo,
		logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		time.Duration(intEnv("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300))*time.Second,
	)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: booking.ReadyCheck(rdb)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	mux.HandleFunc("/api/v1/public/providers", catalogHandler.Providers)
	mux.HandleFunc("/api/v1/public/services", catalogHandler.Services)
	mux.HandleFunc("/api/v1/public/addons", catalogHandler.AddOns)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)

	mux.HandleFunc("/api/v1/booking/session", bookingHandler.Session)
	mux.HandleFunc("/api/v1/booking/session/start", bookingHandler.StartSession)
	mux.HandleFunc("/api/v1/booking/session/service", bookingHandler.SelectService)
	mux.HandleFunc("/api/v1/booking/session/time", bookingHandler.SelectTime)
	mux.HandleFunc("/api/v1/booking/session/identity", bookingHandler.SetIdentity)
	mux.HandleFunc("/api/v1/booking/session/payment-mode", bookingHandler.SetPaymentMode)
	mux.HandleFunc("/api/v1/booking/session/back", bookingHandler.Back)
	mux.HandleFunc("/api/v1/booking/session/review", bookingHandler.Review)
	mux.HandleFunc("/api/v1/booking/session/commit", bookingHandler.Commit)
	mux.HandleFunc("/api/v1/booking/session/abandon", bookingHandler.Abandon)

	mux.HandleFunc("/api/v1/appointments/cancel", verifier.RequireRole(bookingHandler.Cancel, "provider"))
	mux.HandleFunc("/api/v1/appointments/complete", verifier.RequireRole(bookingHandler.Complete, "provider"))
	mux.HandleFunc("/api/v1/appointments/missed", verifier.RequireRole(bookingHandler.MarkMissed, "provider"))

	mux.HandleFunc("/api/v1/availability/schedule", verifier.RequireRole(availabilityHandler.Schedule, "provider"))
	mux.HandleFunc("/api/v1/availability/weekly", verifier.RequireRole(availabilityHandler.PutWeekly, "provider"))
	mux.HandleFunc("/api/v1/availability/override", verifier.RequireRole(overrideMux(availabilityHandler), "provider"))
	mux.HandleFunc("/api/v1/availability/timeoff", verifier.RequireRole(timeOffMux(availabilityHandler), "provider"))

	mux.HandleFunc("/api/v1/calendar/provider", verifier.RequireRole(calendarHandler.ProviderFeed, "provider"))
	mux.HandleFunc("/api/v1/calendar/client", verifier.RequireRole(calendarHandler.ClientFeed, "client"))

	mux.Handle("/api/v1/webhooks/stripe", stripeWebhook)

	limitPerMinute := int(intEnv("RATE_LIMIT_PER_MINUTE", 120))
	rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
	requestTimeout := time.Duration(intEnv("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Provider-Id", "X-Client-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
		rl.Middleware(logger, true),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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

// overrideMux dispatches PUT and DELETE on the same path.
func overrideMux(h *handlers.AvailabilityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			h.PutOverride(w, r)
		case http.MethodDelete:
			h.DeleteOverride(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func timeOffMux(h *handlers.AvailabilityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.AddTimeOff(w, r)
		case http.MethodDelete:
			h.DeleteTimeOff(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

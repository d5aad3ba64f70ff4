package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zllovesuki/plzdm/account"
	"github.com/zllovesuki/plzdm/auth"
	"github.com/zllovesuki/plzdm/billing"
	"github.com/zllovesuki/plzdm/config"
	"github.com/zllovesuki/plzdm/customer"
	"github.com/zllovesuki/plzdm/db"
	"github.com/zllovesuki/plzdm/dispatch"
	"github.com/zllovesuki/plzdm/entitlement"
	"github.com/zllovesuki/plzdm/external"
	"github.com/zllovesuki/plzdm/message"
	resp "github.com/zllovesuki/plzdm/response"
	"github.com/zllovesuki/plzdm/store"
	"github.com/zllovesuki/plzdm/throttle"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var environment string
	var err error

	// Determine running environment and initialize structural logger
	if "production" == os.Getenv("ENV") {
		environment = "Prod"
		logger, err = zap.NewProduction()
	} else {
		environment = "Dev"
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Load configurations from dotFile
	cfg, err := config.Load(config.DotFile())
	if err != nil {
		logger.Fatal("Cannot load configurations",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: environment,
		Release:     Version,
		Debug:       !cfg.Production,
	}); err != nil {
		log.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	sentryCfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(sentryCfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot attach sentry to logger",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	// Initialize backend connections
	gormDB, err := db.New(db.Options{
		URI:    cfg.PostgresURI,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	recordStore, err := store.NewStore(logger, gormDB)
	if err != nil {
		logger.Fatal("Cannot initialize Store",
			zap.Error(err),
		)
	}

	var eventLog billing.EventLog
	var rdb *redis.Client
	if len(cfg.RedisURI) > 0 {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURI,
			Password: cfg.RedisPW,
			DB:       0,
		})
		if _, err := rdb.Ping().Result(); err != nil {
			logger.Fatal("Cannot connect to Redis",
				zap.Error(err),
			)
		}
		defer rdb.Close()

		eventLog, err = billing.NewRedisEventLog(rdb)
		if err != nil {
			logger.Fatal("Cannot initialize EventLog",
				zap.Error(err),
			)
		}
	} else {
		logger.Warn("REDIS_URI is not set, webhook deliveries will not be deduplicated")
	}

	stripeClient, err := external.NewStripe(external.NewStripeClient(cfg.StripeKey))
	if err != nil {
		logger.Fatal("Cannot initialize Stripe client",
			zap.Error(err),
		)
	}

	authenticator, err := auth.New(auth.Options{
		Logger:        logger,
		JWTSigningKey: cfg.JWTSigningKey,
		Audience:      cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	reconciler, err := billing.NewReconciler(billing.ReconcilerOptions{
		Store:    recordStore,
		Provider: stripeClient,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Reconciler",
			zap.Error(err),
		)
	}

	webhookRouter, err := billing.NewService(billing.ServiceOptions{
		Reconciler:    reconciler,
		WebhookSecret: cfg.StripeWebhookSecret,
		Logger:        logger,
		EventLog:      eventLog,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Webhook Service Router",
			zap.Error(err),
		)
	}

	customerManager, err := customer.NewManager(customer.ManagerOptions{
		Store:    recordStore,
		Provider: stripeClient,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize CustomerManager",
			zap.Error(err),
		)
	}

	customerRouter, err := customer.NewService(customer.Options{
		CustomerManager: customerManager,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Customer Service Router",
			zap.Error(err),
		)
	}

	policy, err := entitlement.ParsePolicy(cfg.EntitlementPolicy)
	if err != nil {
		logger.Fatal("Cannot parse entitlement policy",
			zap.Error(err),
		)
	}
	resolver, err := entitlement.NewResolver(entitlement.Options{
		Store:  recordStore,
		Policy: policy,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Resolver",
			zap.Error(err),
		)
	}

	accountRouter, err := account.NewService(account.Options{
		Store:    recordStore,
		Resolver: resolver,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Account Service Router",
			zap.Error(err),
		)
	}

	assemblerOptions := message.AssemblerOptions{}
	if len(cfg.BrandedCTALabel) > 0 {
		assemblerOptions.BrandedCTA = &dispatch.CTA{
			Label: cfg.BrandedCTALabel,
			URL:   cfg.BrandedCTAURL,
		}
	}
	assembler, err := message.NewAssembler(assemblerOptions)
	if err != nil {
		logger.Fatal("Cannot initialize Assembler",
			zap.Error(err),
		)
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		ConsumerKey:    cfg.TwitterAPIKey,
		ConsumerSecret: cfg.TwitterAPISecretKey,
		BaseURL:        cfg.TwitterAPIBase,
		HTTPClient: &http.Client{
			Timeout: time.Second * 15,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Dispatcher",
			zap.Error(err),
		)
	}

	messageRouter, err := message.NewService(message.ServiceOptions{
		Store:      recordStore,
		Resolver:   resolver,
		Assembler:  assembler,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Message Service Router",
			zap.Error(err),
		)
	}

	limiter, err := throttle.New(throttle.Options{
		Rate:   cfg.MessageRate,
		Burst:  cfg.MessageBurst,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Limiter",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(middleware.RequestID)
	rootRouter.Use(middleware.Recoverer)
	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootRouter.Mount("/webhooks/stripe", webhookRouter.Router())

	rootRouter.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware())
		r.Use(authenticator.ClaimCheck())

		r.Mount("/customers", customerRouter.Router())
		r.Mount("/accounts", accountRouter.Router())
		r.With(limiter.Middleware).Mount("/messages", messageRouter.Router())
	})

	rootRouter.Handle("/metrics", promhttp.Handler())
	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pool, err := gormDB.DB()
		if err == nil {
			err = pool.PingContext(r.Context())
		}
		if err == nil && rdb != nil {
			err = rdb.WithContext(r.Context()).Ping().Err()
		}
		if err != nil {
			logger.Error("Health check failed",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrServiceUnavailable())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    cfg.ListenAddr,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(time.Minute * 10)
			}
		}
	}()

	go func() {
		logger.Info("API server listening", zap.String("Addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server stopped",
				zap.Error(err),
			)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	logger.Info("Shutting down API server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Unable to shutdown API server gracefully",
			zap.Error(err),
		)
	}
}

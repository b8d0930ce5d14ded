// Command server runs the NamApp marketplace API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/purpose-technology/namapp-server/internal/admin"
	"github.com/purpose-technology/namapp-server/internal/appwrite"
	"github.com/purpose-technology/namapp-server/internal/config"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/health"
	"github.com/purpose-technology/namapp-server/internal/identity"
	"github.com/purpose-technology/namapp-server/internal/logging"
	"github.com/purpose-technology/namapp-server/internal/metrics"
	"github.com/purpose-technology/namapp-server/internal/middleware"
	"github.com/purpose-technology/namapp-server/internal/sms"
)

const serviceName = "namapp-api"

func main() {
	// Optional .env for local development; production uses real env vars.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.New(serviceName, "info", "json").Fatal("load config: ", err)
	}

	logger := logging.New(serviceName, cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New("namapp")

	dbClient, err := database.NewClient(database.Config{
		URL:        cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
		ServiceKey: cfg.Supabase.ServiceKey,
	}, m)
	if err != nil {
		logger.Fatal("supabase client: ", err)
	}
	// The privileged handle: built once, shared by every request, never
	// re-initialized.
	repo := database.NewRepository(dbClient)

	idClient, err := identity.NewClient(identity.Config{
		URL:     cfg.Supabase.URL,
		AnonKey: cfg.Supabase.AnonKey,
	}, m)
	if err != nil {
		logger.Fatal("identity client: ", err)
	}

	var legacy admin.LegacyStore
	var legacyClient *appwrite.Client
	if cfg.Appwrite.Endpoint != "" {
		legacyClient, err = appwrite.NewClient(appwrite.Config{
			Endpoint:   cfg.Appwrite.Endpoint,
			ProjectID:  cfg.Appwrite.ProjectID,
			APIKey:     cfg.Appwrite.APIKey,
			DatabaseID: cfg.Appwrite.DatabaseID,
		}, m)
		if err != nil {
			logger.Fatal("appwrite client: ", err)
		}
		legacy = legacyClient
	} else {
		logger.Info("legacy document store not configured, skipping")
	}

	smsClient := sms.NewClient(sms.Config{
		URL:    cfg.SMS.URL,
		APIKey: cfg.SMS.APIKey,
		Sender: cfg.SMS.Sender,
	}, m)
	if !smsClient.Enabled() {
		logger.Info("sms gateway not configured, notifications disabled")
	}

	gate := admin.NewGate(idClient, repo, logger)
	aggregator := admin.NewAggregator(repo, legacy, cfg.Appwrite.AppsCollection, logger, m)

	checker := health.NewChecker(logger, m)
	checker.Register("supabase", func(ctx context.Context) error {
		_, err := repo.CountUsers(ctx)
		return err
	})
	if legacyClient != nil {
		collection := cfg.Appwrite.AppsCollection
		checker.Register("appwrite", func(ctx context.Context) error {
			_, _, err := legacyClient.ListDocuments(ctx, collection, 1)
			return err
		})
	}
	if err := checker.Start("@every 30s"); err != nil {
		logger.Fatal("health checker: ", err)
	}
	defer checker.Stop()

	var limiter middleware.Limiter
	if cfg.Redis.Addr != "" {
		redisLimiter, err := middleware.NewRedisRateLimiter(
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Server.RatePerSecond*60, time.Minute, logger,
		)
		if err != nil {
			logger.Fatal("redis rate limiter: ", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		logger.Info("using redis rate limiter at ", cfg.Redis.Addr)
	} else {
		limiter = middleware.NewRateLimiter(cfg.Server.RatePerSecond, cfg.Server.RateBurst)
	}

	router := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		repo:       repo,
		gate:       gate,
		aggregator: aggregator,
		sms:        smsClient,
		checker:    checker,
		limiter:    limiter,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening on ", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server: ", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: ", err)
	}
}

// routerDeps bundles everything the routes need.
type routerDeps struct {
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *metrics.Metrics
	repo       *database.Repository
	gate       *admin.Gate
	aggregator *admin.Aggregator
	sms        *sms.Client
	checker    *health.Checker
	limiter    middleware.Limiter
}

func newRouter(deps routerDeps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware(serviceName, deps.metrics))
	r.Use(middleware.RateLimitMiddleware(deps.limiter, deps.logger))

	auth := middleware.NewAuthMiddleware(deps.gate, deps.logger)

	r.HandleFunc("/health", healthHandler(deps.checker)).Methods(http.MethodGet)
	r.Handle("/metrics", deps.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/apps", listAppsHandler(deps.repo)).Methods(http.MethodGet)
	api.HandleFunc("/apps", submitAppHandler(deps.gate, deps.logger)).Methods(http.MethodPost)
	api.HandleFunc("/apps/{id}", getAppHandler(deps.repo)).Methods(http.MethodGet)
	api.HandleFunc("/apps/{id}/icon", uploadAppIconHandler(deps.gate, deps.logger)).Methods(http.MethodPost)
	api.HandleFunc("/apps/{id}/download", downloadAppHandler(deps.repo)).Methods(http.MethodPost)
	api.HandleFunc("/products", listProductsHandler(deps.repo)).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", getProductHandler(deps.repo)).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/ratings", listRatingsHandler(deps.repo)).Methods(http.MethodGet)
	api.Handle("/products/{id}/ratings", auth.RequireUser(createRatingHandler(deps.logger))).Methods(http.MethodPost)
	api.Handle("/orders", auth.RequireUser(createOrderHandler(deps.sms, deps.logger))).Methods(http.MethodPost)
	api.Handle("/orders", auth.RequireUser(listMyOrdersHandler())).Methods(http.MethodGet)
	api.Handle("/profile", auth.RequireUser(profileHandler())).Methods(http.MethodGet)
	api.HandleFunc("/contact", createContactHandler(deps.repo)).Methods(http.MethodPost)
	api.HandleFunc("/driving-school/packages", listPackagesHandler(deps.repo)).Methods(http.MethodGet)
	api.Handle("/driving-school/bookings", auth.RequireUser(createBookingHandler(deps.logger))).Methods(http.MethodPost)
	api.Handle("/driving-school/bookings", auth.RequireUser(listMyBookingsHandler())).Methods(http.MethodGet)

	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(auth.RequireAdmin)
	adminRouter.Handle("/orders", listAdminOrdersHandler()).Methods(http.MethodGet)
	adminRouter.Handle("/orders", updateOrderHandler(deps.sms, deps.logger)).Methods(http.MethodPatch)
	adminRouter.Handle("/stats", statsHandler(deps.aggregator)).Methods(http.MethodGet)
	adminRouter.Handle("/contacts", listAdminContactsHandler()).Methods(http.MethodGet)
	adminRouter.Handle("/contacts", updateContactHandler()).Methods(http.MethodPatch)
	adminRouter.Handle("/apps", updateAppStatusHandler()).Methods(http.MethodPatch)
	adminRouter.Handle("/products", updateProductStatusHandler()).Methods(http.MethodPatch)
	adminRouter.Handle("/bookings", listAdminBookingsHandler()).Methods(http.MethodGet)
	adminRouter.Handle("/bookings", updateBookingHandler()).Methods(http.MethodPatch)

	cors := middleware.NewCORSMiddleware(deps.cfg.Server.AllowedOrigins)
	tracing := middleware.NewTracingMiddleware(deps.logger)
	return tracing.Handler(cors.Handler(r))
}

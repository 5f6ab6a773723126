package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"concord/internal/audit"
	"concord/internal/idp"
	"concord/internal/platform/config"
	"concord/internal/platform/database"
	"concord/internal/platform/health"
	"concord/internal/platform/kafka/producer"
	"concord/internal/platform/logger"
	"concord/internal/platform/metrics"
	rolehandler "concord/internal/role/handler"
	roleservice "concord/internal/role/service"
	rolestore "concord/internal/role/store"
	tenanthandler "concord/internal/tenant/handler"
	tenantservice "concord/internal/tenant/service"
	tenantstore "concord/internal/tenant/store"
	httptransport "concord/internal/transport/http"
	userhandler "concord/internal/user/handler"
	userservice "concord/internal/user/service"
	userstore "concord/internal/user/store"
	request "concord/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing concord",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"idp_base_url", cfg.IdPBaseURL,
		"realm", cfg.IdPRealm,
	)

	m := metrics.New()
	latency := request.NewMetrics()

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	tokens := idp.NewTokenManager(idp.TokenConfig{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.IdPClientID,
		ClientSecret: cfg.IdPClientSecret,
		Timeout:      cfg.IdPTimeout,
	},
		idp.WithTokenLogger(log),
		idp.WithTokenMetrics(m),
	)
	gateway := idp.NewAdminClient(cfg.IdPBaseURL, cfg.IdPRealm, tokens, cfg.IdPTimeout,
		idp.WithLogger(log),
		idp.WithMetrics(m),
	)

	var publisher audit.Publisher = audit.Nop{}
	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err = producer.New(producer.Config{Brokers: cfg.KafkaBrokers}, log)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		publisher = audit.NewKafkaPublisher(kafkaProducer, cfg.AuditTopic)
		log.Info("audit publishing enabled", "topic", cfg.AuditTopic)
	}

	var (
		tenants tenantservice.TenantStore
		users   userservice.UserStore
		roles   roleservice.RoleStore
	)
	if pool != nil {
		tenants = tenantstore.NewPostgres(pool.DB())
		users = userstore.NewPostgres(pool.DB())
		roles = rolestore.NewPostgres(pool.DB())
		log.Info("using postgres stores")
	} else {
		tenants = tenantstore.NewInMemory()
		users = userstore.NewInMemory()
		roles = rolestore.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	tenantSvc := tenantservice.New(gateway, tenants, tokens,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(m),
		tenantservice.WithAuditPublisher(publisher),
	)
	userSvc := userservice.New(gateway, users, tenants, tokens,
		userservice.WithLogger(log),
		userservice.WithMetrics(m),
		userservice.WithAuditPublisher(publisher),
	)
	roleSvc := roleservice.New(gateway, roles, tokens,
		roleservice.WithLogger(log),
		roleservice.WithMetrics(m),
		roleservice.WithAuditPublisher(publisher),
	)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", pool.Ping)
	}
	healthHandler.RegisterCheck("idp", tokens.EnsureValid)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:  log,
		Health:  healthHandler,
		Latency: latency,
		Tenants: tenanthandler.New(tenantSvc, log),
		Users:   userhandler.New(userSvc, log),
		Roles:   rolehandler.New(roleSvc, log),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	if kafkaProducer != nil {
		_ = kafkaProducer.Close()
	}
	if pool != nil {
		_ = pool.Close()
	}

	log.Info("server stopped")
}

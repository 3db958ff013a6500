package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"datahub-storefront/internal/config"
	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/infra/adapters/payment"
	"datahub-storefront/internal/infra/adapters/registration"
	"datahub-storefront/internal/infra/api"
	"datahub-storefront/internal/infra/api/apiv1"
	pg "datahub-storefront/internal/infra/db/postgres"
	"datahub-storefront/internal/infra/i18n"
	"datahub-storefront/internal/infra/logging"
	"datahub-storefront/internal/infra/metrics"
	red "datahub-storefront/internal/infra/redis"
	"datahub-storefront/internal/infra/sched"
	"datahub-storefront/internal/infra/security"
	"datahub-storefront/internal/infra/worker"
	"datahub-storefront/internal/usecase"
)

const devSessionSecret = "dev-session-secret-not-for-production"

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP service and payment reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(Version, Commit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if cfg.Runtime.Dev {
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Encryption ----
	var encSvc *security.EncryptionService
	if cfg.Security.EncryptionKey == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("security.encryption_key not set; using a random key, stored contact details will not survive a restart")
		encSvc, err = security.NewRandomEncryptionService()
	} else {
		encSvc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
	}
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	orderRepo := pg.NewOrderRepo(pool, encSvc)
	wizardStates := red.NewWizardStateRepo(redisClient, cfg.Redis.TTL, 2*cfg.Scheduler.StaleAfter)
	carts := red.NewCartStore(redisClient, cfg.Redis.CartTTL)
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Providers ----
	gateway, widget, err := newPayments(ctx, cfg, logger)
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	msgs, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Use cases ----
	ps := cfg.Payment.Paystack
	wizardUC := usecase.NewAFAWizardUseCase(wizardStates, locker, limiter, paymentRepo, registry, gateway, widget, msgs,
		usecase.AFAWizardConfig{
			FeeMajor:      cfg.AFA.FeeMajor,
			Currency:      ps.Currency,
			StoreEmail:    ps.StoreEmail,
			PackagesRoute: cfg.AFA.PackagesRoute,
			CheckLimit:    cfg.Registration.CheckLimit,
			CheckWindow:   cfg.Registration.CheckWindow,
			Dev:           cfg.Runtime.Dev,
		}, logger)
	cartUC := usecase.NewCartUseCase(carts, cfg.Catalog, ps.Currency, logger)
	checkoutUC := usecase.NewCheckoutUseCase(cartUC, carts, orderRepo, paymentRepo, txManager, gateway, ps.StoreEmail, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, orderRepo, txManager, gateway, logger)

	// ---- Reconciler ----
	workers := worker.NewPool(cfg.Scheduler.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()
	reconciler := sched.NewPaymentReconciler(paymentUC, workers, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP ----
	secret := cfg.Session.Secret
	if secret == "" {
		secret = devSessionSecret
	}
	v1 := apiv1.NewServer(apiv1.Deps{
		Wizard:   wizardUC,
		Cart:     cartUC,
		Checkout: checkoutUC,
		Payments: paymentUC,
		Sessions: apiv1.NewSessionManager(secret, cfg.Session.SecureCookie, cfg.Session.CookieDomain, cfg.Session.TTL),
		Messages: msgs,
		AdminKey: cfg.Admin.APIKey,
	}, logger)
	router := api.NewRouter(v1, cfg.Server.RequestTimeout, map[string]api.HealthCheck{
		"postgres":       pool.Ping,
		"redis":          redisClient.Ping,
		"payment_widget": widget.Check,
	}, logger)
	srv := api.NewServer(cfg.Server.Port, router, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newPayments(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, *payment.Readiness, error) {
	ps := cfg.Payment.Paystack
	widget := payment.NewReadiness(ps.InlineScriptURL, logger)

	switch cfg.Payment.Provider {
	case "noop":
		key := ps.PublicKey
		if key == "" {
			key = "pk_test_noop"
		}
		widget.MarkReady()
		logger.Info().Bool("permissive", cfg.Runtime.Dev).Msg("payment gateway: noop")
		return payment.NewNoopPaymentGateway(key, cfg.Runtime.Dev), widget, nil
	default:
		gw, err := payment.NewPaystackGateway(ps.PublicKey, ps.SecretKey, ps.BaseURL, ps.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("paystack gateway: %w", err)
		}
		go widget.Load(ctx)
		logger.Info().Str("base_url", ps.BaseURL).Msg("payment gateway: paystack")
		return gw, widget, nil
	}
}

func newRegistry(cfg *config.Config, logger *zerolog.Logger) (adapter.RegistrationService, error) {
	rc := cfg.Registration
	if rc.Provider == "memory" {
		logger.Info().Msg("registration backend: memory")
		return registration.NewMemoryService(), nil
	}
	c, err := registration.NewHTTPClient(rc.BaseURL, rc.Token, rc.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("registration client: %w", err)
	}
	logger.Info().Str("base_url", rc.BaseURL).Msg("registration backend: http")
	return c, nil
}

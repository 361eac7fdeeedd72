package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/officekit/accountd/modules/account"
	"github.com/officekit/accountd/pkg/config"
	"github.com/officekit/accountd/pkg/environment"
	"github.com/officekit/accountd/pkg/httpserver"
	"github.com/officekit/accountd/pkg/logger"
	"github.com/officekit/accountd/pkg/pg"
	"github.com/officekit/accountd/pkg/ratelimit"
	"github.com/officekit/accountd/pkg/scheduler"
	"github.com/officekit/accountd/svc/idp"
	"github.com/officekit/accountd/svc/notification"
	"github.com/officekit/accountd/svc/signup"
	"github.com/officekit/accountd/svc/subscription"
	"github.com/officekit/accountd/svc/tenant"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Provider     string `env:"IDP_PROVIDER" envDefault:"keycloak"`
	LoginBaseURL string `env:"LOGIN_BASE_URL" envDefault:"http://localhost:8081"`

	AllowedEmailDomains []string `env:"ALLOWED_EMAIL_DOMAINS" envSeparator:","`
	BannedDisplayWords  []string `env:"BANNED_DISPLAY_WORDS" envSeparator:","`
	PlanCatalogPath     string   `env:"PLAN_CATALOG_PATH"`

	RedisURL         string        `env:"REDIS_URL"`
	SignupRateLimit  int64         `env:"SIGNUP_RATE_LIMIT" envDefault:"5"`
	SignupRateWindow time.Duration `env:"SIGNUP_RATE_WINDOW" envDefault:"1m"`

	RenewalSweepInterval time.Duration `env:"RENEWAL_SWEEP_INTERVAL" envDefault:"1h"`
	TrialSweepInterval   time.Duration `env:"TRIAL_SWEEP_INTERVAL" envDefault:"1h"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	env := environment.Parse(cfg.Env)
	log := logger.New(
		logger.WithLevel(parseLevel(cfg.LogLevel)),
		logger.WithEnvironment(env, "accountd"),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			if id := tenant.IDFromContext(ctx); id != "" {
				return slog.String("tenant_id", id), true
			}
			return slog.Attr{}, false
		}),
	)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("accountd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	// Stores.
	tenants := tenant.NewStore(pool)
	users := tenant.NewUserStore(pool)
	subStore := subscription.NewPGStore(pool)
	notifStore := notification.NewPGStore(pool)

	// Plan catalog: file-based when configured, built-in otherwise.
	catalog := subscription.NewCatalog(nil)
	if cfg.PlanCatalogPath != "" {
		catalog, err = subscription.LoadCatalogFile(cfg.PlanCatalogPath)
		if err != nil {
			return err
		}
	}

	// Outbound email. Development runs without postmark credentials.
	var senderCfg notification.SenderConfig
	config.MustLoad(&senderCfg)
	var sender notification.Sender
	if senderCfg.ServerToken != "" {
		sender, err = notification.NewPostmarkSender(senderCfg)
		if err != nil {
			return err
		}
	} else {
		log.Warn("postmark not configured, outbound email disabled")
		sender = notification.NopSender{}
	}
	notifier := notification.NewService(notifStore, sender, func(ctx context.Context, tenantID string) (string, error) {
		t, err := tenants.GetByID(ctx, tenantID)
		if err != nil {
			return "", err
		}
		return t.AdminEmail, nil
	}, log)

	// Tenant reads on the user-provisioning path go through a cache;
	// plan changes invalidate it so ceilings never lag a TTL behind.
	tenantCache := tenant.NewCache(tenants.GetByID, 1000, 5*time.Minute)

	subs := subscription.NewService(subStore, catalog,
		subscription.WithLogger(log),
		subscription.WithNotifier(notifier),
		subscription.WithPlanChangeHook(tenantCache.Invalidate),
	)

	// Identity providers, resolved once by configuration key.
	var kcCfg idp.KeycloakConfig
	config.MustLoad(&kcCfg)
	registry := idp.NewRegistry()
	registry.Register("keycloak", idp.NewKeycloak(kcCfg))
	gateway, err := registry.Get(cfg.Provider)
	if err != nil {
		return err
	}

	enforcer := subscription.NewEnforcer(catalog, gateway)
	userSvc := tenant.NewUserService(tenantCache, users, gateway, enforcer, func(ctx context.Context, tenantID string) (string, error) {
		sub, err := subs.Current(ctx, tenantID)
		if err != nil {
			return "", err
		}
		return sub.PlanCode, nil
	}, log)

	saga := signup.NewSaga(gateway, tenants, subs,
		signup.WithLogger(log),
		signup.WithProviderName(cfg.Provider),
		signup.WithLoginBaseURL(cfg.LoginBaseURL),
		signup.WithAllowedEmailDomains(cfg.AllowedEmailDomains),
		signup.WithDisplayNameFilter(cfg.BannedDisplayWords),
		signup.WithAdminMirror(users),
		signup.WithNotifier(notifier),
	)

	// Signup rate limiting backed by Redis when available.
	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		limiterStore = ratelimit.NewRedisStore(redis.NewClient(redisOpts), "signup")
	}
	limiter := ratelimit.New(limiterStore, cfg.SignupRateLimit, cfg.SignupRateWindow)

	router := chi.NewRouter()
	router.Mount("/", account.Router(account.Deps{
		Signup:        saga,
		Subscriptions: subs,
		Notifications: notifier,
		Users:         userSvc,
		Seats:         enforcer,
		Log:           log,
		SignupLimiter: ratelimit.Middleware(limiter, nil),
		Healthcheck:   pg.Healthcheck(pool),
	}))

	// Billing sweeps run inside the server process.
	sweeps := scheduler.New(log)
	sweeps.Register("process-renewals", cfg.RenewalSweepInterval, subs.ProcessRenewals)
	sweeps.Register("process-trial-expirations", cfg.TrialSweepInterval, subs.ProcessTrialExpirations)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeps.Start(runCtx)
	}()

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)
	err = httpserver.New(srvCfg, log).Run(runCtx, router)

	cancel()
	<-done
	return err
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

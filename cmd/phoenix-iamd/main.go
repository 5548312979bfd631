// Command phoenix-iamd runs the authorization server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun/migrate"

	authgin "github.com/soilmonitoring/phoenix-iam/adapters/gin"
	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/authcode"
	"github.com/soilmonitoring/phoenix-iam/config"
	"github.com/soilmonitoring/phoenix-iam/core"
	"github.com/soilmonitoring/phoenix-iam/identity"
	"github.com/soilmonitoring/phoenix-iam/jobs"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
	migrations "github.com/soilmonitoring/phoenix-iam/migrations/postgres"
	"github.com/soilmonitoring/phoenix-iam/oauth"
	"github.com/soilmonitoring/phoenix-iam/password"
	redislimiter "github.com/soilmonitoring/phoenix-iam/ratelimit/redis"
	pgstore "github.com/soilmonitoring/phoenix-iam/storage/postgres"
	redisstore "github.com/soilmonitoring/phoenix-iam/storage/redis"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := pgstore.NewDB(pool)
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	keys, err := jwtkit.NewKeyManager(jwtkit.KeyConfig{
		PoolSize:    cfg.KeyPoolSize,
		SigningTTL:  cfg.KeySigningTTL,
		VerifyGrace: cfg.TokenLifetime,
	})
	if err != nil {
		return err
	}
	issuer := jwtkit.NewIssuer(keys, jwtkit.IssuerConfig{Lifetime: cfg.TokenLifetime})
	codec, err := authcode.NewCodec(authcode.CodecConfig{TTL: cfg.CodeLifetime})
	if err != nil {
		return err
	}
	hasher := password.NewHasher(cfg.PasswordParams())

	tenants := pgstore.NewTenantRepo(db)
	identities := pgstore.NewIdentityRepo(db)
	grants := pgstore.NewGrantRepo(db)

	workers, err := jobs.NewWorkers(core.LogEmailSender{Log: log})
	if err != nil {
		return err
	}
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 10}},
		Workers: workers,
	})
	if err != nil {
		return err
	}
	if err := riverClient.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = riverClient.Stop(stopCtx)
	}()

	users := identity.NewService(identity.ServiceConfig{
		Identities: identities,
		Hasher:     hasher,
		Codes:      redisstore.NewActivationCache(rdb, ""),
		Notifier:   &jobs.RiverNotifier{Client: riverClient},
	})

	flow := oauth.NewController(oauth.ControllerConfig{
		Tenants:    tenants,
		Identities: identities,
		Grants:     oauth.NewGrantService(tenants, identities, grants, nil),
		Hasher:     hasher,
		Issuer:     issuer,
		Sessions:   oauth.NewSessionCodec(issuer, cfg.SessionLifetime, nil),
		Codes:      codec,
		UsedCodes:  redisstore.NewCodeStore(rdb, ""),
		Log:        log,
	})

	limiter := redislimiter.New(rdb, map[string]redislimiter.Limit{
		ginutil.RLLogin: {Limit: cfg.LoginRateLimit, Window: cfg.LoginRateWindow},
	})

	sweeps := cron.New()
	if _, err := sweeps.AddFunc("@every 5m", func() {
		if err := keys.Maintain(); err != nil {
			log.WithError(err).Error("key pool maintenance failed")
		}
	}); err != nil {
		return err
	}
	sweeps.Start()
	defer sweeps.Stop()

	router := authgin.NewRouter(authgin.Deps{
		Flow:    flow,
		Keys:    keys,
		Users:   users,
		Tenants: tenants,
		Audit:   core.LogrusAuthEvents{Log: log},
		Limiter: limiter,
		Pool:    pool,
		Redis:   rdb,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

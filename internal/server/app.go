// Package server assembles the gophauth application: storage, token issuer,
// mail delivery, avatar storage, Google sign-in, the HTTP API, the gRPC
// health endpoint and the OTP sweeper. It also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/oauth"
	"github.com/dmitrijs2005/gophauth/internal/server/objectstore"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/sweeper"
	"github.com/dmitrijs2005/gophauth/internal/telemetry"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const (
	serviceName  = "gophauth"
	drainTimeout = 15 * time.Second
)

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	newRedisClient       = func(cfg *config.Config) redis.UniversalClient {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    redis.UniversalClient
	notifier *notify.Async
	http     *httpapi.Server
	grpc     *gs.GRPCServer
	sweeper  *sweeper.Sweeper
	tracing  telemetry.ShutdownFunc
}

// NewApp validates c and builds every component. Migrations are applied
// before it returns.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	app.db, err = openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := newRepositoryManager()
	if err := repos.RunMigrations(ctx, app.db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	if c.RedisAddr != "" {
		app.redis = newRedisClient(c)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		repos = repomanager.WithRedisPasswordResets(repos, passwordresets.NewRedisRepository(app.redis, 0))
		logger.Info(ctx, "reset codes stored in redis", "addr", c.RedisAddr)
	}

	issuer, err := auth.NewIssuer(
		auth.KeyConfig{Secret: []byte(c.AccessTokenSecret), TTL: c.AccessTokenValidityDuration},
		auth.KeyConfig{Secret: []byte(c.RefreshTokenSecret), TTL: c.RefreshTokenValidityDuration},
	)
	if err != nil {
		return nil, err
	}

	sender, err := notify.NewSender(notify.SenderConfig{
		Provider:       c.MailProvider,
		MailgunDomain:  c.MailgunDomain,
		MailgunAPIKey:  c.MailgunAPIKey,
		SendGridAPIKey: c.SendGridAPIKey,
		SMTPHost:       c.SMTPHost,
		SMTPPort:       c.SMTPPort,
		SMTPUsername:   c.SMTPUsername,
		SMTPPassword:   c.SMTPPassword,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.notifier = notify.NewAsync(notify.NewEmailNotifier(sender, c.MailFrom), logger, 0)

	avatars, err := objectstore.NewS3Store(ctx, objectstore.Config{
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		BaseEndpoint:  c.S3BaseEndpoint,
		PublicBaseURL: c.S3PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}

	deps := services.Deps{
		DB:       app.db,
		Repos:    repos,
		Hasher:   auth.NewBcryptHasher(c.BcryptCost),
		Tokens:   issuer,
		Notifier: app.notifier,
		Avatars:  avatars,
		Logger:   logger,
	}

	var google httpapi.GoogleProvider
	if g := oauth.NewGoogle(c.GoogleClientID, c.GoogleClientSecret, c.GoogleRedirectURL); g != nil {
		google = g
	} else {
		logger.Info(ctx, "sign-in with Google disabled")
	}

	tp, shutdown, err := telemetry.Setup(ctx, serviceName, c.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	app.tracing = shutdown

	app.http = httpapi.NewServer(c.EndpointAddrHTTP, logger,
		services.NewAuthService(deps), services.NewUserService(deps), issuer, google)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, app.db, 0, tp)
	app.sweeper = sweeper.New(app.db, repos, c.OTPSweepInterval, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a signal arrives, or a server fails.
// Pending notifications are drained before resources are released.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	serve := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, "server failed", "server", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	serve("http", app.http.Run)
	serve("grpc", app.grpc.Run)

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	app.logger.Info(ctx, "Stopping app...")
	app.close(ctx)

	return errors.Join(errs...)
}

// close drains notifications and releases whatever NewApp acquired.
func (app *App) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	if app.notifier != nil {
		if err := app.notifier.Wait(ctx); err != nil {
			app.logger.Warn(ctx, "pending notifications dropped", "error", err)
		}
	}
	if app.tracing != nil {
		if err := app.tracing(ctx); err != nil {
			app.logger.Warn(ctx, "tracing shutdown", "error", err)
		}
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

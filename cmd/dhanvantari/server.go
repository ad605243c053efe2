package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dhanvantari/dhanvantari/internal/config"
	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/alert"
	"github.com/dhanvantari/dhanvantari/internal/domain/healthrecord"
	"github.com/dhanvantari/dhanvantari/internal/domain/insight"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/domain/minting"
	"github.com/dhanvantari/dhanvantari/internal/domain/prescription"
	"github.com/dhanvantari/dhanvantari/internal/domain/report"
	"github.com/dhanvantari/dhanvantari/internal/domain/scan"
	"github.com/dhanvantari/dhanvantari/internal/domain/verification"
	"github.com/dhanvantari/dhanvantari/internal/platform/auth"
	"github.com/dhanvantari/dhanvantari/internal/platform/blobstore"
	"github.com/dhanvantari/dhanvantari/internal/platform/cache"
	"github.com/dhanvantari/dhanvantari/internal/platform/chain"
	"github.com/dhanvantari/dhanvantari/internal/platform/db"
	"github.com/dhanvantari/dhanvantari/internal/platform/lock"
	"github.com/dhanvantari/dhanvantari/internal/platform/middleware"
	"github.com/dhanvantari/dhanvantari/internal/platform/notification"
	"github.com/dhanvantari/dhanvantari/internal/platform/validate"
)

// deps are the outside collaborators the server is built from.
type deps struct {
	pool    *pgxpool.Pool
	cache   cache.Store
	locker  lock.Locker
	chain   minting.Chain // nil when no contract is configured
	network chain.Network
	blobs   blobstore.Store
	mailer  alert.Mailer
	backend insight.Backend
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV") == "" || os.Getenv("ENV") == "development")
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	d := deps{pool: pool, mailer: newMailer(cfg), backend: newInsightBackend(cfg)}

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache and locks")
	}
	if rdb != nil {
		defer rdb.Close()
		d.cache = cache.NewRedisStore(rdb, "dhanvantari:")
		d.locker = lock.NewRedisLocker(rdb)
	} else {
		d.cache = cache.NewMemoryStore()
		d.locker = lock.NewMemoryLocker()
	}

	d.chain, d.network, err = dialChain(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to chain rpc")
	}
	if d.chain == nil {
		logger.Warn().Msg("CONTRACT_ADDRESS not set, minting disabled")
	}

	d.blobs, err = newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure blob store")
	}

	e, recorder := newServer(cfg, logger, d)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("network", d.network.Name).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	if err := recorder.Drain(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("pending scans not flushed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// connectRedis returns nil without error when url is empty.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	return cache.NewRedisClient(ctx, url)
}

// dialChain connects to the RPC when a contract is configured. The wallet
// is optional: without it mints fail the wallet check.
func dialChain(ctx context.Context, cfg *config.Config) (minting.Chain, chain.Network, error) {
	id, err := cfg.ChainIDValue()
	if err != nil {
		return nil, chain.Network{}, err
	}
	network := chain.NetworkFor(id, cfg.ChainRPCURL)
	if cfg.ContractAddress == "" {
		return nil, network, nil
	}

	contract, err := chain.NewContract(common.HexToAddress(cfg.ContractAddress))
	if err != nil {
		return nil, network, err
	}
	var wallet *chain.Wallet
	if cfg.WalletPrivateKey != "" {
		if wallet, err = chain.WalletFromHex(cfg.WalletPrivateKey); err != nil {
			return nil, network, err
		}
	}
	client, err := chain.Dial(ctx, cfg.ChainRPCURL, contract, wallet, chain.Config{Network: network})
	if err != nil {
		return nil, network, err
	}
	return client, network, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.S3Bucket == "" {
		return blobstore.NewMemoryStore(), nil
	}
	return blobstore.NewS3Store(ctx, blobstore.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
}

func newMailer(cfg *config.Config) alert.Mailer {
	var sender notification.EmailSender = notification.NoopSender{}
	if cfg.SMTPHost != "" {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return notification.NewMailer(sender, notification.NewTemplateEngine())
}

// newInsightBackend returns nil for "none"; the insight service then
// always answers with its fallback.
func newInsightBackend(cfg *config.Config) insight.Backend {
	switch cfg.AIBackend {
	case "completion":
		return insight.NewCompletionBackend(cfg.AIEndpoint, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
	case "webhook":
		return insight.NewWebhookBackend(cfg.AIEndpoint, cfg.AITimeout)
	}
	return nil
}

func newJWTMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.AuthIssuer == "" && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		return nil
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

// newServer wires every service onto an echo instance. The returned
// recorder must be drained after the server stops.
func newServer(cfg *config.Config, logger zerolog.Logger, d deps) (*echo.Echo, *scan.Recorder) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Dev-User", "X-Dev-Role"},
	}))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dK", blobstore.MaxFileSize/1024+64)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.pool, func() *db.PoolStats { return db.GetPoolStats(d.pool) }))

	// Repositories
	accountRepo := account.NewRepoPG(d.pool)
	alertRepo := alert.NewRepoPG(d.pool)
	medicineRepo := medicine.NewMedicineRepoPG(d.pool)
	unitRepo := medicine.NewUnitRepoPG(d.pool)
	scanRepo := scan.NewRepoPG(d.pool)

	// Services
	accountSvc := account.NewService(accountRepo)
	alertSvc := alert.NewService(alertRepo, accountRepo, d.mailer)
	medicineSvc := medicine.NewService(medicineRepo, unitRepo, db.NewTxRunner(d.pool), scanRepo, alertSvc)
	recorder := scan.NewRecorder(scanRepo, 0)
	insightSvc := insight.NewService(d.backend, d.cache, cfg.AICacheTTL)
	verifySvc := verification.NewService(verification.NewResolver(medicineRepo, unitRepo, recorder), insightSvc)
	mintSvc := minting.NewService(d.chain, medicineSvc, minting.NewAnomalyRepoPG(d.pool), d.locker, minting.Config{
		Network:        d.network,
		ConfirmTimeout: cfg.MintConfirmTimeout,
		LockTTL:        cfg.MintLockTTL,
	})
	reportSvc := report.NewService(report.NewRepoPG(d.pool), medicineRepo, alertSvc)
	recordSvc := healthrecord.NewService(healthrecord.NewRepoPG(d.pool), accountRepo, medicineRepo, d.blobs)
	rxSvc := prescription.NewService(prescription.NewRepoPG(d.pool), accountRepo, medicineRepo)

	apiV1 := e.Group("/api/v1")
	jwtMW := newJWTMiddleware(cfg)
	switch {
	case cfg.IsDev():
		apiV1.Use(auth.DevAuthMiddleware(jwtMW))
	case jwtMW != nil:
		apiV1.Use(auth.Optional(jwtMW))
	}
	apiV1.Use(account.Resolve(accountSvc))

	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	alert.NewHandler(alertSvc).RegisterRoutes(apiV1)
	medicine.NewHandler(medicineSvc, medicine.NewLabels(cfg.PublicURL)).RegisterRoutes(apiV1)
	minting.NewHandler(mintSvc).RegisterRoutes(apiV1)
	scan.NewHandler(scan.NewService(scanRepo)).RegisterRoutes(apiV1)
	verification.NewHandler(verifySvc).RegisterRoutes(apiV1)
	insight.NewHandler(insightSvc).RegisterRoutes(apiV1)
	report.NewHandler(reportSvc).RegisterRoutes(apiV1)
	healthrecord.NewHandler(recordSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(rxSvc).RegisterRoutes(apiV1)

	return e, recorder
}

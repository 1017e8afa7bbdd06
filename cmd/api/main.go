package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"taxforms-api/config"
	"taxforms-api/controllers"
	"taxforms-api/middleware"
	"taxforms-api/monitor"
	"taxforms-api/routes"
	"taxforms-api/services"
	"taxforms-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	bootLog := logrus.New()
	config.LoadEnv(bootLog)
	cfg := config.Load()

	log, logFile := config.InitLogging(cfg.IsProduction())

	code := 0
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server stopped")
		code = 1
	}
	if logFile != nil {
		logFile.Close()
	}
	os.Exit(code)
}

// run wires the services and serves until the listener fails. Deferred
// cleanup inside run always executes before main exits.
func run(cfg config.Config, log *logrus.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("Database connected successfully")

	store, localStore, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialise object storage: %w", err)
	}

	drafts := services.DraftStore(services.NewMemoryDraftStore())
	if cfg.Redis.Addr != "" {
		rdb, err := config.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		drafts = services.NewRedisDraftStore(rdb)
		log.WithField("addr", cfg.Redis.Addr).Info("Wizard drafts stored in redis")
	}

	policy := services.RequiredFieldsPermissive
	if cfg.EnforceRequiredFields {
		policy = services.RequiredFieldsEnforce
	}

	identity := services.NewIdentityService(db, cfg.JWTSecret, time.Duration(cfg.JWTExpireHours)*time.Hour, log)
	accounts := services.NewAccountService(db, identity)
	schema := services.NewFormSchemaService(db, log)
	intake := services.NewFileIntakeService(store, services.NewHEICConverter(), cfg.MaxUploadBytes, log)
	submission := services.NewSubmissionService(db, schema, store, log)
	wizards := services.NewWizardService(drafts, schema, intake, submission, policy, log)

	mailer := config.NewMailer(cfg.SMTP)
	var notifier services.Notifier = services.NoopNotifier{}
	if mailer.Configured() {
		notifier = services.NewMailNotifier(mailer)
	} else {
		log.Info("SMTP not configured, status notifications disabled")
	}
	resolver := services.DefaultFileResolver(store, &http.Client{Timeout: 30 * time.Second})
	review := services.NewAdminReviewService(db, resolver, notifier, log)

	// Set Gin mode
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(monitor.Middleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	monitor.RegisterMetrics(router)
	if localStore != nil {
		router.Static("/storage/v1/object/public/"+localStore.Bucket(), localStore.Dir())
	}

	routes.SetupRoutes(router, routes.Dependencies{
		DB:               db,
		Sessions:         identity,
		RateLimiter:      middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst, log),
		Auth:             controllers.NewAuthController(accounts, identity),
		FormTypes:        controllers.NewFormTypeController(schema),
		Uploads:          controllers.NewUploadController(intake, cfg.MaxUploadBytes),
		Applications:     controllers.NewApplicationController(submission, schema),
		Wizard:           controllers.NewWizardController(wizards, cfg.MaxUploadBytes),
		AdminApplication: controllers.NewAdminApplicationController(review),
	})

	log.WithFields(logrus.Fields{
		"port":    cfg.ServerPort,
		"storage": cfg.Storage.Backend,
		"policy":  policy,
	}).Info("Server starting")

	if err := router.Run(":" + cfg.ServerPort); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// openStore builds the configured object store. The local store is also
// returned so its directory can be served at the public object prefix.
func openStore(cfg config.StorageConfig) (storage.ObjectStore, *storage.LocalStore, error) {
	if cfg.Backend == "supabase" {
		store, err := storage.NewSupabaseStore(storage.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
	local, err := storage.NewLocalStore(cfg.UploadPath, cfg.Bucket, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

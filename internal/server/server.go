package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/handler"
	"github.com/noah-isme/contrail/internal/repository"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/config"
	"github.com/noah-isme/contrail/pkg/export"
	"github.com/noah-isme/contrail/pkg/jobs"
	"github.com/noah-isme/contrail/pkg/rsacrypt"
	"github.com/noah-isme/contrail/pkg/storage"
)

const cachePrefix = "contrail:cache"

// Options carries dependencies that are created outside Build.
type Options struct {
	// Redis enables the dashboard cache when non-nil and
	// cfg.Dashboard.CacheEnabled is set.
	Redis redis.UniversalClient
	// PasswordCost is the bcrypt cost for fixtures and new accounts. Zero
	// means bcrypt.DefaultCost.
	PasswordCost int
	// SkipSeed starts from an empty store.
	SkipSeed bool
}

// Server is the assembled mock backend.
type Server struct {
	Router  *gin.Engine
	Auth    *service.AuthService
	Exports *service.ExportService
	Bonuses *service.BonusService
	Keys    *rsacrypt.KeyPair

	queue        *jobs.Queue
	bonusEnabled bool
	logger       *zap.Logger
}

// Build wires repositories, services, the export queue and the HTTP router.
func Build(cfg *config.Config, logger *zap.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db := repository.NewDB()
	if !opts.SkipSeed {
		if err := repository.Seed(db, repository.SeedOptions{PasswordCost: opts.PasswordCost}); err != nil {
			return nil, fmt.Errorf("seed fixtures: %w", err)
		}
	}

	students := repository.NewStudentRepository(db)
	certificates := repository.NewCertificateRepository(db)
	departments := repository.NewDepartmentRepository(db)
	types := repository.NewCertificateTypeRepository(db)
	admins := repository.NewAdminRepository(db)
	scoreLogs := repository.NewScoreLogRepository(db)
	comments := repository.NewCommentRepository(db)
	exportTasks := repository.NewExportTaskRepository(db)

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if opts.Redis != nil && cfg.Dashboard.CacheEnabled {
		cacheRepo = repository.NewCacheRepository(opts.Redis, cachePrefix, logger)
	}
	cache := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logger, cfg.Dashboard.CacheEnabled)

	keys, generated, err := rsacrypt.Resolve(cfg.RSA.PrivateKey, cfg.RSA.PrivateKeyFile, cfg.RSA.Bits)
	if err != nil {
		return nil, fmt.Errorf("load rsa key: %w", err)
	}
	if generated {
		logger.Warn("no RSA key configured, generated an ephemeral one", zap.Int("bits", cfg.RSA.Bits))
	}

	auth := service.NewAuthService(admins, students, keys, metrics, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})

	uploads, err := storage.NewLocalStorage(cfg.Upload.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("upload storage: %w", err)
	}
	archives, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
	images := service.NewImageService(uploads, signer, service.ImageConfig{
		MaxFileSizeBytes: cfg.Upload.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Upload.AllowedMIMEs,
	}, logger)

	certificateSvc := service.NewCertificateService(service.CertificateServiceParams{
		Certificates: certificates,
		Students:     students,
		Departments:  departments,
		Types:        types,
		Images:       images,
		Metrics:      metrics,
		Cache:        cache,
		Logger:       logger,
	})
	studentSvc := service.NewStudentService(service.StudentServiceParams{
		Students:     students,
		ScoreLogs:    scoreLogs,
		Comments:     comments,
		Departments:  departments,
		Certificates: certificateSvc,
		Cache:        cache,
		Logger:       logger,
		Config:       service.StudentServiceConfig{PasswordCost: opts.PasswordCost},
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Students:     students,
		Certificates: certificates,
		Departments:  departments,
		Cache:        cache,
		Logger:       logger,
	})
	departmentSvc := service.NewDepartmentService(departments, types, cache, logger)
	typeSvc := service.NewCertificateTypeService(types, departments, logger)
	adminSvc := service.NewAdminService(admins, departments, auth, logger, service.AdminServiceConfig{PasswordCost: opts.PasswordCost})
	portalSvc := service.NewPortalService(service.PortalServiceParams{
		Students:     students,
		ScoreLogs:    scoreLogs,
		Comments:     comments,
		Certificates: certificates,
		Departments:  departments,
		Logger:       logger,
	})

	bonusSvc := service.NewBonusService(service.BonusServiceParams{
		Students:    students,
		ScoreLogs:   scoreLogs,
		Departments: departments,
		Metrics:     metrics,
		Logger:      logger,
	})

	exportCfg := service.ExportConfig{
		ResultTTL:       cfg.Export.ResultTTL,
		CleanupInterval: cfg.Export.CleanupInterval,
		StepDelay:       cfg.Export.StepDelay,
	}
	hub := service.NewExportHub()
	worker := service.NewExportWorker(service.ExportWorkerParams{
		Tasks:        exportTasks,
		Students:     students,
		Departments:  departments,
		Certificates: certificates,
		ScoreLogs:    scoreLogs,
		Storage:      archives,
		Hub:          hub,
		PDF:          export.NewPDFExporter(cfg.Export.PDFFont),
		Metrics:      metrics,
		Logger:       logger,
		Config:       exportCfg,
	})
	queue := jobs.NewQueue("exports", worker.Handle, jobs.Config{
		Workers: cfg.Export.WorkerConcurrency,
		Retries: cfg.Export.WorkerRetries,
		Backoff: time.Second,
		GiveUp:  worker.Fail,
		Logger:  logger,
	})
	metrics.WatchQueue("exports", queue.Stats)
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Tasks:       exportTasks,
		Departments: departments,
		Storage:     archives,
		Queue:       queue,
		Hub:         hub,
		Logger:      logger,
		Config:      exportCfg,
	})

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(auth),
		Certificates: handler.NewCertificateHandler(certificateSvc, images),
		Students:     handler.NewStudentHandler(studentSvc),
		Departments:  handler.NewDepartmentHandler(departmentSvc, typeSvc),
		Admins:       handler.NewAdminHandler(adminSvc),
		Dashboard:    handler.NewDashboardHandler(dashboardSvc),
		Portal:       handler.NewPortalHandler(portalSvc),
		Exports:      handler.NewExportHandler(exportSvc, logger, cfg.CORS.AllowedOrigins),
		Files:        handler.NewFileHandler(images),
		Metrics:      handler.NewMetricsHandler(metrics, healthChecks(opts)...),
	}
	router := handler.NewRouter(auth, handlers, handler.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
		Metrics:        metrics,
		EnableMetrics:  cfg.Metrics.Enabled,
	})

	return &Server{
		Router:  router,
		Auth:    auth,
		Exports: exportSvc,
		Bonuses: bonusSvc,
		Keys:    keys,

		queue:        queue,
		bonusEnabled: cfg.Bonus.Enabled,
		logger:       logger,
	}, nil
}

// Start runs the export workers, the archive cleanup loop and, when
// enabled, the attendance bonus schedule until ctx ends.
func (s *Server) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.Exports.StartCleanup(ctx)
	if s.bonusEnabled {
		s.Bonuses.Start(ctx, service.WeeklyBonus, service.MonthlyBonus)
	}
}

// Stop drains the export queue. Exports still queued when ctx ends are
// marked failed.
func (s *Server) Stop(ctx context.Context) error {
	err := s.queue.Stop(ctx)
	stats := s.queue.Stats()
	s.logger.Info("export queue stopped",
		zap.Int64("accepted", stats.Accepted),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("failed", stats.Failed),
		zap.Int64("retried", stats.Retried),
	)
	return err
}

func healthChecks(opts Options) []handler.HealthCheck {
	if opts.Redis == nil {
		return nil
	}
	return []handler.HealthCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return opts.Redis.Ping(ctx).Err() },
	}}
}

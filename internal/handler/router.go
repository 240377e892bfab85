package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/middleware"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/logger"
	corsmiddleware "github.com/noah-isme/contrail/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/contrail/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler of the mock backend.
type Handlers struct {
	Auth         *AuthHandler
	Certificates *CertificateHandler
	Students     *StudentHandler
	Departments  *DepartmentHandler
	Admins       *AdminHandler
	Dashboard    *DashboardHandler
	Portal       *PortalHandler
	Exports      *ExportHandler
	Files        *FileHandler
	Metrics      *MetricsHandler
}

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	EnableMetrics  bool
}

// NewRouter registers the admin API under /api/admin, the student API under
// /api, signed files under /files and the health and metrics endpoints.
func NewRouter(auth *service.AuthService, h Handlers, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics, "/metrics"))

	r.GET("/health", h.Metrics.Health)
	if cfg.EnableMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	r.GET(service.FilesRoute+"*token", h.Files.Serve)

	registerAdminRoutes(r.Group("/api/admin"), auth, h, log)
	registerStudentRoutes(r.Group("/api"), auth, h)
	return r
}

func registerAdminRoutes(api *gin.RouterGroup, auth *service.AuthService, h Handlers, log *zap.Logger) {
	api.GET("/auth/public-key", h.Auth.PublicKey)
	api.POST("/auth/login", h.Auth.AdminLogin)
	api.GET("/system/init-status", h.Admins.InitStatus)
	api.POST("/system/initialize", middleware.Audit(log, "system.initialize"), h.Admins.Initialize)

	secured := api.Group("", middleware.AdminJWT(auth))
	secured.GET("/auth/info", h.Auth.AdminInfo)
	secured.GET("/dashboard/stats", h.Dashboard.Stats)

	secured.GET("/certificates", h.Certificates.List)
	secured.GET("/certificates/:id", h.Certificates.Get)
	secured.POST("/certificates/:id/audit", middleware.Audit(log, "certificate.audit"), h.Certificates.Audit)

	secured.GET("/students", h.Students.List)
	secured.POST("/students/import", middleware.Audit(log, "student.import"), h.Students.Import)
	secured.GET("/students/:id", h.Students.Detail)
	secured.PUT("/students/:id/status", middleware.Audit(log, "student.status"), h.Students.UpdateStatus)
	secured.PUT("/students/:id/archive", middleware.Audit(log, "student.archive"), h.Students.UpdateArchive)
	secured.GET("/students/:id/score-logs", h.Students.ScoreLogs)
	secured.POST("/students/:id/comment", middleware.Audit(log, "student.comment"), h.Students.AddComment)
	secured.POST("/score/adjust", middleware.Audit(log, "score.adjust"), h.Students.AdjustScore)

	secured.GET("/departments", h.Departments.List)
	secured.GET("/departments/:id", h.Departments.Get)
	secured.GET("/certificate-types", h.Departments.ListTypes)

	secured.POST("/department/:id/export/start", middleware.Audit(log, "export.start"), h.Exports.Start)
	secured.GET("/export/status/:id", h.Exports.Status)
	secured.GET("/export/download/:id", h.Exports.Download)
	secured.GET("/export/ws/:id", h.Exports.Watch)

	super := secured.Group("", middleware.RequireSuper())
	super.POST("/departments", middleware.Audit(log, "department.create"), h.Departments.Create)
	super.PUT("/departments/:id", middleware.Audit(log, "department.update"), h.Departments.Update)
	super.DELETE("/departments/:id", middleware.Audit(log, "department.delete"), h.Departments.Delete)
	super.POST("/department/:id/bind-certs", middleware.Audit(log, "department.bind"), h.Departments.BindCertificateTypes)
	super.POST("/certificate-types", middleware.Audit(log, "certificate_type.create"), h.Departments.CreateType)
	super.DELETE("/certificate-types/:id", middleware.Audit(log, "certificate_type.delete"), h.Departments.DeleteType)

	super.GET("/admins", h.Admins.List)
	super.GET("/admins/:id", h.Admins.Get)
	super.POST("/admins", middleware.Audit(log, "admin.create"), h.Admins.Create)
	super.PUT("/admins/:id", middleware.Audit(log, "admin.update"), h.Admins.Update)
	super.DELETE("/admins/:id", middleware.Audit(log, "admin.delete"), h.Admins.Delete)
}

func registerStudentRoutes(api *gin.RouterGroup, auth *service.AuthService, h Handlers) {
	api.GET("/auth/public-key", h.Auth.PublicKey)
	api.POST("/auth/login", h.Auth.StudentLogin)

	secured := api.Group("", middleware.StudentJWT(auth))
	secured.GET("/auth/profile", h.Auth.StudentProfile)

	secured.GET("/student/dashboard", h.Portal.Dashboard)
	secured.GET("/student/score", h.Portal.Score)
	secured.GET("/student/score/history", h.Portal.History)
	secured.GET("/student/profile", h.Portal.Profile)

	secured.GET("/certificate/types", h.Certificates.Types)
	secured.GET("/certificate/list", h.Certificates.Mine)
	secured.GET("/certificate/:id", h.Certificates.Detail)
	secured.POST("/certificate/image", h.Certificates.UploadImage)
	secured.POST("/certificate/upload", h.Certificates.Submit)
}

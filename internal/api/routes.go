package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvbuilder/internal/analysis"
	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/coverletter"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/extract"
	"cvbuilder/internal/ratelimit"
)

// Dependencies 汇总注册路由所需的外部依赖，由 cmd/api 组装。
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	Queue       TaskEnqueuer
	Storage     ObjectStorage
	AuthService *auth.AuthService
	CVs         *cv.Service
	Analyses    *analysis.Service
	Letters     *coverletter.Service
	Extractor   *extract.Extractor
	Logger      *slog.Logger
}

// RegisterRoutes 注册 /v1 下的全部 API 路由。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config
	logger := deps.Logger

	authHandler := NewAuthHandler(deps.DB, deps.AuthService, deps.Redis, cfg.Auth, cfg.API.CookieDomain, logger)
	wsHandler := NewWsHandler(deps.Redis, deps.AuthService, logger, cfg.API.Origins())
	cvHandler := NewCVHandler(deps.DB, deps.CVs, deps.Letters, deps.Storage, deps.Queue, logger)
	uploadHandler := NewUploadHandler(
		deps.DB,
		deps.Storage,
		extract.NewValidator(cfg.Upload.MaxBytes),
		extract.NewScanner(cfg.Upload.ClamdAddr),
		deps.Extractor,
		deps.Analyses,
		&ratelimit.Daily{Counter: deps.Redis, Scope: "quota:uploads", Limit: cfg.Upload.MaxPerDay},
		logger,
	)
	analysisHandler := NewAnalysisHandler(deps.DB, deps.Analyses, logger)
	letterHandler := NewCoverLetterHandler(deps.Letters, logger)
	templateHandler := NewTemplateHandler(deps.DB, deps.Storage, deps.Queue, logger)

	authMiddleware := middleware.AuthMiddleware(deps.AuthService)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	v1 := router.Group("/v1")
	v1.GET("/ws", wsHandler.HandleConnection)

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		// 改密只要求登录，不经过改密拦截。
		authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
	}

	cvGroup := v1.Group("/cvs", authMiddleware, passwordGate)
	{
		cvGroup.GET("", cvHandler.ListCVs)
		cvGroup.POST("", cvHandler.CreateCV)
		cvGroup.GET("/:id", cvHandler.GetCV)
		cvGroup.PUT("/:id", cvHandler.UpdateCV)
		cvGroup.PATCH("/:id", cvHandler.PatchCV)
		cvGroup.DELETE("/:id", cvHandler.DeleteCV)
		cvGroup.POST("/:id/duplicate", cvHandler.DuplicateCV)
		cvGroup.GET("/:id/preview", cvHandler.PreviewCV)
		cvGroup.GET("/:id/completion-status", cvHandler.CompletionStatus)
		cvGroup.POST("/:id/validate", cvHandler.ValidateCV)
		cvGroup.POST("/:id/generate-cover-letter", cvHandler.GenerateCoverLetter)
		cvGroup.POST("/:id/export", cvHandler.ExportCV)
		cvGroup.GET("/:id/download-link", cvHandler.DownloadLink)

		registerSections(cvGroup, deps.DB, deps.CVs, logger)
	}

	uploadGroup := v1.Group("/uploads", authMiddleware, passwordGate)
	{
		uploadGroup.GET("", uploadHandler.ListUploads)
		uploadGroup.POST("", uploadHandler.CreateUpload)
		uploadGroup.GET("/:id", uploadHandler.GetUpload)
		uploadGroup.PATCH("/:id", uploadHandler.PatchUpload)
		uploadGroup.DELETE("/:id", uploadHandler.DeleteUpload)
		uploadGroup.POST("/:id/analyze", uploadHandler.AnalyzeUpload)
		uploadGroup.GET("/:id/download-link", uploadHandler.DownloadLink)
	}

	letterGroup := v1.Group("/cover-letters", authMiddleware, passwordGate)
	{
		letterGroup.GET("", letterHandler.ListCoverLetters)
		letterGroup.POST("", letterHandler.CreateCoverLetter)
		letterGroup.GET("/:id", letterHandler.GetCoverLetter)
		letterGroup.PUT("/:id", letterHandler.UpdateCoverLetter)
		letterGroup.PATCH("/:id", letterHandler.UpdateCoverLetter)
		letterGroup.DELETE("/:id", letterHandler.DeleteCoverLetter)
		letterGroup.POST("/:id/regenerate", letterHandler.RegenerateCoverLetter)
		letterGroup.GET("/:id/preview", letterHandler.PreviewCoverLetter)
	}

	analysisGroup := v1.Group("/analyses", authMiddleware, passwordGate)
	{
		analysisGroup.GET("", analysisHandler.ListAnalyses)
		analysisGroup.GET("/export", analysisHandler.ExportAnalyses)
		analysisGroup.GET("/:id", analysisHandler.GetAnalysis)
		analysisGroup.DELETE("/:id", analysisHandler.DeleteAnalysis)
	}

	templateGroup := v1.Group("/templates", authMiddleware, passwordGate)
	{
		templateGroup.GET("", templateHandler.ListTemplates)
		templateGroup.POST("", templateHandler.CreateTemplate)
		templateGroup.GET("/:id", templateHandler.GetTemplate)
		templateGroup.PUT("/:id", templateHandler.UpdateTemplate)
		templateGroup.PATCH("/:id", templateHandler.UpdateTemplate)
		templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
		templateGroup.GET("/:id/preview", templateHandler.PreviewTemplate)
		templateGroup.POST("/:id/preview-image", templateHandler.GeneratePreviewImage)
	}
}

// registerSections 为七类子表注册 /cvs/:id/<section> 路由。
func registerSections(group *gin.RouterGroup, db *gorm.DB, cvs *cv.Service, logger *slog.Logger) {
	NewSectionHandler("experience", cvs, cv.NewSections[database.Experience](db), logger).Register(group, "experiences")
	NewSectionHandler("education", cvs, cv.NewSections[database.Education](db), logger).Register(group, "educations")
	NewSectionHandler("skill", cvs, cv.NewSections[database.Skill](db), logger).Register(group, "skills")
	NewSectionHandler("project", cvs, cv.NewSections[database.Project](db), logger).Register(group, "projects")
	NewSectionHandler("certification", cvs, cv.NewSections[database.Certification](db), logger).Register(group, "certifications")
	NewSectionHandler("language", cvs, cv.NewSections[database.Language](db), logger).Register(group, "languages")
	NewSectionHandler("award", cvs, cv.NewSections[database.Award](db), logger).Register(group, "awards")
}

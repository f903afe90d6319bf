package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eduexamportal/mailroom/internal/api/handlers"
	"github.com/eduexamportal/mailroom/internal/api/middleware"
	"github.com/eduexamportal/mailroom/internal/auth"
	"github.com/eduexamportal/mailroom/internal/config"
	"github.com/eduexamportal/mailroom/internal/metrics"
	"github.com/eduexamportal/mailroom/internal/queue"
	"github.com/eduexamportal/mailroom/internal/rbac"
	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *gorm.DB, q queue.Queue) *gin.Engine {
	// Set Gin mode
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(metricsMiddleware())
	router.Use(corsMiddleware())

	authenticator := auth.NewBasicAuthenticator(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	loginLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.LoginRPS), cfg.RateLimit.LoginBurst)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck(db))
		public.POST("/auth/login", loginLimiter.Middleware(), handlers.Login(authenticator, db))
	}

	// Initialize handlers
	templateSvc := service.NewTemplateService(db)
	templateHandler := handlers.NewTemplateHandler(templateSvc, render.New(cfg.Mail.BrandName))
	userHandler := handlers.NewUserHandler(service.NewUserService(db))
	mailHandler := handlers.NewMailHandler(service.NewMailService(db, q))
	adminHandler := handlers.NewAdminHandler(db)

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(authenticator.Middleware())
	{
		protected.GET("/auth/me", middleware.RequirePermission(rbac.ObjProfile, rbac.ActRead), handlers.GetCurrentUser(authenticator))
		protected.GET("/me/active-templates", middleware.RequirePermission(rbac.ObjProfile, rbac.ActRead), templateHandler.GetActiveTemplates)

		// Template endpoints
		templates := protected.Group("/email-templates")
		{
			read := middleware.RequirePermission(rbac.ObjTemplates, rbac.ActRead)
			write := middleware.RequirePermission(rbac.ObjTemplates, rbac.ActWrite)

			templates.GET("", read, templateHandler.ListTemplates)
			templates.GET("/:id", read, templateHandler.GetTemplate)
			templates.POST("/:id/preview", read, templateHandler.PreviewTemplate)
			templates.POST("", write, templateHandler.CreateTemplate)
			templates.PUT("/:id", write, templateHandler.UpdateTemplate)
			templates.DELETE("/:id", write, templateHandler.DeleteTemplate)
			templates.POST("/:id/set-active", write, templateHandler.SetActiveTemplate)
		}

		protected.GET("/users", middleware.RequirePermission(rbac.ObjUsers, rbac.ActRead), userHandler.ListUsers)

		// Mail endpoints
		mail := protected.Group("/mail", middleware.RequirePermission(rbac.ObjMail, rbac.ActSend))
		{
			mail.POST("/send", mailHandler.SendMail)
			mail.GET("/jobs/:id", mailHandler.GetJob)
		}

		// Admin endpoints
		admin := protected.Group("/admin")
		{
			admin.POST("/users", middleware.RequirePermission(rbac.ObjUsers, rbac.ActWrite), adminHandler.CreateUser)
			admin.DELETE("/users/:id", middleware.RequirePermission(rbac.ObjUsers, rbac.ActWrite), adminHandler.DisableUser)
			admin.GET("/audit-logs", middleware.RequirePermission(rbac.ObjAudit, rbac.ActRead), adminHandler.ListAuditLogs)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		)
	}
}

// metricsMiddleware counts and times requests by route pattern.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status()), c.Request.Method).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

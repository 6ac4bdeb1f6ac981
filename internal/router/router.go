package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/handler"
	"github.com/stemsi/examkb/internal/middleware"
	"github.com/stemsi/examkb/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health   *handler.HealthHandler
	Import   *handler.ImportHandler
	Question *handler.QuestionHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// importLimiter may be nil to disable rate limiting of import submissions.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	importLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Questions (Public, Read Only) ──────────────────────────────
	questions := router.Group("/api/v1/questions")
	if cfg.QuestionCacheSeconds > 0 {
		questions.Use(middleware.CacheControl(cfg.QuestionCacheSeconds))
	}
	questions.Use(middleware.Brotli(middleware.DefaultBrotliMinLength))
	{
		questions.GET("", handlers.Question.ListQuestions)
		questions.GET("/:exam_year/:number", handlers.Question.GetQuestion)
		questions.GET("/:exam_year/:number/revisions", handlers.Question.ListRevisions)
	}

	// ─── 2. Imports (Admin JWT) ────────────────────────────────────────
	imports := router.Group("/api/v1/imports")
	imports.Use(middleware.RequireAdminJWT(auth))
	{
		submit := []gin.HandlerFunc{handlers.Import.CreateImport}
		if importLimiter != nil {
			submit = append([]gin.HandlerFunc{importLimiter.Middleware()}, submit...)
		}
		imports.POST("", submit...)
		imports.GET("/:id", handlers.Import.GetImport)
	}

	// ─── 3. WebSocket Group (Admin WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAdminWSAuth(auth))
	{
		ws.GET("/imports/:id/progress", handlers.WS.ImportProgressStream)
	}

	return router
}

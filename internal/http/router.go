package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/negotiator-backend/internal/http/handlers"
	httpMW "github.com/yungbote/negotiator-backend/internal/http/middleware"
	"github.com/yungbote/negotiator-backend/internal/observability"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	AssessmentHandler  *httpH.AssessmentHandler
	ProgressHandler    *httpH.ProgressHandler
	AchievementHandler *httpH.AchievementHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	name := cfg.ServiceName
	if name == "" {
		name = "negotiator"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(name))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log))
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	if cfg.AchievementHandler != nil {
		api.GET("/achievements", cfg.AchievementHandler.Catalog)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		if cfg.AssessmentHandler != nil {
			protected.POST("/assessments", cfg.AssessmentHandler.Submit)
			protected.GET("/assessments/:conversationId", cfg.AssessmentHandler.Get)
			protected.POST("/assessments/:conversationId/retry", cfg.AssessmentHandler.Retry)
			protected.GET("/users/me/assessments", cfg.AssessmentHandler.ListMine)

			admin := protected.Group("/admin")
			if cfg.AuthMiddleware != nil {
				admin.Use(cfg.AuthMiddleware.RequireAdmin())
			}
			admin.GET("/queue", cfg.AssessmentHandler.QueueStats)
		}
		if cfg.ProgressHandler != nil {
			protected.GET("/users/me/progress", cfg.ProgressHandler.GetMine)
			protected.GET("/users/me/history", cfg.ProgressHandler.History)
		}
		if cfg.AchievementHandler != nil {
			protected.GET("/users/me/achievements", cfg.AchievementHandler.ListMine)
		}
	}

	return r
}

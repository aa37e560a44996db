package app

import (
	"context"

	"gorm.io/gorm"

	httpserver "github.com/yungbote/negotiator-backend/internal/http"
	httpH "github.com/yungbote/negotiator-backend/internal/http/handlers"
	httpMW "github.com/yungbote/negotiator-backend/internal/http/middleware"
	"github.com/yungbote/negotiator-backend/internal/observability"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg config.Config, db *gorm.DB, clients Clients, s Services, metrics *observability.Metrics) httpserver.RouterConfig {
	log.Info("Wiring HTTP...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		}
	}

	return httpserver.RouterConfig{
		Log:                log,
		ServiceName:        serviceName,
		CORSOrigins:        cfg.CORSOrigins,
		Metrics:            metrics,
		AuthMiddleware:     httpMW.NewAuthMiddleware(log, cfg.JWTSecret, cfg.AuthDisabled),
		AssessmentHandler:  httpH.NewAssessmentHandler(s.Assessments),
		ProgressHandler:    httpH.NewProgressHandler(s.Progress),
		AchievementHandler: httpH.NewAchievementHandler(s.Achievements),
		HealthHandler:      httpH.NewHealthHandler(checks),
	}
}

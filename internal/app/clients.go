package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/negotiator-backend/internal/archive"
	"github.com/yungbote/negotiator-backend/internal/assessment/external"
	"github.com/yungbote/negotiator-backend/internal/cache"
	"github.com/yungbote/negotiator-backend/internal/clients/gemini"
	"github.com/yungbote/negotiator-backend/internal/clients/openai"
	"github.com/yungbote/negotiator-backend/internal/clients/redis"
	"github.com/yungbote/negotiator-backend/internal/notify"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type Clients struct {
	Redis     *goredis.Client
	Cache     cache.Cache
	Notifier  notify.Publisher
	Archive   archive.Archiver
	Generator external.TextGenerator

	gcs    *archive.GCS
	gemini *gemini.Client
}

// wireClients connects the optional backends. A backend that is configured but
// unreachable is logged and replaced by its no-op.
func wireClients(ctx context.Context, log *logger.Logger, cfg config.Config) (Clients, error) {
	log.Info("Wiring clients...")
	out := Clients{
		Cache:    cache.Nop{},
		Notifier: notify.Nop{},
		Archive:  archive.Nop{},
	}

	rdb, err := redis.NewClient(ctx, log, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable; cache and notifications disabled", "error", err)
	} else if rdb != nil {
		out.Redis = rdb
		out.Cache = cache.NewRedis(rdb, cfg.Redis.ChannelPrefix)
		out.Notifier = notify.NewBus(log, rdb, cfg.Redis.ChannelPrefix)
	}

	gcs, err := archive.NewGCS(ctx, log, cfg.ArchiveBucket)
	if err != nil {
		log.Warn("Transcript archive unavailable", "bucket", cfg.ArchiveBucket, "error", err)
	} else if gcs != nil {
		out.gcs = gcs
		out.Archive = gcs
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Adapter.Provider)) {
	case "openai":
		c, err := openai.NewClient(log, openai.Config{
			APIKey:     cfg.Adapter.OpenAIAPIKey,
			BaseURL:    cfg.Adapter.OpenAIBaseURL,
			Model:      cfg.Adapter.OpenAIModel,
			Timeout:    cfg.Adapter.Timeout,
			MaxRetries: 2,
		})
		if err != nil {
			return out, fmt.Errorf("init openai client: %w", err)
		}
		out.Generator = c
	case "gemini":
		c, err := gemini.NewClient(ctx, log, gemini.Config{
			APIKey: cfg.Adapter.GeminiAPIKey,
			Model:  cfg.Adapter.GeminiModel,
		})
		if err != nil {
			return out, fmt.Errorf("init gemini client: %w", err)
		}
		out.gemini = c
		out.Generator = c
	default:
		log.Info("No external adapter configured; scoring is rule-based only")
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.gemini != nil {
		_ = c.gemini.Close()
	}
	if c.gcs != nil {
		_ = c.gcs.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

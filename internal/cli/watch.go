package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/negotiator-backend/internal/clients/redis"
	"github.com/yungbote/negotiator-backend/internal/notify"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [user-id]",
	Short: "Tail assessment and achievement events from Redis",
	Long: `Print completion, failure and unlock events as they are published. Without a
user id every learner's events are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := uuid.Nil
		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			userID = id
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rdb, err := redis.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			return err
		}
		if rdb == nil {
			return fmt.Errorf("REDIS_ADDR is not set")
		}
		defer rdb.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		bus := notify.NewBus(log, rdb, cfg.Redis.ChannelPrefix)
		if err := bus.Subscribe(ctx, userID, func(ev notify.Event) {
			_ = enc.Encode(ev)
		}); err != nil {
			return err
		}
		<-ctx.Done()
		if err := ctx.Err(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

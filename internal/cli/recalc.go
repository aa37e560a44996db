package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/negotiator-backend/internal/data/db"
	"github.com/yungbote/negotiator-backend/internal/data/repos"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/services"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc <user-id>",
	Short: "Rebuild a learner's progress from their completed assessments",
	Long: `Replay every completed assessment of a learner in session order and rewrite
their progress aggregate and skill history. Running it twice yields the same result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", args[0], err)
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

		pg, err := db.NewPostgresService(log, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		theDB := pg.DB()

		progress := services.NewProgressService(theDB, log,
			repos.NewAssessmentRepo(theDB, log),
			repos.NewSkillHistoryRepo(theDB, log),
			repos.NewUserProgressRepo(theDB, log),
			repos.NewUnlockedAchievementRepo(theDB, log),
			nil, 0,
		)
		p, err := progress.Recalculate(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("recalculating progress: %w", err)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "sessions:  %d (%d deals)\n", p.CompletedNegotiations, p.DealsReached)
		fmt.Fprintf(w, "overall:   %.1f (best %d)\n", p.Overall.RollingAverage, p.Overall.Best)
		fmt.Fprintf(w, "streak:    %d current, %d longest\n", p.CurrentStreak, p.LongestStreak)
		fmt.Fprintf(w, "points:    %d from %d achievements\n", p.TotalPoints, p.AchievementsUnlocked)
		return nil
	},
}

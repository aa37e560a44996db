package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/assessment/external"
	"github.com/yungbote/negotiator-backend/internal/assessment/lexicon"
	"github.com/yungbote/negotiator-backend/internal/assessment/scoring"
	"github.com/yungbote/negotiator-backend/internal/assessment/transcript"
	"github.com/yungbote/negotiator-backend/internal/data/repos"
	"github.com/yungbote/negotiator-backend/internal/data/repos/testutil"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	"github.com/yungbote/negotiator-backend/internal/notify"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

const salaryTranscript = "User: Based on market data for this role, I was expecting a base salary of $95,000.\n" +
	"Manager: That's above our range.\n" +
	"User: What matters most to you in filling this position? Could we look at equity or a signing bonus instead?\n" +
	"Manager: Equity might work.\n" +
	"User: I understand your budget constraints, and I appreciate you working with me on this."

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (d *recordingDispatcher) Name() string { return "recording" }

func (d *recordingDispatcher) Enqueue(_ context.Context, t queue.Task) (queue.Receipt, error) {
	if d.err != nil {
		return queue.Receipt{}, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, t)
	return queue.Receipt{JobID: uuid.NewString(), Driver: d.Name()}, nil
}

func (d *recordingDispatcher) last(t *testing.T) queue.Task {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tasks) == 0 {
		t.Fatal("no task was enqueued")
	}
	return d.tasks[len(d.tasks)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Publish(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) count(typ notify.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

type stubGen struct {
	out string
	err error
}

func (g stubGen) Name() string { return "stub" }

func (g stubGen) GenerateText(context.Context, string, string) (string, error) {
	return g.out, g.err
}

type stack struct {
	db           *gorm.DB
	log          *logger.Logger
	assessRepo   repos.AssessmentRepo
	jobRepo      repos.JobRunRepo
	progress     ProgressService
	achievements AchievementService
	orch         *Orchestrator
	notifier     *recordingNotifier
}

type stackOptions struct {
	gen external.TextGenerator
}

func newStack(t *testing.T, opts stackOptions) *stack {
	t.Helper()
	db := testutil.DB(t)
	log := logger.Nop()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon: %v", err)
	}
	s := &stack{
		db:         db,
		log:        log,
		assessRepo: repos.NewAssessmentRepo(db, log),
		jobRepo:    repos.NewJobRunRepo(db, log),
		notifier:   &recordingNotifier{},
	}
	unlocked := repos.NewUnlockedAchievementRepo(db, log)
	progressRepo := repos.NewUserProgressRepo(db, log)
	s.progress = NewProgressService(db, log, s.assessRepo, repos.NewSkillHistoryRepo(db, log), progressRepo, unlocked, nil, 0)
	s.achievements = NewAchievementService(log, repos.NewAchievementDefinitionRepo(db, log), unlocked, s.assessRepo, progressRepo, s.progress)
	if err := s.achievements.SeedDefinitions(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.orch = NewOrchestrator(OrchestratorDeps{
		Log:          log,
		Parser:       transcript.Parser{},
		Scorer:       scoring.New(lex),
		Adapter:      external.New(log, opts.gen, external.Options{}),
		Assessments:  s.assessRepo,
		Progress:     s.progress,
		Achievements: s.achievements,
		Notifier:     s.notifier,
	})
	return s
}

func (s *stack) service(d queue.Dispatcher) AssessmentService {
	return NewAssessmentService(s.log, s.assessRepo, s.jobRepo, d, nil, AssessmentServiceOptions{RetryPriority: 2})
}

func salarySubmission() assessment.Submission {
	return assessment.Submission{
		Transcript:         salaryTranscript,
		Scenario:           assessment.Scenario{Title: "Salary negotiation", KeyIssues: []string{"base", "equity"}},
		DealReached:        true,
		DurationSeconds:    600,
		ConversationStatus: "completed",
	}
}

func submitInput(userID uuid.UUID, sub assessment.Submission) SubmitInput {
	return SubmitInput{
		ConversationID: uuid.New(),
		UserID:         userID,
		ScenarioID:     "salary-negotiation",
		Submission:     sub,
	}
}

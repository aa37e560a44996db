package jobrun

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
)

type fakeActivities struct {
	runs     atomic.Int32
	dead     atomic.Int32
	runError func(n int32) error
}

func newEnv(t *testing.T, fa *fakeActivities) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(func(ctx context.Context, jobID string) (RunResult, error) {
		n := fa.runs.Add(1)
		if fa.runError != nil {
			if err := fa.runError(n); err != nil {
				return RunResult{}, err
			}
		}
		return RunResult{JobID: jobID, Status: "succeeded", Attempt: int(n)}, nil
	}, activity.RegisterOptions{Name: ActivityRun})
	env.RegisterActivityWithOptions(func(ctx context.Context, jobID string, cause string) error {
		fa.dead.Add(1)
		return nil
	}, activity.RegisterOptions{Name: ActivityDeadLetter})
	return env
}

func TestWorkflowSucceeds(t *testing.T) {
	fa := &fakeActivities{}
	env := newEnv(t, fa)
	env.ExecuteWorkflow(WorkflowName, Input{JobID: uuid.NewString(), MaxAttempts: 3, BackoffBase: time.Second, BackoffMax: 4 * time.Second})
	if !env.IsWorkflowCompleted() || env.GetWorkflowError() != nil {
		t.Fatalf("workflow err=%v", env.GetWorkflowError())
	}
	if fa.runs.Load() != 1 || fa.dead.Load() != 0 {
		t.Fatalf("runs=%d dead=%d", fa.runs.Load(), fa.dead.Load())
	}
}

func TestWorkflowRetriesThenSucceeds(t *testing.T) {
	fa := &fakeActivities{runError: func(n int32) error {
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	}}
	env := newEnv(t, fa)
	env.ExecuteWorkflow(WorkflowName, Input{JobID: uuid.NewString(), MaxAttempts: 3, BackoffBase: time.Second, BackoffMax: 4 * time.Second})
	if env.GetWorkflowError() != nil {
		t.Fatalf("workflow err=%v", env.GetWorkflowError())
	}
	if fa.runs.Load() != 3 || fa.dead.Load() != 0 {
		t.Fatalf("runs=%d dead=%d", fa.runs.Load(), fa.dead.Load())
	}
}

func TestWorkflowPermanentFailureDeadLetters(t *testing.T) {
	fa := &fakeActivities{runError: func(int32) error {
		return temporal.NewNonRetryableApplicationError("ineligible", ErrTypePermanent, nil)
	}}
	env := newEnv(t, fa)
	env.ExecuteWorkflow(WorkflowName, Input{JobID: uuid.NewString(), MaxAttempts: 5, BackoffBase: time.Second, BackoffMax: 4 * time.Second})
	if env.GetWorkflowError() == nil {
		t.Fatalf("expected workflow failure")
	}
	if fa.runs.Load() != 1 || fa.dead.Load() != 1 {
		t.Fatalf("runs=%d dead=%d, want 1/1", fa.runs.Load(), fa.dead.Load())
	}
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(Input{MaxAttempts: 4, BackoffBase: 2 * time.Second, BackoffMax: time.Second})
	if p.MaximumAttempts != 4 || p.InitialInterval != 2*time.Second || p.MaximumInterval != 2*time.Second {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if len(p.NonRetryableErrorTypes) != 1 || p.NonRetryableErrorTypes[0] != ErrTypePermanent {
		t.Fatalf("permanent errors must not be retried: %+v", p.NonRetryableErrorTypes)
	}
}

func TestWorkflowIDIsStablePerAttempt(t *testing.T) {
	id := uuid.New()
	a := queue.Task{AssessmentID: id, Attempt: 1}
	b := queue.Task{AssessmentID: id, Attempt: 2}
	if WorkflowID(a) != WorkflowID(a) || JobID(a) != JobID(a) {
		t.Fatalf("ids must be deterministic")
	}
	if WorkflowID(a) == WorkflowID(b) || JobID(a) == JobID(b) {
		t.Fatalf("attempts must not share ids")
	}
}

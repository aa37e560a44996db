package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	"github.com/yungbote/negotiator-backend/internal/data/repos/testutil"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type funcHandler struct {
	typ string
	run func(*Context) error
}

func (h funcHandler) Type() string         { return h.typ }
func (h funcHandler) Run(jc *Context) error { return h.run(jc) }

type deadLetters struct {
	mu   sync.Mutex
	jobs []uuid.UUID
}

func (d *deadLetters) record(_ context.Context, job *types.JobRun, _ error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job.ID)
}

func (d *deadLetters) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func setup(t *testing.T, handlers ...Handler) (repos.JobRunRepo, *Executor, *deadLetters) {
	t.Helper()
	db := testutil.DB(t)
	log := logger.Nop()
	repo := repos.NewJobRunRepo(db, log)
	reg := NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	dl := &deadLetters{}
	return repo, NewExecutor(log, repo, reg, time.Millisecond, 10*time.Millisecond, dl.record), dl
}

func claim(t *testing.T, repo repos.JobRunRepo, jobType string, maxAttempts int, payload string) *types.JobRun {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	entity := uuid.New()
	job := &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     jobType,
		EntityType:  "assessment",
		EntityID:    &entity,
		Status:      domjobs.StatusQueued,
		Stage:       "queued",
		MaxAttempts: maxAttempts,
		Payload:     datatypes.JSON([]byte(payload)),
	}
	if _, err := repo.Create(dbc, []*types.JobRun{job}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.ClaimNextRunnable(dbc, []string{jobType}, time.Minute)
	if err != nil || got == nil || got.ID != job.ID {
		t.Fatalf("claim: %+v err=%v", got, err)
	}
	return got
}

func reload(t *testing.T, repo repos.JobRunRepo, id uuid.UUID) *types.JobRun {
	t.Helper()
	job, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil || job == nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return job
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	h := funcHandler{typ: "b", run: func(*Context) error { return nil }}
	if err := reg.Register(h); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(h); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := reg.Register(funcHandler{run: h.run}); err == nil {
		t.Fatal("expected empty type to fail")
	}
	_ = reg.Register(funcHandler{typ: "a", run: h.run})
	if got := reg.Types(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("types = %v", got)
	}
}

func TestExecuteSuccessStoresResult(t *testing.T) {
	var seenTrace string
	repo, exec, _ := setup(t, funcHandler{typ: "echo", run: func(jc *Context) error {
		id, ok := jc.PayloadUUID("assessment_id")
		if !ok {
			return errors.New("missing assessment_id")
		}
		if td := ctxutil.GetTraceData(jc.Ctx); td != nil {
			seenTrace = td.TraceID
		}
		jc.Progress("working", 50)
		jc.SetResult(map[string]string{"assessment_id": id.String()})
		return nil
	}})
	id := uuid.New()
	job := claim(t, repo, "echo", 3, `{"assessment_id":"`+id.String()+`","trace_id":"trace-1"}`)

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := reload(t, repo, job.ID)
	if got.Status != domjobs.StatusSucceeded || got.Progress != 100 {
		t.Fatalf("status = %s progress = %d", got.Status, got.Progress)
	}
	if want := `{"assessment_id":"` + id.String() + `"}`; string(got.Result) != want {
		t.Fatalf("result = %s, want %s", got.Result, want)
	}
	if seenTrace != "trace-1" {
		t.Fatalf("trace id not propagated: %q", seenTrace)
	}
}

func TestExecuteFailureRequeuesThenDeadLetters(t *testing.T) {
	boom := errors.New("adapter timeout")
	repo, exec, dl := setup(t, funcHandler{typ: "flaky", run: func(*Context) error { return boom }})
	job := claim(t, repo, "flaky", 2, `{}`)

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := reload(t, repo, job.ID)
	if got.Status != domjobs.StatusQueued || got.Stage != "retry_scheduled" || got.RunAfter == nil {
		t.Fatalf("after first failure: %+v", got)
	}
	if dl.count() != 0 {
		t.Fatal("dead-lettered too early")
	}

	got.Attempts = 2
	if err := exec.Execute(context.Background(), got); err != nil {
		t.Fatalf("execute: %v", err)
	}
	final := reload(t, repo, job.ID)
	if final.Status != domjobs.StatusDead || final.Error != boom.Error() {
		t.Fatalf("after last attempt: %s %q", final.Status, final.Error)
	}
	if dl.count() != 1 {
		t.Fatalf("dead letters = %d", dl.count())
	}
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	repo, exec, dl := setup(t, funcHandler{typ: "bad", run: func(*Context) error {
		return Permanent(errors.New("undecodable payload"))
	}})
	job := claim(t, repo, "bad", 5, `{}`)
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if got := reload(t, repo, job.ID); got.Status != domjobs.StatusDead {
		t.Fatalf("status = %s", got.Status)
	}
	if dl.count() != 1 {
		t.Fatalf("dead letters = %d", dl.count())
	}
}

func TestRunRecoversPanicsAndMissingHandlers(t *testing.T) {
	_, exec, _ := setup(t, funcHandler{typ: "panics", run: func(*Context) error { panic("nil map") }})

	_, err := exec.Run(context.Background(), &types.JobRun{ID: uuid.New(), JobType: "panics"})
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PanicError", err)
	}

	_, err = exec.Run(context.Background(), &types.JobRun{ID: uuid.New(), JobType: "unknown"})
	var me *MissingHandlerError
	if !errors.As(err, &me) || !IsPermanent(err) {
		t.Fatalf("err = %v, want permanent MissingHandlerError", err)
	}
}

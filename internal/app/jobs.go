package app

import (
	"context"
	"errors"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/negotiator-backend/internal/jobs/pipeline/assessment_process"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	jobrt "github.com/yungbote/negotiator-backend/internal/jobs/runtime"
	"github.com/yungbote/negotiator-backend/internal/jobs/worker"
	"github.com/yungbote/negotiator-backend/internal/observability"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/services"
	"github.com/yungbote/negotiator-backend/internal/temporalx"
	"github.com/yungbote/negotiator-backend/internal/temporalx/jobrun"
	"github.com/yungbote/negotiator-backend/internal/temporalx/temporalworker"
)

type Jobs struct {
	Driver     config.QueueDriver
	Dispatcher queue.Dispatcher
	Executor   *jobrt.Executor
	Worker     *worker.Worker
	Temporal   *temporalworker.Runner

	temporalClient temporalsdkclient.Client
}

// inlineProcess adapts the orchestrator to the inline driver. Losing a completion race
// means another attempt already finished the work.
func inlineProcess(orch *services.Orchestrator) queue.ProcessFunc {
	return func(ctx context.Context, t queue.Task) error {
		_, err := orch.Process(ctx, t)
		if errors.Is(err, apperr.ErrStaleCompletion) {
			return nil
		}
		return err
	}
}

func wireJobs(ctx context.Context, log *logger.Logger, cfg config.Config, r Repos, orch *services.Orchestrator, metrics *observability.Metrics) (Jobs, error) {
	log.Info("Wiring jobs...", "driver", cfg.Queue.Driver)

	registry := jobrt.NewRegistry()
	if err := registry.Register(assessment_process.New(log, orch, metrics)); err != nil {
		return Jobs{}, fmt.Errorf("register assessment pipeline: %w", err)
	}
	exec := jobrt.NewExecutor(log, r.JobRun, registry, cfg.Queue.BackoffBase, cfg.Queue.BackoffMax, orch.MarkDead)
	inline := queue.NewInlineDispatcher(inlineProcess(orch))

	out := Jobs{Driver: cfg.Queue.Driver, Executor: exec}
	var primary queue.Dispatcher

	switch cfg.Queue.Driver {
	case config.QueueDriverTemporal:
		tcfg := temporalx.LoadConfig(cfg.Temporal)
		tc, err := temporalx.NewClient(ctx, log, tcfg)
		if err != nil || tc == nil {
			log.Warn("Temporal unavailable; falling back to the database queue", "address", tcfg.Address, "error", err)
			out.Driver = config.QueueDriverDB
			primary = queue.NewDBDispatcher(r.JobRun, cfg.Queue.MaxAttempts)
			out.Worker = newDBWorker(log, cfg, r, exec)
			break
		}
		runner, err := temporalworker.NewRunner(log, tcfg, tc, r.JobRun, exec, cfg.Queue.Concurrency)
		if err != nil {
			tc.Close()
			return Jobs{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.temporalClient = tc
		out.Temporal = runner
		primary = jobrun.NewDispatcher(log, tc, r.JobRun, jobrun.DispatcherOptions{
			TaskQueue:   tcfg.TaskQueue,
			MaxAttempts: cfg.Queue.MaxAttempts,
			BackoffBase: cfg.Queue.BackoffBase,
			BackoffMax:  cfg.Queue.BackoffMax,
		})
	case config.QueueDriverInline:
	default:
		primary = queue.NewDBDispatcher(r.JobRun, cfg.Queue.MaxAttempts)
		out.Worker = newDBWorker(log, cfg, r, exec)
	}

	out.Dispatcher = queue.NewFallback(log, primary, inline)
	return out, nil
}

func newDBWorker(log *logger.Logger, cfg config.Config, r Repos, exec *jobrt.Executor) *worker.Worker {
	return worker.NewWorker(log, r.JobRun, exec, worker.Options{
		Concurrency:  cfg.Queue.Concurrency,
		PollInterval: cfg.Queue.PollInterval,
		StaleAfter:   cfg.Queue.StaleAfter,
	})
}

func (j *Jobs) Start(ctx context.Context, log *logger.Logger) {
	if j.Worker != nil {
		j.Worker.Start(ctx)
	}
	if j.Temporal != nil {
		go func() {
			if err := j.Temporal.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("Temporal worker exited", "error", err)
			}
		}()
	}
}

func (j *Jobs) Close() {
	if j.temporalClient != nil {
		j.temporalClient.Close()
		j.temporalClient = nil
	}
}

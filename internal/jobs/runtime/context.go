package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

/*
Context is the execution handle for a single claimed job run.
Handlers never touch job_run directly:
  - inputs come from Payload / PayloadUUID / Decode
  - progress goes through Progress
  - the terminal transition is owned by the Executor, driven by Run's return value
*/
type Context struct {
	Ctx     context.Context
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Log     *logger.Logger
	result  any
	payload map[string]any
}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, log *logger.Logger) *Context {
	c := &Context{Ctx: ctx, Job: job, Repo: repo, Log: log}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil {
		return
	}
	traceID := payloadString(c.Payload(), "trace_id")
	reqID := payloadString(c.Payload(), "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := payloadString(c.Payload(), key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Decode unmarshals the raw payload into v.
func (c *Context) Decode(v any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return fmt.Errorf("job payload is empty")
	}
	return json.Unmarshal(c.Job.Payload, v)
}

// Progress records a non-terminal stage and refreshes the heartbeat.
func (c *Context) Progress(stage string, pct int) {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	if c.Repo != nil {
		err := c.Repo.UpdateFields(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"heartbeat_at": now,
		})
		if err != nil && c.Log != nil {
			c.Log.Warn("Job progress update failed", "job_id", c.Job.ID, "stage", stage, "error", err)
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
}

// SetResult stores the value persisted into job_run.result on success.
func (c *Context) SetResult(v any) { c.result = v }

func (c *Context) Result() any { return c.result }

func payloadString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// QueueStatter reports job_run counts by status.
type QueueStatter interface {
	QueueStats(ctx context.Context) (domjobs.QueueStats, error)
}

// Metrics is a Prometheus text-format registry for the API, the assessment pipeline and
// the job queue. A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests     *CounterVec
	apiLatency      *HistogramVec
	apiInflight     *GaugeVec
	assessments     *CounterVec
	overallScore    *HistogramVec
	stageLatency    *HistogramVec
	adapterRequests *CounterVec
	adapterLatency  *HistogramVec
	unlocks         *CounterVec
	jobs            *CounterVec
	queueDepth      *GaugeVec
	redisUp         *GaugeVec
}

func NewMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	return &Metrics{
		apiRequests:     NewCounterVec("negotiator_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:      NewHistogramVec("negotiator_api_request_duration_seconds", "API request latency.", []string{"method", "route"}, latency),
		apiInflight:     NewGaugeVec("negotiator_api_inflight_requests", "In-flight API requests.", nil),
		assessments:     NewCounterVec("negotiator_assessments_total", "Finished assessments by status and source of truth.", []string{"status", "source"}),
		overallScore:    NewHistogramVec("negotiator_assessment_overall_score", "Overall score of completed assessments.", nil, []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}),
		stageLatency:    NewHistogramVec("negotiator_pipeline_stage_duration_seconds", "Pipeline stage latency.", []string{"stage"}, latency),
		adapterRequests: NewCounterVec("negotiator_adapter_requests_total", "External adapter calls by model and outcome.", []string{"model", "outcome"}),
		adapterLatency:  NewHistogramVec("negotiator_adapter_duration_seconds", "External adapter latency.", []string{"model"}, latency),
		unlocks:         NewCounterVec("negotiator_achievements_unlocked_total", "Achievement unlocks by code.", []string{"code"}),
		jobs:            NewCounterVec("negotiator_jobs_total", "Job executions by type and outcome.", []string{"job_type", "outcome"}),
		queueDepth:      NewGaugeVec("negotiator_job_queue_depth", "job_run rows by status.", []string{"status"}),
		redisUp:         NewGaugeVec("negotiator_redis_up", "1 when the last Redis ping succeeded.", nil),
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.assessments, m.overallScore, m.stageLatency,
		m.adapterRequests, m.adapterLatency, m.unlocks,
		m.jobs, m.queueDepth, m.redisUp,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

// ObserveAssessment counts a terminal assessment. score is ignored unless status is
// completed.
func (m *Metrics) ObserveAssessment(status, source string, score int) {
	if m == nil {
		return
	}
	m.assessments.Inc(status, source)
	if status == "completed" {
		m.overallScore.Observe(float64(score))
	}
}

func (m *Metrics) ObserveStage(stage string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage)
}

func (m *Metrics) ObserveAdapter(model, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.adapterRequests.Inc(model, outcome)
	m.adapterLatency.Observe(dur.Seconds(), model)
}

func (m *Metrics) IncUnlock(code string) {
	if m == nil {
		return
	}
	m.unlocks.Inc(code)
}

func (m *Metrics) ObserveJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobs.Inc(jobType, outcome)
}

// StartQueueCollector samples queue depth every interval until ctx is done.
func (m *Metrics) StartQueueCollector(ctx context.Context, log *logger.Logger, src QueueStatter, interval time.Duration) {
	if m == nil || src == nil {
		return
	}
	go tick(ctx, interval, func() {
		st, err := src.QueueStats(ctx)
		if err != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
			return
		}
		m.RecordQueue(st)
	})
}

func (m *Metrics) RecordQueue(st domjobs.QueueStats) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(st.Queued), domjobs.StatusQueued)
	m.queueDepth.Set(float64(st.Running), domjobs.StatusRunning)
	m.queueDepth.Set(float64(st.Succeeded), domjobs.StatusSucceeded)
	m.queueDepth.Set(float64(st.Failed), domjobs.StatusFailed)
	m.queueDepth.Set(float64(st.Dead), domjobs.StatusDead)
}

// StartRedisCollector pings rdb every interval. A nil client records nothing.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *goredis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	go tick(ctx, interval, func() {
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			log.Warn("metrics: redis ping failed", "error", err)
			return
		}
		m.redisUp.Set(1)
	})
}

func tick(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

package temporalx

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{6, time.Second},
	}
	for _, tc := range cases {
		if got := ClampBackoff(100*time.Millisecond, time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Temporal{})
	if cfg.Enabled() {
		t.Fatalf("empty address should disable Temporal")
	}
	if cfg.Namespace != "negotiator" || cfg.TaskQueue != "negotiator-assessments" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	c, err := NewClient(context.Background(), logger.Nop(), cfg)
	if err != nil || c != nil {
		t.Fatalf("disabled client: c=%v err=%v", c, err)
	}
}

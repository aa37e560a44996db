package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{"auth_disabled": true}))
	if err != nil {
		t.Fatalf("fromViper: %v", err)
	}
	if cfg.Queue.Driver != QueueDriverDB || cfg.Queue.MaxAttempts != 3 || cfg.Queue.RetryPriority != 2 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Queue.BackoffBase != 2*time.Second {
		t.Fatalf("backoff base=%s, want 2s", cfg.Queue.BackoffBase)
	}
	if cfg.Adapter.Timeout != 45*time.Second {
		t.Fatalf("adapter timeout=%s", cfg.Adapter.Timeout)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("cors origins=%v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]any
		wantErr   bool
	}{
		{"missing_secret", map[string]any{}, true},
		{"with_secret", map[string]any{"jwt_secret": "s3cret"}, false},
		{"bad_driver", map[string]any{"auth_disabled": true, "queue_driver": "kafka"}, true},
		{"bad_provider", map[string]any{"auth_disabled": true, "adapter_provider": "claude"}, true},
		{"zero_attempts", map[string]any{"auth_disabled": true, "job_max_attempts": 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fromViper(newViper(tc.overrides))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := Postgres{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "host=db port=5433 user=u password=p dbname=n sslmode=disable TimeZone=UTC"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN=%q, want %q", got, want)
	}
}

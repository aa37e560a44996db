package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type QueueDriver string

const (
	QueueDriverDB       QueueDriver = "db"
	QueueDriverTemporal QueueDriver = "temporal"
	QueueDriverInline   QueueDriver = "inline"
)

type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (p Postgres) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		p.Host, p.Port, p.User, p.Password, p.Name, p.SSLMode,
	)
}

type Redis struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
	CacheTTL      time.Duration
}

type Queue struct {
	Driver        QueueDriver
	Concurrency   int
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	RetryPriority int
	PollInterval  time.Duration
	StaleAfter    time.Duration
}

type Adapter struct {
	Provider       string
	Timeout        time.Duration
	MaxConcurrency int64
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	GeminiAPIKey   string
	GeminiModel    string
}

type Temporal struct {
	Address   string
	Namespace string
	TaskQueue string
}

type Otel struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	Environment string
	Version     string
}

type Config struct {
	Port          string
	LogMode       string
	JWTSecret     string
	AuthDisabled  bool
	CORSOrigins   []string
	LexiconPath   string
	ArchiveBucket string
	Postgres      Postgres
	Redis         Redis
	Queue         Queue
	Adapter       Adapter
	Temporal      Temporal
	Otel          Otel
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_mode", "development")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("auth_disabled", false)
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("lexicon_path", "")
	v.SetDefault("archive_bucket", "")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_name", "negotiator")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_channel_prefix", "negotiator")
	v.SetDefault("cache_ttl", "5m")

	v.SetDefault("queue_driver", string(QueueDriverDB))
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("job_max_attempts", 3)
	v.SetDefault("job_backoff_base", "2s")
	v.SetDefault("job_backoff_max", "5m")
	v.SetDefault("retry_priority", 2)
	v.SetDefault("job_poll_interval", "1s")
	v.SetDefault("job_stale_after", "10m")

	v.SetDefault("adapter_provider", "none")
	v.SetDefault("adapter_timeout", "45s")
	v.SetDefault("adapter_max_concurrency", 4)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "https://api.openai.com")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-1.5-flash")

	v.SetDefault("temporal_address", "localhost:7233")
	v.SetDefault("temporal_namespace", "default")
	v.SetDefault("temporal_task_queue", "negotiator-assessments")

	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_insecure", false)
	v.SetDefault("otel_sampler_ratio", 0.1)
	v.SetDefault("app_env", "development")
	v.SetDefault("app_version", "dev")
}

// Load resolves configuration from, in increasing precedence: defaults, an optional
// negotiator.yaml in the working directory or /etc/negotiator, a .env file, and the
// process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("negotiator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/negotiator")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading negotiator.yaml: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:          v.GetString("port"),
		LogMode:       v.GetString("log_mode"),
		JWTSecret:     v.GetString("jwt_secret"),
		AuthDisabled:  v.GetBool("auth_disabled"),
		CORSOrigins:   splitList(v.GetString("cors_origins")),
		LexiconPath:   v.GetString("lexicon_path"),
		ArchiveBucket: v.GetString("archive_bucket"),
		Postgres: Postgres{
			Host:     v.GetString("postgres_host"),
			Port:     v.GetInt("postgres_port"),
			User:     v.GetString("postgres_user"),
			Password: v.GetString("postgres_password"),
			Name:     v.GetString("postgres_name"),
			SSLMode:  v.GetString("postgres_sslmode"),
		},
		Redis: Redis{
			Addr:          v.GetString("redis_addr"),
			Password:      v.GetString("redis_password"),
			DB:            v.GetInt("redis_db"),
			ChannelPrefix: v.GetString("redis_channel_prefix"),
			CacheTTL:      v.GetDuration("cache_ttl"),
		},
		Queue: Queue{
			Driver:        QueueDriver(strings.ToLower(v.GetString("queue_driver"))),
			Concurrency:   v.GetInt("worker_concurrency"),
			MaxAttempts:   v.GetInt("job_max_attempts"),
			BackoffBase:   v.GetDuration("job_backoff_base"),
			BackoffMax:    v.GetDuration("job_backoff_max"),
			RetryPriority: v.GetInt("retry_priority"),
			PollInterval:  v.GetDuration("job_poll_interval"),
			StaleAfter:    v.GetDuration("job_stale_after"),
		},
		Adapter: Adapter{
			Provider:       strings.ToLower(v.GetString("adapter_provider")),
			Timeout:        v.GetDuration("adapter_timeout"),
			MaxConcurrency: v.GetInt64("adapter_max_concurrency"),
			OpenAIAPIKey:   v.GetString("openai_api_key"),
			OpenAIModel:    v.GetString("openai_model"),
			OpenAIBaseURL:  v.GetString("openai_base_url"),
			GeminiAPIKey:   v.GetString("gemini_api_key"),
			GeminiModel:    v.GetString("gemini_model"),
		},
		Temporal: Temporal{
			Address:   v.GetString("temporal_address"),
			Namespace: v.GetString("temporal_namespace"),
			TaskQueue: v.GetString("temporal_task_queue"),
		},
		Otel: Otel{
			Enabled:     v.GetBool("otel_enabled"),
			Endpoint:    v.GetString("otel_exporter_otlp_endpoint"),
			Insecure:    v.GetBool("otel_exporter_otlp_insecure"),
			SampleRatio: v.GetFloat64("otel_sampler_ratio"),
			Environment: v.GetString("app_env"),
			Version:     v.GetString("app_version"),
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Queue.Driver {
	case QueueDriverDB, QueueDriverTemporal, QueueDriverInline:
	default:
		return fmt.Errorf("queue_driver %q: want db, temporal or inline", c.Queue.Driver)
	}
	switch c.Adapter.Provider {
	case "", "none", "openai", "gemini":
	default:
		return fmt.Errorf("adapter_provider %q: want openai, gemini or none", c.Adapter.Provider)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("job_max_attempts must be >= 1")
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("worker_concurrency must be >= 1")
	}
	if !c.AuthDisabled && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret is required unless auth_disabled=true")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

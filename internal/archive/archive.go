package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// Record is the raw material behind one assessment attempt.
type Record struct {
	AssessmentID   uuid.UUID       `json:"assessment_id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Attempt        int             `json:"attempt"`
	Transcript     string          `json:"transcript"`
	Model          string          `json:"model,omitempty"`
	ModelOutput    string          `json:"model_output,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	ArchivedAt     time.Time       `json:"archived_at"`
}

func (r Record) Key() string {
	return fmt.Sprintf("assessments/%s/%s/attempt-%d.json", r.UserID, r.AssessmentID, r.Attempt)
}

type Archiver interface {
	Put(ctx context.Context, r Record) error
}

type Nop struct{}

func (Nop) Put(context.Context, Record) error { return nil }

// GCS writes records as JSON objects into a single bucket.
type GCS struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewGCS returns (nil, nil) when bucket is empty.
func NewGCS(ctx context.Context, log *logger.Logger, bucket string) (*GCS, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{log: log.With("service", "TranscriptArchive"), client: client, bucket: bucket}, nil
}

func (g *GCS) Put(ctx context.Context, r Record) error {
	if r.ArchivedAt.IsZero() {
		r.ArchivedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	w := g.client.Bucket(g.bucket).Object(r.Key()).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive write %s: %w", r.Key(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive close %s: %w", r.Key(), err)
	}
	g.log.Debug("Archived assessment record", "key", r.Key(), "bytes", len(raw))
	return nil
}

func (g *GCS) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

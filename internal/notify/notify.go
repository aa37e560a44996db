package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type EventType string

const (
	EventAssessmentCompleted EventType = "assessment.completed"
	EventAssessmentFailed    EventType = "assessment.failed"
	EventAchievementUnlocked EventType = "achievement.unlocked"
)

type Event struct {
	Type           EventType      `json:"type"`
	UserID         uuid.UUID      `json:"user_id"`
	AssessmentID   uuid.UUID      `json:"assessment_id,omitempty"`
	ConversationID uuid.UUID      `json:"conversation_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	At             time.Time      `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Bus publishes events on one Redis channel per user: "<prefix>:user:<id>".
type Bus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewBus(log *logger.Logger, rdb *goredis.Client, prefix string) *Bus {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "negotiator"
	}
	return &Bus{log: log.With("service", "RedisEventBus"), rdb: rdb, prefix: prefix}
}

func (b *Bus) Channel(userID uuid.UUID) string {
	return b.prefix + ":user:" + userID.String()
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.Channel(ev.UserID), raw).Err()
}

// Subscribe forwards events for userID, or for every user when userID is uuid.Nil, until
// ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context, userID uuid.UUID, onEvent func(Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	var sub *goredis.PubSub
	if userID == uuid.Nil {
		sub = b.rdb.PSubscribe(ctx, b.prefix+":user:*")
	} else {
		sub = b.rdb.Subscribe(ctx, b.Channel(userID))
	}
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis event payload", "channel", m.Channel, "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

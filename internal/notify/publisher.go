// Package notify publishes question lifecycle events onto a Redis stream
// for the host platform's notification workers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event kinds consumed by the host's notification workers.
const (
	KindQuestionMentioned  = "question.mentioned"
	KindQuestionPublished  = "question.published"
	KindQuestionEvaluating = "question.evaluating"
	KindQuestionAccepted   = "question.accepted"
	KindQuestionRejected   = "question.rejected"
	KindAmendmentCreated   = "amendment.created"
	KindAmendmentAccepted  = "amendment.accepted"
	KindAmendmentRejected  = "amendment.rejected"
)

// Event is one notification published to the stream.
type Event struct {
	Kind       string         `json:"kind"`
	QuestionID int64          `json:"question_id"`
	Recipients []int64        `json:"recipients,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher writes events to a Redis stream. Delivery is at-least-once;
// mention events carry a dedup key so re-parsing the same content change
// does not fan out twice.
type Publisher struct {
	client    *redis.Client
	stream    string
	dedupTTL  time.Duration
	keyPrefix string
}

func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewPublisherWithClient(client), nil
}

// NewPublisherWithClient wraps an existing Redis client.
func NewPublisherWithClient(client *redis.Client) *Publisher {
	return &Publisher{
		client:    client,
		stream:    "agora:notifications",
		dedupTTL:  24 * time.Hour,
		keyPrefix: "agora:notified:",
	}
}

// Publish appends the event to the stream.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"kind":    event.Kind,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// PublishMention publishes a question.mentioned event exactly once per
// (changeID, mentionedID) pair. Returns whether the event was published.
func (p *Publisher) PublishMention(ctx context.Context, changeID string, mentionedID int64, recipients []int64) (bool, error) {
	key := fmt.Sprintf("%s%s:%d", p.keyPrefix, changeID, mentionedID)
	fresh, err := p.client.SetNX(ctx, key, 1, p.dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mention dedup: %w", err)
	}
	if !fresh {
		return false, nil
	}
	err = p.Publish(ctx, Event{
		Kind:       KindQuestionMentioned,
		QuestionID: mentionedID,
		Recipients: recipients,
		Extra:      map[string]any{"change_id": changeID},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Ping checks if Redis is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

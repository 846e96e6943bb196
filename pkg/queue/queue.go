package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNoJob = errors.New("queue: no job registered for type")

// Enqueuer is what producers depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type Config struct {
	Name        string        // key namespace
	Workers     int           // concurrent handlers
	RetryLimit  int           // retries before a message is parked in the dead-letter list
	RetryDelay  time.Duration // delay before a failed message is retried
	PollTimeout time.Duration // BRPOP block time
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Decode unmarshals a job payload into T.
func Decode[T any](payload json.RawMessage) (*T, error) {
	if len(payload) == 0 {
		return nil, errors.New("queue: empty payload")
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("queue: decode %T: %w", v, err)
	}
	return &v, nil
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("queue: encode payload: %w", err)
		}
		return b, nil
	}
}

// Inline runs jobs synchronously in the caller's goroutine. It stands in for
// the Redis queue when no Redis is configured.
type Inline struct {
	jobs map[string]Job
}

func NewInline(jobs ...Job) *Inline {
	in := &Inline{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		in.jobs[j.Type()] = j
	}
	return in
}

func (in *Inline) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	job, ok := in.jobs[msgType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoJob, msgType)
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return job.Handle(ctx, raw)
}

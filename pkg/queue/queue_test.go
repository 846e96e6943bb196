package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinChat/pkg/logger"
)

type parsePayload struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
}

func TestInlineRunsRegisteredJob(t *testing.T) {
	var got *parsePayload
	q := NewInline(JobFunc{MsgType: "document.parse", Fn: func(_ context.Context, raw json.RawMessage) error {
		var err error
		got, err = Decode[parsePayload](raw)
		return err
	}})

	require.NoError(t, q.Enqueue(context.Background(), "document.parse", parsePayload{UserID: "u1", Filename: "a.md"}))
	require.NotNil(t, got)
	assert.Equal(t, "a.md", got.Filename)

	err := q.Enqueue(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrNoJob))
}

func TestInlinePropagatesJobError(t *testing.T) {
	boom := errors.New("boom")
	q := NewInline(JobFunc{MsgType: "x", Fn: func(context.Context, json.RawMessage) error { return boom }})
	assert.ErrorIs(t, q.Enqueue(context.Background(), "x", json.RawMessage(`{}`)), boom)
}

func TestDecode(t *testing.T) {
	_, err := Decode[parsePayload](nil)
	assert.Error(t, err)

	_, err = Decode[parsePayload](json.RawMessage(`{"user_id":`))
	assert.Error(t, err)

	p, err := Decode[parsePayload](json.RawMessage(`{"user_id":"u","filename":"f"}`))
	require.NoError(t, err)
	assert.Equal(t, "u", p.UserID)
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(Message{Attempts: 1}, 3))
	assert.True(t, ShouldRetry(Message{Attempts: 3}, 3))
	assert.False(t, ShouldRetry(Message{Attempts: 4}, 3))
	assert.False(t, ShouldRetry(Message{Attempts: 1}, 0))
}

func TestRedisQueueKeysAndEnqueueGuard(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	q := NewRedisQueue(logger.NewNop(), client, Config{Name: "documents"})
	assert.Equal(t, "finchat:queue:documents:messages", q.key("messages"))
	assert.Equal(t, "finchat:queue:documents:dlq", q.key("dlq"))
	assert.Equal(t, 1, q.cfg.Workers)

	err := q.Enqueue(context.Background(), "document.parse", parsePayload{})
	assert.ErrorIs(t, err, ErrNoJob)
}

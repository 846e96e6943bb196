package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type. Payload is the JSON the producer enqueued;
// decode it with Decode.
type Job interface {
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	MsgType string
	Fn      func(ctx context.Context, payload json.RawMessage) error
}

func (j JobFunc) Type() string { return j.MsgType }

func (j JobFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return j.Fn(ctx, payload)
}

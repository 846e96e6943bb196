package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinChat/pkg/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func recorder(events *[]string, name string, startErr error) Component {
	return Component{
		Name: name,
		Start: func(context.Context) error {
			*events = append(*events, "start "+name)
			return startErr
		},
		Stop: func(context.Context) error {
			*events = append(*events, "stop "+name)
			return nil
		},
	}
}

func TestRunContextStartsAndStopsInOrder(t *testing.T) {
	var events []string
	app := New(logger.NewNop(), nil, time.Second)
	app.AddComponent(recorder(&events, "queue", nil))
	app.AddComponent(recorder(&events, "consumer", nil))
	app.AddCloser("cache", closerFunc(func() error {
		events = append(events, "close cache")
		return nil
	}))
	app.AddCloser("nil", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, app.RunContext(ctx))
	assert.Equal(t, []string{
		"start queue", "start consumer",
		"stop consumer", "stop queue",
		"close cache",
	}, events)
}

func TestRunContextRollsBackOnStartFailure(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	app := New(logger.NewNop(), nil, time.Second)
	app.AddComponent(recorder(&events, "queue", nil))
	app.AddComponent(recorder(&events, "consumer", boom))
	app.AddComponent(recorder(&events, "pipeline", nil))

	err := app.RunContext(context.Background())

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "start consumer")
	assert.Equal(t, []string{"start queue", "start consumer", "stop queue"}, events)
}

func TestShutdownJoinsErrors(t *testing.T) {
	app := New(logger.NewNop(), nil, 0)
	app.AddComponent(Component{
		Name: "pipeline",
		Stop: func(context.Context) error { return context.DeadlineExceeded },
	})
	app.AddCloser("store", closerFunc(func() error { return errors.New("closed twice") }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := app.RunContext(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "close store")
}

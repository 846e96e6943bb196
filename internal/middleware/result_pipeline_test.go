package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinChat/internal/domain/models"
	"FinChat/pkg/logger"
	"FinChat/pkg/metrics"
)

type recordingProc struct {
	mu    sync.Mutex
	fails int
	got   []string
	at    []time.Time
}

func (r *recordingProc) Process(_ context.Context, env *models.ParsedEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("sink down")
	}
	r.got = append(r.got, env.ID)
	r.at = append(r.at, time.Now())
	return nil
}

func (r *recordingProc) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func (r *recordingProc) deliveredAt() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.at...)
}

func envelope(id, chat string) *models.ParsedEnvelope {
	return &models.ParsedEnvelope{
		ID:      id,
		ChatID:  chat,
		Tool:    models.ToolNewsSearch,
		Kind:    models.KindNews,
		Payload: json.RawMessage(`{"articles":[]}`),
	}
}

func TestResultPipeline_RejectsInvalidEnvelope(t *testing.T) {
	proc := &recordingProc{}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{})

	for _, env := range []*models.ParsedEnvelope{
		nil,
		{ChatID: "c", Kind: models.KindNews, Payload: json.RawMessage(`{}`)},
		{ID: "1", Kind: models.KindNews, Payload: json.RawMessage(`{}`)},
		{ID: "1", ChatID: "c", Payload: json.RawMessage(`{}`)},
		{ID: "1", ChatID: "c", Kind: models.KindNews},
	} {
		assert.Error(t, p.Process(t.Context(), env))
	}
	assert.Empty(t, proc.delivered())
}

func TestResultPipeline_DeliversDirectly(t *testing.T) {
	proc := &recordingProc{}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{})

	require.NoError(t, p.Process(t.Context(), envelope("1", "chat-a")))
	require.NoError(t, p.Process(t.Context(), envelope("2", "chat-b")))

	assert.Equal(t, []string{"1", "2"}, proc.delivered())
	assert.Zero(t, p.Buffered())
}

func TestResultPipeline_ThrottledResultsAreDeferred(t *testing.T) {
	proc := &recordingProc{}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithMaxRPS(1))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	require.NoError(t, p.Process(t.Context(), envelope("1", "chat-a")))
	require.NoError(t, p.Process(t.Context(), envelope("2", "chat-a")))
	require.NoError(t, p.Process(t.Context(), envelope("3", "chat-b")))

	assert.Equal(t, []string{"1", "3"}, proc.delivered())
	assert.Equal(t, 1, p.Buffered())
}

func TestResultPipeline_ThrottleSpacesDeliveriesPerChat(t *testing.T) {
	const interval = 100 * time.Millisecond
	proc := &recordingProc{}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithMaxRPS(10))

	start := time.Now()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, p.Process(t.Context(), envelope(id, "chat-a")))
	}
	assert.Equal(t, []string{"1"}, proc.delivered())
	assert.Equal(t, 4, p.Buffered())

	p.Start(t.Context())
	defer func() { require.NoError(t, p.Stop(t.Context())) }()

	assert.Eventually(t, func() bool { return len(proc.delivered()) == 5 }, 2*time.Second, 5*time.Millisecond)
	at := proc.deliveredAt()
	require.Len(t, at, 5)
	for k, ts := range at {
		assert.GreaterOrEqual(t, ts.Sub(start), time.Duration(k)*interval, "delivery %d came early", k)
	}
}

func TestResultPipeline_PruneForgetsIdleChats(t *testing.T) {
	proc := &recordingProc{}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithMaxRPS(10), WithBufferSize(10))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	for i := 0; i < 5000; i++ {
		require.NoError(t, p.Process(t.Context(), envelope(fmt.Sprint(i), fmt.Sprintf("chat-%d", i))))
	}
	assert.Equal(t, 5000, p.Tracked())

	now = now.Add(2 * time.Minute)
	require.NoError(t, p.Process(t.Context(), envelope("fresh", "chat-fresh")))

	assert.Equal(t, 5000, p.Prune(time.Minute))
	assert.Equal(t, 1, p.Tracked())
}

func TestResultPipeline_FlusherPrunesPeriodically(t *testing.T) {
	p := NewResultPipeline(logger.NewNop(), &recordingProc{}, metrics.Nop{}, WithMaxRPS(100))
	p.pruneEvery = 5 * time.Millisecond
	p.idleAfter = 10 * time.Millisecond

	for i := 0; i < 50; i++ {
		require.NoError(t, p.Process(t.Context(), envelope(fmt.Sprint(i), fmt.Sprintf("chat-%d", i))))
	}
	require.Equal(t, 50, p.Tracked())

	p.Start(t.Context())
	assert.Eventually(t, func() bool { return p.Tracked() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(t.Context()))
}

func TestResultPipeline_Restart(t *testing.T) {
	proc := &recordingProc{fails: 1}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithRetryBackoff(time.Millisecond, 5*time.Millisecond))

	p.Start(t.Context())
	require.NoError(t, p.Stop(t.Context()))

	require.NoError(t, p.Process(t.Context(), envelope("1", "chat-a")))
	assert.Equal(t, 1, p.Buffered())

	p.Start(t.Context())
	assert.Eventually(t, func() bool { return len(proc.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(t.Context()))
	assert.NoError(t, p.Stop(t.Context()))
}

func TestResultPipeline_RetriesFailedDelivery(t *testing.T) {
	proc := &recordingProc{fails: 2}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithRetryBackoff(time.Millisecond, 5*time.Millisecond))

	require.NoError(t, p.Process(t.Context(), envelope("1", "chat-a")))
	assert.Equal(t, 1, p.Buffered())

	p.Start(t.Context())
	assert.Eventually(t, func() bool { return len(proc.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(t.Context()))
}

func TestResultPipeline_FullBufferIsAnError(t *testing.T) {
	proc := &recordingProc{fails: 10}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithBufferSize(1))

	require.NoError(t, p.Process(t.Context(), envelope("1", "chat-a")))
	err := p.Process(t.Context(), envelope("2", "chat-b"))

	assert.ErrorIs(t, err, ErrBufferFull)
}

func TestResultPipeline_StopDrainsBuffer(t *testing.T) {
	proc := &recordingProc{}
	p := NewResultPipeline(logger.NewNop(), proc, metrics.Nop{}, WithMaxRPS(1))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, p.Process(t.Context(), envelope(id, "chat-a")))
	}
	p.Start(t.Context())
	require.NoError(t, p.Stop(t.Context()))

	assert.ElementsMatch(t, []string{"1", "2", "3"}, proc.delivered())
	assert.Zero(t, p.Buffered())
}

func TestResultPipeline_StopWithoutStart(t *testing.T) {
	p := NewResultPipeline(logger.NewNop(), &recordingProc{}, metrics.Nop{})
	assert.NoError(t, p.Stop(context.Background()))
}

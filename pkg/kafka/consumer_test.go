package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "rental.reservation.cancelled"

func eventMessage(t *testing.T, offset int64, aggregateID string) kafka.Message {
	t.Helper()
	event, err := NewEvent("reservation.cancelled", aggregateID, "reservation", "storefront", map[string]string{"reservation_id": aggregateID})
	require.NoError(t, err)
	raw, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: testTopic, Offset: offset, Key: []byte(aggregateID), Value: raw}
}

func testConsumer(r messageReader, h Handler, opts ...ConsumerOption) *Consumer {
	cfg := ConsumerConfig{Topic: testTopic, GroupID: "rental-stock", MaxRetries: 3, RetryBackoff: time.Millisecond}
	return newConsumer(r, cfg, h, testLogger(), opts...)
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1, "r-1"), eventMessage(t, 2, "r-2")}}
	metrics := NewMetrics(prometheus.NewRegistry())

	var seen []string
	c := testConsumer(r, func(_ context.Context, e *Event) error {
		seen = append(seen, e.AggregateID)
		return nil
	}, WithMetrics(metrics))

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []string{"r-1", "r-2"}, seen)
	assert.Len(t, r.committed, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.consumed.WithLabelValues(testTopic, "rental-stock", OutcomeProcessed)))
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1, "r-1")}}

	calls := 0
	c := testConsumer(r, func(context.Context, *Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_ExhaustedGoesToDLQ(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 7, "r-1")}}
	dlq := &fakeDLQ{}
	metrics := NewMetrics(prometheus.NewRegistry())

	calls := 0
	c := testConsumer(r, func(context.Context, *Event) error {
		calls++
		return errors.New("stock store unavailable")
	}, WithDeadLetter(dlq), WithMetrics(metrics))

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 3, calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, int64(7), dlq.msgs[0].Offset)
	assert.EqualError(t, dlq.errs[0], "stock store unavailable")
	assert.Len(t, r.committed, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.consumed.WithLabelValues(testTopic, "rental-stock", OutcomeDeadLettered)))
}

func TestConsumer_MalformedMessageCommitted(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: testTopic, Offset: 3, Value: []byte("not json")}}}
	dlq := &fakeDLQ{}

	called := false
	c := testConsumer(r, func(context.Context, *Event) error {
		called = true
		return nil
	}, WithDeadLetter(dlq))

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, called)
	assert.Len(t, dlq.msgs, 1)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_StopsOnCanceledContext(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1, "r-1")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testConsumer(r, func(context.Context, *Event) error { return nil })
	assert.NoError(t, c.Start(ctx))
	assert.Empty(t, r.committed)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

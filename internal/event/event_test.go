package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/locagame/internal/domain"
	pkgkafka "github.com/utafrali/locagame/pkg/kafka"
	"github.com/utafrali/locagame/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, evt *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, published{topic: topic, event: evt})
	return nil
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "rental.stock.held", TopicStockHeld)
	assert.Equal(t, "rental.stock.released", TopicStockReleased)
	assert.Equal(t, "rental.stock.blocked", TopicStockBlocked)
	assert.Equal(t, "rental.reservation.cancelled", TopicReservationCancelled)
}

func TestProducer_PublishStockHeld(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, logger.Discard())

	window, err := domain.ParseDateRange("2024-06-01", "2024-06-03")
	require.NoError(t, err)
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	ctx = logger.WithActorID(ctx, "storefront")

	err = p.PublishStockHeld(ctx, "res-1", window, []domain.StockInterval{
		{ID: "iv-1", ProductID: "p1", Quantity: 2},
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	got := pub.events[0]
	assert.Equal(t, TopicStockHeld, got.topic)
	assert.Equal(t, "res-1", got.event.AggregateID)
	assert.Equal(t, AggregateTypeReservation, got.event.AggregateType)
	assert.Equal(t, SourceStockService, got.event.Source)
	assert.Equal(t, "corr-1", got.event.CorrelationID)
	assert.Equal(t, "storefront", got.event.Metadata["actor_id"])

	var data StockHeldData
	require.NoError(t, got.event.UnmarshalData(&data))
	assert.Equal(t, civil.Date{Year: 2024, Month: 6, Day: 1}, data.StartDate)
	assert.Equal(t, []HeldItem{{IntervalID: "iv-1", ProductID: "p1", Quantity: 2}}, data.Items)
}

func TestProducer_PublishStockBlocked(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, logger.Discard())

	note := "motor replaced"
	iv := &domain.StockInterval{
		ID:        "iv-7",
		ProductID: "p1",
		StartDate: civil.Date{Year: 2024, Month: 7, Day: 1},
		EndDate:   civil.Date{Year: 2024, Month: 7, Day: 2},
		Status:    domain.StatusMaintenance,
		Note:      &note,
	}
	require.NoError(t, p.PublishStockBlocked(context.Background(), iv))
	require.NoError(t, p.PublishStockUnblocked(context.Background(), iv))

	require.Len(t, pub.events, 2)
	assert.Equal(t, TopicStockUnblocked, pub.events[1].topic)

	var data StockBlockedData
	require.NoError(t, pub.events[0].event.UnmarshalData(&data))
	assert.Equal(t, "p1", pub.events[0].event.AggregateID)
	assert.Equal(t, "motor replaced", data.Note)
	assert.Equal(t, domain.StatusMaintenance, data.Status)
}

func TestProducer_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := NewProducer(pub, logger.Discard())

	err := p.PublishStockReleased(context.Background(), "res-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish rental.stock.released event")
}

type fakeReleaser struct {
	ids []string
	n   int
	err error
}

func (f *fakeReleaser) ReleaseReservation(_ context.Context, id string) (int, error) {
	f.ids = append(f.ids, id)
	return f.n, f.err
}

func cancelledEvent(t *testing.T, aggregateID string, data any) *pkgkafka.Event {
	t.Helper()
	evt, err := pkgkafka.NewEvent(TopicReservationCancelled, aggregateID, AggregateTypeReservation, "storefront", data)
	require.NoError(t, err)
	return evt
}

func TestReservationCancelledHandler(t *testing.T) {
	r := &fakeReleaser{n: 2}
	h := ReservationCancelledHandler(r, logger.Discard())

	err := h(context.Background(), cancelledEvent(t, "ignored", ReservationCancelledData{ReservationID: "res-9"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"res-9"}, r.ids)
}

func TestReservationCancelledHandler_FallsBackToAggregateID(t *testing.T) {
	r := &fakeReleaser{}
	h := ReservationCancelledHandler(r, logger.Discard())

	require.NoError(t, h(context.Background(), cancelledEvent(t, "res-3", map[string]string{})))
	assert.Equal(t, []string{"res-3"}, r.ids)
}

func TestReservationCancelledHandler_Errors(t *testing.T) {
	r := &fakeReleaser{err: errors.New("db down")}
	h := ReservationCancelledHandler(r, logger.Discard())

	err := h(context.Background(), cancelledEvent(t, "res-1", ReservationCancelledData{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release reservation res-1")

	err = h(context.Background(), cancelledEvent(t, "", ReservationCancelledData{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reservation id")

	bad := cancelledEvent(t, "res-1", nil)
	bad.Data = []byte(`"not an object"`)
	assert.Error(t, h(context.Background(), bad))
}

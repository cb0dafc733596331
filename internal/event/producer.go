package event

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"

	"github.com/utafrali/locagame/internal/domain"
	pkgkafka "github.com/utafrali/locagame/pkg/kafka"
	"github.com/utafrali/locagame/pkg/logger"
)

// Kafka topics for stock domain events.
var (
	TopicStockHeld      = pkgkafka.Topic("stock", "held")
	TopicStockReleased  = pkgkafka.Topic("stock", "released")
	TopicStockBlocked   = pkgkafka.Topic("stock", "blocked")
	TopicStockUnblocked = pkgkafka.Topic("stock", "unblocked")
)

// Aggregate types.
const (
	AggregateTypeReservation = "reservation"
	AggregateTypeProduct     = "product"
)

// SourceStockService identifies events emitted by this service.
const SourceStockService = "rental-stock-service"

// HeldItem is one line of a stock hold.
type HeldItem struct {
	IntervalID string `json:"interval_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

// StockHeldData is the payload for a stock.held event.
type StockHeldData struct {
	ReservationID string     `json:"reservation_id"`
	StartDate     civil.Date `json:"start_date"`
	EndDate       civil.Date `json:"end_date"`
	Items         []HeldItem `json:"items"`
}

// StockReleasedData is the payload for a stock.released event.
type StockReleasedData struct {
	ReservationID string     `json:"reservation_id"`
	Items         []HeldItem `json:"items"`
}

// StockBlockedData is the payload for stock.blocked and stock.unblocked events.
type StockBlockedData struct {
	IntervalID string     `json:"interval_id"`
	ProductID  string     `json:"product_id"`
	StartDate  civil.Date `json:"start_date"`
	EndDate    civil.Date `json:"end_date"`
	Quantity   int        `json:"quantity"`
	Status     string     `json:"status"`
	Note       string     `json:"note,omitempty"`
}

// Producer publishes stock domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer over publisher.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func heldItems(intervals []domain.StockInterval) []HeldItem {
	items := make([]HeldItem, 0, len(intervals))
	for _, iv := range intervals {
		items = append(items, HeldItem{IntervalID: iv.ID, ProductID: iv.ProductID, Quantity: iv.Quantity})
	}
	return items
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStockService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if actor := logger.ActorIDFromContext(ctx); actor != "" {
		evt.WithMetadata("actor_id", actor)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published stock event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

// PublishStockHeld publishes a stock.held event for a reservation hold.
func (p *Producer) PublishStockHeld(ctx context.Context, reservationID string, window domain.DateRange, intervals []domain.StockInterval) error {
	return p.publish(ctx, TopicStockHeld, reservationID, AggregateTypeReservation, StockHeldData{
		ReservationID: reservationID,
		StartDate:     window.Start,
		EndDate:       window.End,
		Items:         heldItems(intervals),
	})
}

// PublishStockReleased publishes a stock.released event.
func (p *Producer) PublishStockReleased(ctx context.Context, reservationID string, intervals []domain.StockInterval) error {
	return p.publish(ctx, TopicStockReleased, reservationID, AggregateTypeReservation, StockReleasedData{
		ReservationID: reservationID,
		Items:         heldItems(intervals),
	})
}

func blockedData(iv *domain.StockInterval) StockBlockedData {
	d := StockBlockedData{
		IntervalID: iv.ID,
		ProductID:  iv.ProductID,
		StartDate:  iv.StartDate,
		EndDate:    iv.EndDate,
		Quantity:   iv.Quantity,
		Status:     iv.Status,
	}
	if iv.Note != nil {
		d.Note = *iv.Note
	}
	return d
}

// PublishStockBlocked publishes a stock.blocked event for a manual block.
func (p *Producer) PublishStockBlocked(ctx context.Context, iv *domain.StockInterval) error {
	return p.publish(ctx, TopicStockBlocked, iv.ProductID, AggregateTypeProduct, blockedData(iv))
}

// PublishStockUnblocked publishes a stock.unblocked event when a manual block is removed.
func (p *Producer) PublishStockUnblocked(ctx context.Context, iv *domain.StockInterval) error {
	return p.publish(ctx, TopicStockUnblocked, iv.ProductID, AggregateTypeProduct, blockedData(iv))
}

package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/locagame/pkg/kafka"
)

// TopicReservationCancelled is published by the storefront when a
// reservation is cancelled.
var TopicReservationCancelled = pkgkafka.Topic("reservation", "cancelled")

// ReservationCancelledData is the payload this service reads from a
// reservation.cancelled event.
type ReservationCancelledData struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason,omitempty"`
}

// ReservationReleaser releases the stock held for a reservation.
type ReservationReleaser interface {
	ReleaseReservation(ctx context.Context, reservationID string) (int, error)
}

// ReservationCancelledHandler returns a handler that frees the stock of a
// cancelled reservation. Releasing is idempotent, so redelivery is safe.
func ReservationCancelledHandler(releaser ReservationReleaser, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, evt *pkgkafka.Event) error {
		var data ReservationCancelledData
		if err := evt.UnmarshalData(&data); err != nil {
			return err
		}
		if data.ReservationID == "" {
			data.ReservationID = evt.AggregateID
		}
		if data.ReservationID == "" {
			return fmt.Errorf("reservation.cancelled event %s has no reservation id", evt.EventID)
		}

		released, err := releaser.ReleaseReservation(ctx, data.ReservationID)
		if err != nil {
			return fmt.Errorf("release reservation %s: %w", data.ReservationID, err)
		}

		logger.InfoContext(ctx, "released stock for cancelled reservation",
			slog.String("reservation_id", data.ReservationID),
			slog.Int("intervals", released),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}
}

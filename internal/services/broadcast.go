package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/observability"
)

// Recipients lists every known chat identity.
type Recipients interface {
	ListIDs(ctx context.Context) ([]domain.ChatID, error)
}

// Notifier delivers a plain text message to one chat.
type Notifier interface {
	Notify(ctx context.Context, chatID domain.ChatID, text string) error
}

// DefaultBroadcastText is the morning reminder sent to every identity.
const DefaultBroadcastText = "Good morning! Don't forget to order lunch for tomorrow. Orders for the next day are accepted until 12:00."

// Broadcaster sends the daily reminder.
type Broadcaster struct {
	Recipients Recipients
	Notifier   Notifier
	Text       string
	// Days is the weekday allow-list; other days are skipped.
	Days []time.Weekday
	// Limiter paces outbound messages; nil sends as fast as possible.
	Limiter *rate.Limiter
}

// BroadcastResult summarizes one firing.
type BroadcastResult struct {
	Skipped bool
	Sent    int
	Failed  int
}

// Weekdays is Monday through Friday.
var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Allowed reports whether day is in the allow-list.
func (b *Broadcaster) Allowed(day time.Weekday) bool {
	for _, d := range b.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Fire sends the reminder for a firing at time at. On a day outside the
// allow-list nothing is read or sent. A failed delivery is counted and does
// not stop the batch; there is no retry. The error is non-nil only when the
// identity list cannot be read or ctx ends.
func (b *Broadcaster) Fire(ctx context.Context, at time.Time) (BroadcastResult, error) {
	ctx, span := otel.Tracer("services/Broadcaster").Start(ctx, "Fire",
		trace.WithAttributes(attribute.String("weekday", at.Weekday().String())),
	)
	defer span.End()

	if !b.Allowed(at.Weekday()) {
		log.Info().Str("weekday", at.Weekday().String()).Msg("broadcast skipped")
		return BroadcastResult{Skipped: true}, nil
	}
	return b.Send(ctx)
}

// Send delivers the reminder to every identity regardless of the weekday.
func (b *Broadcaster) Send(ctx context.Context) (BroadcastResult, error) {
	var res BroadcastResult

	ids, err := b.Recipients.ListIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("broadcast: cannot read identities")
		return res, err
	}
	if len(ids) == 0 {
		log.Info().Msg("broadcast: no identities")
		return res, nil
	}

	text := b.Text
	if text == "" {
		text = DefaultBroadcastText
	}
	for _, id := range ids {
		if b.Limiter != nil {
			if err := b.Limiter.Wait(ctx); err != nil {
				log.Warn().Err(err).Int("sent", res.Sent).Int("failed", res.Failed).Msg("broadcast interrupted")
				return res, err
			}
		}
		if err := b.Notifier.Notify(ctx, id, text); err != nil {
			res.Failed++
			observability.BroadcastMessages.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Int64("chat_id", id).Msg("broadcast delivery failed")
			continue
		}
		res.Sent++
		observability.BroadcastMessages.WithLabelValues("sent").Inc()
	}
	log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("broadcast finished")
	return res, nil
}

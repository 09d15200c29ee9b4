// Package services – OrderService
//
// This file implements OrderService, which turns a completed dialogue
// session into a stored order, lists a chat's upcoming orders and cancels
// orders by reference under the pickup date policy. It also registers chat
// identities for the broadcast.
//
// Observability: public methods are OpenTelemetry-instrumented and update
// the order counters in the observability package.
package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/observability"
	"github.com/tbourn/go-order-bot/internal/store"
)

// OrderStore defines the store contract required by OrderService.
type OrderStore interface {
	// Append writes an order row to its category table.
	Append(ctx context.Context, o domain.Order) error

	// ListAll returns the orders of one category in row order.
	ListAll(ctx context.Context, c domain.Category) ([]domain.OrderRecord, error)

	// DeleteByReference removes the first order with the reference unless
	// guard vetoes it.
	DeleteByReference(ctx context.Context, ref string, guard func(store.Located) error) (store.Located, error)

	// AppendIfAbsent registers a chat identity.
	AppendIfAbsent(ctx context.Context, id domain.ChatID) (bool, error)
}

// OrderService places, lists and cancels orders.
type OrderService struct {
	Store  OrderStore
	Policy Policy

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
	// NewReference generates order references; defaults to NewReference.
	NewReference func() string
}

// NewOrderService constructs an OrderService with the wall clock and the
// random reference generator.
func NewOrderService(st OrderStore, p Policy) *OrderService {
	return &OrderService{
		Store:        st,
		Policy:       p,
		Now:          time.Now,
		NewReference: NewReference,
	}
}

// Register records chatID in the identity table. Failures are logged and
// returned; callers may ignore them.
func (s *OrderService) Register(ctx context.Context, chatID domain.ChatID) error {
	ctx, span := otel.Tracer("services/OrderService").Start(ctx, "Register",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	added, err := s.Store.AppendIfAbsent(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("identity registration failed")
		return err
	}
	if added {
		log.Info().Int64("chat_id", chatID).Msg("new identity registered")
	}
	return nil
}

// Place commits the order described by sess for chatID. The session must be
// complete; its price is stored as-is. Identity registration is attempted
// first and never blocks the commit.
func (s *OrderService) Place(ctx context.Context, chatID domain.ChatID, sess domain.Session) (domain.Order, error) {
	ctx, span := otel.Tracer("services/OrderService").Start(ctx, "Place",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.String("order.category", string(sess.Category)),
		),
	)
	defer span.End()

	if !sess.Complete() {
		return domain.Order{}, ErrIncompleteSession
	}
	if sess.Category.OrdersTable() == "" {
		return domain.Order{}, ErrUnknownCategory
	}

	_ = s.Register(ctx, chatID)

	o := domain.Order{
		Reference:  s.reference(),
		CreatedAt:  s.now().In(s.Policy.loc()),
		FullName:   sess.FullName,
		OwnerID:    chatID,
		Category:   sess.Category,
		PickupDate: sess.PickupDate,
		Price:      sess.Price.Decimal,
	}
	if err := s.Store.Append(ctx, o); err != nil {
		return domain.Order{}, err
	}
	observability.OrdersCreated.WithLabelValues(string(o.Category)).Inc()
	log.Info().
		Str("reference", o.Reference).
		Int64("chat_id", chatID).
		Str("category", string(o.Category)).
		Str("price", o.Price.StringFixed(2)).
		Msg("order placed")
	return o, nil
}

// MyOrders returns the orders of chatID whose pickup date is today or later,
// sorted by pickup date. A table that cannot be read is skipped; the call
// fails only when every table fails. Rows with an unparsable pickup date
// are left out.
func (s *OrderService) MyOrders(ctx context.Context, chatID domain.ChatID) ([]domain.OrderRecord, error) {
	ctx, span := otel.Tracer("services/OrderService").Start(ctx, "MyOrders",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	owner := strconv.FormatInt(chatID, 10)
	today := s.Policy.Today(s.now())

	type dated struct {
		rec    domain.OrderRecord
		pickup time.Time
	}
	var (
		out      []dated
		firstErr error
		failed   int
	)
	for _, c := range domain.Categories {
		recs, err := s.Store.ListAll(ctx, c)
		if err != nil {
			log.Warn().Err(err).Str("category", string(c)).Msg("order table unreadable")
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, r := range recs {
			if strings.TrimSpace(r.OwnerID) != owner {
				continue
			}
			d, err := s.Policy.ParseDate(r.PickupDate)
			if err != nil || d.Before(today) {
				continue
			}
			out = append(out, dated{rec: r, pickup: d})
		}
	}
	if failed == len(domain.Categories) {
		return nil, firstErr
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].pickup.Before(out[j].pickup) })
	recs := make([]domain.OrderRecord, len(out))
	for i, d := range out {
		recs[i] = d.rec
	}
	return recs, nil
}

// Cancel deletes the first order whose reference matches ref (trimmed and
// upper-cased). An order for tomorrow cannot be cancelled at or after the
// cutoff (ErrCutoffPassed). A row whose stored pickup date does not parse is
// passed over and the search continues with the next match.
func (s *OrderService) Cancel(ctx context.Context, ref string) (store.Located, error) {
	ref = NormalizeReference(ref)
	ctx, span := otel.Tracer("services/OrderService").Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("order.reference", ref)),
	)
	defer span.End()

	if ref == "" {
		observability.OrdersCancelled.WithLabelValues("not_found").Inc()
		return store.Located{}, ErrOrderNotFound
	}

	now := s.now()
	loc, err := s.Store.DeleteByReference(ctx, ref, func(l store.Located) error {
		d, perr := s.Policy.ParseDate(l.Record.PickupDate)
		if perr != nil {
			log.Warn().Str("reference", ref).Str("pickup_date", l.Record.PickupDate).Int("row", l.Row).Msg("stored pickup date unparsable; row skipped")
			return store.ErrSkipRow
		}
		return s.Policy.CheckCutoff(d, now)
	})
	switch {
	case err == nil:
		observability.OrdersCancelled.WithLabelValues("deleted").Inc()
		log.Info().Str("reference", ref).Str("category", string(loc.Category)).Msg("order cancelled")
		return loc, nil
	case errors.Is(err, ErrOrderNotFound):
		observability.OrdersCancelled.WithLabelValues("not_found").Inc()
	case errors.Is(err, ErrCutoffPassed):
		observability.OrdersCancelled.WithLabelValues("cutoff").Inc()
	default:
		observability.OrdersCancelled.WithLabelValues("error").Inc()
	}
	return loc, err
}

// NormalizeReference trims and upper-cases a user-typed reference.
func NormalizeReference(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}

func (s *OrderService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *OrderService) reference() string {
	if s.NewReference == nil {
		return NewReference()
	}
	return s.NewReference()
}

package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-order-bot/internal/dialog"
	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/observability"
)

// Handler runs one dialogue turn.
type Handler interface {
	Handle(ctx context.Context, chatID domain.ChatID, text string) dialog.Result
}

// Replier delivers one reply.
type Replier interface {
	Send(ctx context.Context, chatID domain.ChatID, r dialog.Reply) error
}

// Dispatcher feeds text updates to the dialogue. Each chat has a lane: its
// updates are handled one at a time in arrival order, while different chats
// are handled concurrently. A lane's goroutine exits once its queue drains.
type Dispatcher struct {
	Machine Handler
	Replies Replier

	mu    sync.Mutex
	lanes map[domain.ChatID]*lane
	wg    sync.WaitGroup
}

type lane struct {
	pending []string
}

// NewDispatcher returns a dispatcher with no active lanes.
func NewDispatcher(h Handler, r Replier) *Dispatcher {
	return &Dispatcher{Machine: h, Replies: r, lanes: make(map[domain.ChatID]*lane)}
}

// Extract returns the chat and text of a text message update.
func Extract(u tgbotapi.Update) (domain.ChatID, string, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return 0, "", false
	}
	return m.Chat.ID, m.Text, true
}

// Submit queues u on its chat's lane and returns immediately. Processing
// outlives ctx's cancellation but keeps its values. It reports false for
// updates that carry no text message.
func (d *Dispatcher) Submit(ctx context.Context, u tgbotapi.Update) bool {
	chatID, text, ok := Extract(u)
	if !ok {
		return false
	}

	d.mu.Lock()
	l, running := d.lanes[chatID]
	if !running {
		l = &lane{}
		d.lanes[chatID] = l
		d.wg.Add(1)
	}
	l.pending = append(l.pending, text)
	d.mu.Unlock()

	if !running {
		go d.drain(context.WithoutCancel(ctx), chatID, l)
	}
	return true
}

func (d *Dispatcher) drain(ctx context.Context, chatID domain.ChatID, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.pending) == 0 {
			delete(d.lanes, chatID)
			d.mu.Unlock()
			return
		}
		text := l.pending[0]
		l.pending = l.pending[1:]
		d.mu.Unlock()

		d.Dispatch(ctx, chatID, text)
	}
}

// Dispatch runs one turn synchronously and sends its replies. A failed
// send is logged; the remaining replies are still attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID domain.ChatID, text string) dialog.Result {
	res := d.Machine.Handle(ctx, chatID, text)
	for _, r := range res.Replies {
		if err := d.Replies.Send(ctx, chatID, r); err != nil {
			log.Error().Err(err).
				Int64("chat_id", chatID).
				Str("state", res.State.String()).
				Msg("reply not delivered")
		}
	}
	return res
}

// Wait blocks until every lane has drained.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Active returns the number of chats with queued or running turns.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Update sources and dispositions for the telegram_updates_total counter.
const (
	SourcePolling = "polling"
	SourceWebhook = "webhook"

	DispositionAccepted  = "accepted"
	DispositionDuplicate = "duplicate"
	DispositionIgnored   = "ignored"
)

// Receive submits u and counts it under source.
func (d *Dispatcher) Receive(ctx context.Context, source string, u tgbotapi.Update) bool {
	if !d.Submit(ctx, u) {
		CountUpdate(source, DispositionIgnored)
		return false
	}
	CountUpdate(source, DispositionAccepted)
	return true
}

// CountUpdate records an incoming update.
func CountUpdate(source, disposition string) {
	observability.UpdatesReceived.WithLabelValues(source, disposition).Inc()
}

// Package dialog implements the ordering conversation as a table-driven
// state machine. Handle consumes one incoming text per call and returns the
// replies to send and the resulting state. No error escapes a turn: every
// failure is mapped to an Outcome and a reply that leaves the session in a
// safe state.
package dialog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/observability"
	"github.com/tbourn/go-order-bot/internal/services"
	"github.com/tbourn/go-order-bot/internal/store"
)

// Outcome classifies how a turn ended.
type Outcome int

const (
	// OutcomeOK is a normal transition.
	OutcomeOK Outcome = iota
	// OutcomeValidation means the input was rejected and the user is asked again.
	OutcomeValidation
	// OutcomePolicy means a business rule refused the action.
	OutcomePolicy
	// OutcomeFailure means a collaborator failed; the user is told to retry later.
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeValidation:
		return "validation"
	case OutcomePolicy:
		return "policy"
	case OutcomeFailure:
		return "failure"
	}
	return "unknown"
}

// Result is what a turn produced.
type Result struct {
	State   domain.State
	Outcome Outcome
	Replies []Reply
	// HasSession is false when the chat never sent /start.
	HasSession bool
}

// Orders is the order service contract used by the machine.
type Orders interface {
	Register(ctx context.Context, chatID domain.ChatID) error
	Place(ctx context.Context, chatID domain.ChatID, sess domain.Session) (domain.Order, error)
	MyOrders(ctx context.Context, chatID domain.ChatID) ([]domain.OrderRecord, error)
	Cancel(ctx context.Context, ref string) (store.Located, error)
}

// Pricer computes a menu total.
type Pricer interface {
	PriceOf(ctx context.Context, cat domain.Category) decimal.Decimal
}

// Machine drives the conversation.
type Machine struct {
	Sessions *Sessions
	Catalog  services.Menus
	Pricing  Pricer
	Orders   Orders
	Policy   services.Policy

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
	// Printer formats prices for display.
	Printer *message.Printer
}

// NewMachine wires a machine with fresh sessions, the wall clock and
// English number formatting.
func NewMachine(menus services.Menus, orders Orders, policy services.Policy) *Machine {
	return &Machine{
		Sessions: NewSessions(),
		Catalog:  menus,
		Pricing:  &services.Pricing{Catalog: menus},
		Orders:   orders,
		Policy:   policy,
		Now:      time.Now,
		Printer:  message.NewPrinter(language.English),
	}
}

// turn is the input to a transition.
type turn struct {
	chatID domain.ChatID
	text   string
	sess   *domain.Session
}

// step is the output of a transition.
type step struct {
	to      domain.State
	outcome Outcome
	replies []Reply
	// reset clears the session after the transition.
	reset bool
}

// anyText matches every input not matched by a labelled transition.
const anyText = ""

type transition struct {
	on    string
	apply func(m *Machine, ctx context.Context, t *turn) step
}

// transitions is the dialogue table. Within a state, labelled entries are
// tried first; the anyText entry catches the rest.
var transitions = map[domain.State][]transition{
	domain.StateMainMenu: {
		{on: LabelMakeOrder, apply: (*Machine).showMenu},
		{on: LabelDeleteOrder, apply: (*Machine).askReference},
		{on: LabelMyOrders, apply: (*Machine).listOrders},
		{on: anyText, apply: (*Machine).mainMenu},
	},
	domain.StateOrderMenu: {
		{on: LabelBack, apply: (*Machine).mainMenu},
		{on: anyText, apply: (*Machine).chooseCategory},
	},
	domain.StateOrderName: {
		{on: LabelBack, apply: (*Machine).showMenu},
		{on: anyText, apply: (*Machine).takeName},
	},
	domain.StateOrderDate: {
		{on: LabelBack, apply: (*Machine).askName},
		{on: anyText, apply: (*Machine).takeDate},
	},
	domain.StateDeleteOrder: {
		{on: LabelBack, apply: (*Machine).mainMenu},
		{on: anyText, apply: (*Machine).cancelOrder},
	},
}

// Handle processes one incoming text for chatID.
func (m *Machine) Handle(ctx context.Context, chatID domain.ChatID, text string) Result {
	sl := m.Sessions.acquire(chatID)
	defer m.Sessions.release(chatID, sl)

	text = strings.TrimSpace(text)

	if isCommand(text, CommandStart) {
		from := domain.StateMainMenu
		if sl.sess != nil {
			from = sl.sess.State
		}
		sl.sess = &domain.Session{}
		sl.sess.Reset()
		if err := m.Orders.Register(ctx, chatID); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("identity not registered at start")
		}
		observability.DialogTransitions.WithLabelValues(from.String(), domain.StateMainMenu.String()).Inc()
		return Result{
			State:      domain.StateMainMenu,
			Outcome:    OutcomeOK,
			Replies:    []Reply{{Text: textWelcome, Keyboard: mainKeyboard}},
			HasSession: true,
		}
	}

	if sl.sess == nil || strings.HasPrefix(text, "/") {
		r := Result{Outcome: OutcomeValidation, Replies: []Reply{{Text: textSendStart}}}
		if sl.sess != nil {
			r.State, r.HasSession = sl.sess.State, true
		}
		return r
	}

	t := &turn{chatID: chatID, text: text, sess: sl.sess}
	from := sl.sess.State
	st := m.dispatch(ctx, t)

	if st.reset {
		sl.sess.Reset()
	}
	sl.sess.State = st.to
	observability.DialogTransitions.WithLabelValues(from.String(), st.to.String()).Inc()

	ev := log.Debug()
	if st.outcome != OutcomeOK {
		ev = log.Info()
	}
	ev.Int64("chat_id", chatID).
		Str("from", from.String()).
		Str("to", st.to.String()).
		Str("outcome", st.outcome.String()).
		Msg("dialog turn")

	return Result{State: st.to, Outcome: st.outcome, Replies: st.replies, HasSession: true}
}

func (m *Machine) dispatch(ctx context.Context, t *turn) step {
	table := transitions[t.sess.State]
	for _, tr := range table {
		if tr.on != anyText && tr.on == t.text {
			return tr.apply(m, ctx, t)
		}
	}
	for _, tr := range table {
		if tr.on == anyText {
			return tr.apply(m, ctx, t)
		}
	}
	// Unknown state: recover to the main menu.
	return m.mainMenu(ctx, t)
}

// --- transitions ---

func (m *Machine) mainMenu(_ context.Context, _ *turn) step {
	return step{
		to:      domain.StateMainMenu,
		replies: []Reply{{Text: textChooseAction, Keyboard: mainKeyboard}},
		reset:   true,
	}
}

func (m *Machine) showMenu(ctx context.Context, t *turn) step {
	var replies []Reply
	if !m.Catalog.Refresh(ctx) {
		log.Warn().Int64("chat_id", t.chatID).Msg("showing stale menu")
		replies = append(replies, Reply{Text: textStaleMenu})
	}
	replies = append(replies, Reply{
		Text:     renderMenus(m.printer(), m.Catalog.Items),
		Keyboard: categoryKeyboard(),
	})
	return step{to: domain.StateOrderMenu, replies: replies}
}

func (m *Machine) askReference(_ context.Context, _ *turn) step {
	return step{
		to:      domain.StateDeleteOrder,
		replies: []Reply{{Text: textAskReference, Keyboard: backKeyboard}},
	}
}

func (m *Machine) listOrders(ctx context.Context, t *turn) step {
	recs, err := m.Orders.MyOrders(ctx, t.chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", t.chatID).Str("state", t.sess.State.String()).Msg("my orders failed")
		return step{
			to:      domain.StateMainMenu,
			outcome: OutcomeFailure,
			replies: []Reply{{Text: textOrdersFailed, Keyboard: mainKeyboard}},
			reset:   true,
		}
	}
	text := textNoOrders
	if len(recs) > 0 {
		text = renderOrders(m.printer(), recs)
	}
	return step{to: domain.StateMainMenu, replies: []Reply{{Text: text, Keyboard: mainKeyboard}}}
}

func (m *Machine) chooseCategory(ctx context.Context, t *turn) step {
	cat, ok := domain.ParseCategory(t.text)
	if !ok {
		return step{
			to:      domain.StateOrderMenu,
			outcome: OutcomeValidation,
			replies: []Reply{{Text: textChooseCategory, Keyboard: categoryKeyboard()}},
		}
	}
	t.sess.Category = cat
	t.sess.Price = decimal.NewNullDecimal(m.Pricing.PriceOf(ctx, cat))
	return m.askName(ctx, t)
}

func (m *Machine) askName(_ context.Context, _ *turn) step {
	return step{
		to:      domain.StateOrderName,
		replies: []Reply{{Text: textAskName, Keyboard: backKeyboard}},
	}
}

func (m *Machine) takeName(_ context.Context, t *turn) step {
	if t.text == "" {
		return step{
			to:      domain.StateOrderName,
			outcome: OutcomeValidation,
			replies: []Reply{{Text: textAskName, Keyboard: backKeyboard}},
		}
	}
	t.sess.FullName = t.text
	return step{
		to:      domain.StateOrderDate,
		replies: []Reply{{Text: textAskDate, Keyboard: backKeyboard}},
	}
}

func (m *Machine) takeDate(ctx context.Context, t *turn) step {
	d, err := m.Policy.ValidatePickup(t.text, m.now())
	switch {
	case errors.Is(err, services.ErrMalformedDate):
		return step{
			to:      domain.StateOrderDate,
			outcome: OutcomeValidation,
			replies: []Reply{{Text: textMalformedDate, Keyboard: backKeyboard}},
		}
	case errors.Is(err, services.ErrPastDate):
		return step{
			to:      domain.StateOrderDate,
			outcome: OutcomeValidation,
			replies: []Reply{{Text: textPastDate, Keyboard: backKeyboard}},
		}
	case errors.Is(err, services.ErrCutoffPassed):
		return step{
			to:      domain.StateMainMenu,
			outcome: OutcomePolicy,
			replies: []Reply{{Text: cutoffCreateText(m.Policy.Cutoff), Keyboard: mainKeyboard}},
			reset:   true,
		}
	case err != nil:
		return m.failure(t, err, textSaveFailed)
	}

	t.sess.PickupDate = d
	o, err := m.Orders.Place(ctx, t.chatID, *t.sess)
	if err != nil {
		return m.failure(t, err, textSaveFailed)
	}
	return step{
		to:      domain.StateMainMenu,
		replies: []Reply{{Text: renderConfirmation(m.printer(), o), Keyboard: mainKeyboard}},
		reset:   true,
	}
}

func (m *Machine) cancelOrder(ctx context.Context, t *turn) step {
	loc, err := m.Orders.Cancel(ctx, t.text)
	switch {
	case err == nil:
		return step{
			to:      domain.StateMainMenu,
			replies: []Reply{{Text: "🗑 Order No. " + loc.Record.Reference + " deleted!", Keyboard: mainKeyboard}},
			reset:   true,
		}
	case errors.Is(err, services.ErrOrderNotFound):
		return step{
			to:      domain.StateMainMenu,
			outcome: OutcomeValidation,
			replies: []Reply{{Text: textOrderNotFound, Keyboard: mainKeyboard}},
			reset:   true,
		}
	case errors.Is(err, services.ErrCutoffPassed):
		return step{
			to:      domain.StateMainMenu,
			outcome: OutcomePolicy,
			replies: []Reply{{Text: cutoffCancelText(m.Policy.Cutoff), Keyboard: mainKeyboard}},
			reset:   true,
		}
	}
	return m.failure(t, err, textDeleteFailed)
}

// failure logs a collaborator error and returns to the main menu.
func (m *Machine) failure(t *turn, err error, text string) step {
	log.Error().Err(err).
		Int64("chat_id", t.chatID).
		Str("state", t.sess.State.String()).
		Str("input", t.text).
		Msg("dialog collaborator failure")
	return step{
		to:      domain.StateMainMenu,
		outcome: OutcomeFailure,
		replies: []Reply{{Text: text, Keyboard: mainKeyboard}},
		reset:   true,
	}
}

func (m *Machine) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Machine) printer() *message.Printer {
	if m.Printer == nil {
		return message.NewPrinter(language.English)
	}
	return m.Printer
}

// isCommand matches "/start" and "/start@BotName", with optional arguments.
func isCommand(text, cmd string) bool {
	if !strings.HasPrefix(text, cmd) {
		return false
	}
	rest := text[len(cmd):]
	return rest == "" || rest[0] == '@' || rest[0] == ' '
}

package dialog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/tbourn/go-order-bot/internal/domain"
)

// Keyboard labels. Incoming text is matched against these literally.
const (
	LabelMakeOrder   = "🍽 Make order"
	LabelDeleteOrder = "❌ Delete order"
	LabelMyOrders    = "📋 My orders"
	LabelBack        = "↩️ Back"

	// CommandStart opens or restarts a session.
	CommandStart = "/start"
)

// Reply is one outgoing message. Keyboard rows replace the user's reply
// keyboard; nil leaves it unchanged.
type Reply struct {
	Text     string
	Keyboard [][]string
}

var (
	mainKeyboard = [][]string{{LabelMakeOrder, LabelDeleteOrder}, {LabelMyOrders}}
	backKeyboard = [][]string{{LabelBack}}
)

func categoryKeyboard() [][]string {
	row := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		row[i] = string(c)
	}
	return [][]string{row, {LabelBack}}
}

const pickupNote = "ℹ️ Cutlery and bread can be bought at the pickup point! 🙂"

const (
	textWelcome         = "✨ Welcome to FoodBot! ✨\nChoose an action:"
	textChooseAction    = "Choose an action:"
	textSendStart       = "Send /start to begin."
	textChooseCategory  = "⚠️ Please choose one of the menus below."
	textStaleMenu       = "⚠️ The menu could not be refreshed and may be out of date."
	textAskName         = "👤 Enter your full name:"
	textAskDate         = "📆 Enter the pickup date (DD.MM.YYYY):"
	textMalformedDate   = "⚠️ Invalid format! Enter DD.MM.YYYY"
	textPastDate        = "⚠️ The date cannot be in the past!"
	textSaveFailed      = "⚠️ The order could not be saved! Please try again later."
	textAskReference    = "🔢 Enter the order number to delete (format: ABCD1234):"
	textOrderNotFound   = "⚠️ Order not found! Check the number."
	textDeleteFailed    = "⚠️ The order could not be deleted! Please try again later."
	textNoOrders        = "You have no active orders for today or later."
	textOrdersFailed    = "⚠️ Your orders could not be loaded. Please try again later."
	textOrdersHeading   = "📋 Your active orders:"
	textEmptyMenuSuffix = "(no items)"
)

func cutoffCreateText(cutoff time.Duration) string {
	c := clock(cutoff)
	return fmt.Sprintf("Orders for tomorrow are closed since %s!\nAll orders for the next day must be placed before %s of the current day.", c, c)
}

func cutoffCancelText(cutoff time.Duration) string {
	return fmt.Sprintf("Cancelling tomorrow's orders after %s is not allowed!\nThe order has to be paid for.", clock(cutoff))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// renderMenus lists every category with its items.
func renderMenus(p *message.Printer, items func(domain.Category) []domain.CatalogItem) string {
	blocks := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		var b strings.Builder
		fmt.Fprintf(&b, "🍽️ %s:", c)
		list := items(c)
		if len(list) == 0 {
			b.WriteString("\n" + textEmptyMenuSuffix)
		}
		for _, it := range list {
			fmt.Fprintf(&b, "\n• %s - %s", it.Name, formatPrice(p, it.Price))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func renderConfirmation(p *message.Printer, o domain.Order) string {
	return fmt.Sprintf("✅ Order No. %s saved!\n\n"+
		"👤 Full name: %s\n"+
		"🍽 Menu: %s\n"+
		"💰 Price: %s\n"+
		"📆 Pickup date: %s\n"+
		"🔢 Number to use for cancellation: %s\n\n%s",
		o.Reference, o.FullName, o.Category, formatPrice(p, o.Price),
		o.PickupDate.Format(domain.DateLayout), o.Reference, pickupNote)
}

func renderOrders(p *message.Printer, recs []domain.OrderRecord) string {
	var b strings.Builder
	b.WriteString(textOrdersHeading)
	for _, r := range recs {
		fmt.Fprintf(&b, "\n\n👤 Full name: %s\n📅 Date: %s\n🍽 Menu: %s\n💰 Price: %s\n🔢 Number: %s\n%s",
			r.FullName, r.PickupDate, r.Category, formatStoredPrice(p, r.Price), r.Reference, pickupNote)
	}
	return b.String()
}

// formatPrice renders d with two decimals and no digit grouping, the same
// form the order tables store.
func formatPrice(p *message.Printer, d decimal.Decimal) string {
	return p.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2), number.NoSeparator()))
}

// formatStoredPrice renders a price cell; cells that are not numbers are
// shown as stored.
func formatStoredPrice(p *message.Printer, cell string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(cell))
	if err != nil {
		return cell
	}
	return formatPrice(p, d)
}

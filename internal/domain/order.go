package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Date and time layouts used in stored rows and user input.
const (
	// DateLayout is the canonical stored form of a calendar date (dd.mm.yyyy).
	DateLayout = "02.01.2006"
	// InputDateLayout accepts one- or two-digit day and month.
	InputDateLayout = "2.1.2006"
	// TimeLayout is the stored form of the creation time of day.
	TimeLayout = "15:04:05"
)

// Category is one of the three fixed menus a user can order from. The value
// is the keyboard label shown to the user and stored in the order row.
type Category string

const (
	CategoryMenu1 Category = "Menu 1"
	CategoryMenu2 Category = "Menu 2"
	CategoryMenu3 Category = "Menu 3"
)

// Categories lists the menus in display and scan order.
var Categories = []Category{CategoryMenu1, CategoryMenu2, CategoryMenu3}

// ParseCategory maps a keyboard label to its Category.
func ParseCategory(label string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == label {
			return c, true
		}
	}
	return "", false
}

// Index returns the zero-based position of c in Categories, or -1.
func (c Category) Index() int {
	for i, cc := range Categories {
		if cc == c {
			return i
		}
	}
	return -1
}

// OrdersTable returns the title of the worksheet holding orders for c.
func (c Category) OrdersTable() string {
	switch c {
	case CategoryMenu1:
		return "Orders Menu1"
	case CategoryMenu2:
		return "Orders Menu2"
	case CategoryMenu3:
		return "Orders Menu3"
	}
	return ""
}

// CatalogItem is a single (name, price) entry of a menu.
type CatalogItem struct {
	Name  string
	Price decimal.Decimal
}

// ChatID is the opaque identity of a Telegram chat.
type ChatID = int64

// Order is a committed order as it is written to the store.
//
// Fields:
//   - Reference: 4 uppercase letters + 4 digits, used for cancellation.
//   - CreatedAt: server-local commit timestamp, split into date and time cells.
//   - FullName: free text as entered.
//   - OwnerID: chat that placed the order.
//   - Category: menu the order belongs to.
//   - PickupDate: calendar date of pickup.
//   - Price: total frozen at menu selection time.
type Order struct {
	Reference  string
	CreatedAt  time.Time
	FullName   string
	OwnerID    ChatID
	Category   Category
	PickupDate time.Time
	Price      decimal.Decimal
}

// OrderRecord is an order row as read back from a category table. Cells are
// kept as text because the tables may be edited by hand.
type OrderRecord struct {
	Reference   string
	CreatedDate string
	CreatedTime string
	FullName    string
	OwnerID     string
	Category    string
	PickupDate  string
	Price       string
}

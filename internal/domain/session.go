package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is a node of the ordering dialogue.
type State int

const (
	StateMainMenu State = iota
	StateOrderMenu
	StateOrderName
	StateOrderDate
	StateDeleteOrder
)

// String returns the upper-case state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateMainMenu:
		return "MAIN_MENU"
	case StateOrderMenu:
		return "ORDER_MENU"
	case StateOrderName:
		return "ORDER_NAME"
	case StateOrderDate:
		return "ORDER_DATE"
	case StateDeleteOrder:
		return "DELETE_ORDER"
	}
	return "UNKNOWN"
}

// Session is the per-chat state accumulated across dialogue turns. Fields
// are filled strictly in dialogue order: Category and Price on menu choice,
// FullName on the name step, PickupDate after date validation.
type Session struct {
	State      State
	Category   Category
	Price      decimal.NullDecimal
	FullName   string
	PickupDate time.Time
}

// Reset clears every field and returns the session to the main menu.
func (s *Session) Reset() {
	*s = Session{State: StateMainMenu}
}

// Complete reports whether all fields required to commit an order are set.
func (s *Session) Complete() bool {
	return s.Category != "" && s.Price.Valid && s.FullName != "" && !s.PickupDate.IsZero()
}

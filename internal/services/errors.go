// Package services defines the ordering business logic: pricing, order
// references, the pickup date policy, order placement and cancellation, and
// the weekday broadcast. This file centralizes the service-level error
// values so callers can branch with errors.Is.
//
// Translation into user-facing replies is performed by the dialog layer.
package services

import (
	"errors"

	"github.com/tbourn/go-order-bot/internal/store"
)

// Date policy errors.
var (
	// ErrMalformedDate is returned when a pickup date is not day.month.year.
	ErrMalformedDate = errors.New("malformed date")

	// ErrPastDate is returned when a pickup date is before today.
	ErrPastDate = errors.New("date is in the past")

	// ErrCutoffPassed is returned when the pickup date is tomorrow and the
	// local time of day is at or after the cutoff. It applies to placing and
	// to cancelling an order.
	ErrCutoffPassed = errors.New("next-day cutoff passed")
)

// Order errors.
var (
	// ErrIncompleteSession is returned by Place when any of the four session
	// fields needed for an order is missing.
	ErrIncompleteSession = errors.New("session incomplete")

	// ErrOrderNotFound is returned when no order carries the reference.
	ErrOrderNotFound = store.ErrOrderNotFound

	// ErrUnknownCategory is returned for a label that is not a menu category.
	ErrUnknownCategory = store.ErrUnknownCategory
)

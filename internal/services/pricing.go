package services

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-order-bot/internal/domain"
)

// Menus is the catalog contract used for pricing and menu display.
type Menus interface {
	Refresh(ctx context.Context) bool
	Items(cat domain.Category) []domain.CatalogItem
}

// Pricing computes menu totals from the live catalog.
type Pricing struct {
	Catalog Menus
}

// PriceOf refreshes the catalog and returns the sum of every item listed
// for cat. A failed refresh falls back to the last loaded list; an empty
// list yields zero.
func (p *Pricing) PriceOf(ctx context.Context, cat domain.Category) decimal.Decimal {
	p.Catalog.Refresh(ctx)
	return Total(p.Catalog.Items(cat))
}

// Total sums item prices.
func Total(items []domain.CatalogItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price)
	}
	return sum
}

const (
	refLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	refDigits  = "0123456789"
)

// NewReference returns four uniform random uppercase letters followed by
// four uniform random digits. Uniqueness is not checked.
func NewReference() string {
	return newReference(rand.IntN)
}

func newReference(intn func(n int) int) string {
	var b strings.Builder
	b.Grow(8)
	for i := 0; i < 4; i++ {
		b.WriteByte(refLetters[intn(len(refLetters))])
	}
	for i := 0; i < 4; i++ {
		b.WriteByte(refDigits[intn(len(refDigits))])
	}
	return b.String()
}

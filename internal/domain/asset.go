package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset represents a tracked financial holding in the domain layer
// Each asset carries exactly one active valuation strategy and its investment history
type Asset struct {
	ID          uuid.UUID
	Name        string
	Strategy    *ValuationStrategy // nil means the asset was stored without a strategy
	Investments []Investment
	CreatedAt   time.Time
}

// Investment represents a single purchase of units of an asset
// Investments are append-only from the valuation point of view
type Investment struct {
	ID           uuid.UUID
	AssetID      uuid.UUID
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Date         time.Time
}

// Validate ensures the asset adheres to domain rules
func (a *Asset) Validate() error {
	if a.Name == "" {
		return errors.New("asset name cannot be empty")
	}
	if a.Strategy == nil {
		return ErrStrategyMissing
	}
	return a.Strategy.Validate()
}

// Validate ensures the investment adheres to domain rules
func (i *Investment) Validate() error {
	if i.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.New("investment quantity must be positive")
	}
	if i.PricePerUnit.LessThan(decimal.Zero) {
		return errors.New("investment price per unit must not be negative")
	}
	if i.Date.IsZero() {
		return errors.New("investment date is required")
	}
	return nil
}

// Principal returns quantity * price per unit
func (i Investment) Principal() decimal.Decimal {
	return i.Quantity.Mul(i.PricePerUnit)
}

// TotalQuantity returns the number of units held across all investments
func (a *Asset) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range a.Investments {
		total = total.Add(inv.Quantity)
	}
	return total
}

// TotalInvested returns the sum of all investment principals
func (a *Asset) TotalInvested() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range a.Investments {
		total = total.Add(inv.Principal())
	}
	return total
}

// EarliestInvestmentDate returns the date of the oldest investment.
// The second return value is false when the asset has no investments.
func (a *Asset) EarliestInvestmentDate() (time.Time, bool) {
	if len(a.Investments) == 0 {
		return time.Time{}, false
	}
	earliest := a.Investments[0].Date
	for _, inv := range a.Investments[1:] {
		if inv.Date.Before(earliest) {
			earliest = inv.Date
		}
	}
	return earliest, true
}

package allocator

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Allocation is the share of a contribution that goes to one asset
type Allocation struct {
	AssetID uuid.UUID
	Amount  decimal.Decimal
}

// Split divides amount across the plan items.
// FIXED items are taken first, PERCENT items are computed on what is left after
// the fixed ones and rounded to cents, and the single REMAINDER item receives
// the rest so the shares always sum to amount exactly.
// Allocations are returned in priority order, one per target asset.
func Split(amount decimal.Decimal, items []domain.ContributionItem) ([]Allocation, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("contribution amount must be positive")
	}
	if len(items) == 0 {
		return nil, errors.New("contribution has no items")
	}

	ordered := make([]domain.ContributionItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var remainder *domain.ContributionItem
	for i := range ordered {
		if ordered[i].Type != domain.ContributionItemTypeRemainder {
			continue
		}
		if remainder != nil {
			return nil, errors.New("contribution has more than one REMAINDER item")
		}
		remainder = &ordered[i]
	}
	if remainder == nil {
		return nil, errors.New("contribution has no REMAINDER item")
	}

	shares := make(map[uuid.UUID]decimal.Decimal, len(ordered))
	left := amount

	for _, item := range ordered {
		if item.Type != domain.ContributionItemTypeFixed {
			continue
		}
		if item.Value.GreaterThan(left) {
			return nil, errors.New("FIXED items exceed the contribution amount")
		}
		shares[item.TargetAssetID] = shares[item.TargetAssetID].Add(item.Value)
		left = left.Sub(item.Value)
	}

	base := left
	for _, item := range ordered {
		if item.Type != domain.ContributionItemTypePercent {
			continue
		}
		share := base.Mul(item.Value).Div(hundred).RoundBank(2)
		if share.GreaterThan(left) {
			return nil, errors.New("PERCENT items exceed the contribution amount")
		}
		shares[item.TargetAssetID] = shares[item.TargetAssetID].Add(share)
		left = left.Sub(share)
	}

	shares[remainder.TargetAssetID] = shares[remainder.TargetAssetID].Add(left)

	allocations := make([]Allocation, 0, len(shares))
	seen := make(map[uuid.UUID]bool, len(shares))
	total := decimal.Zero
	for _, item := range ordered {
		if seen[item.TargetAssetID] {
			continue
		}
		seen[item.TargetAssetID] = true
		allocations = append(allocations, Allocation{AssetID: item.TargetAssetID, Amount: shares[item.TargetAssetID]})
		total = total.Add(shares[item.TargetAssetID])
	}

	if !total.Equal(amount) {
		return nil, errors.New("allocation does not add up to the contribution amount")
	}
	return allocations, nil
}

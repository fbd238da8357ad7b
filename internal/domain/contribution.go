package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContributionFrequency represents how often a recurring plan runs
type ContributionFrequency string

const (
	FrequencyWeekly    ContributionFrequency = "WEEKLY"
	FrequencyMonthly   ContributionFrequency = "MONTHLY"
	FrequencyQuarterly ContributionFrequency = "QUARTERLY"
	FrequencyYearly    ContributionFrequency = "YEARLY"
)

// ContributionItemType represents how a plan item takes its share of the amount
type ContributionItemType string

const (
	ContributionItemTypeFixed     ContributionItemType = "FIXED"
	ContributionItemTypePercent   ContributionItemType = "PERCENT"
	ContributionItemTypeRemainder ContributionItemType = "REMAINDER"
)

// ContributionPlan represents a recurring contribution split across one or more assets
type ContributionPlan struct {
	ID        uuid.UUID
	Name      string
	Amount    decimal.Decimal
	Frequency ContributionFrequency
	StartDate time.Time // Anchor for every occurrence
	NextRun   time.Time
	Active    bool
	Items     []ContributionItem
}

// ContributionItem represents a single target of a contribution plan
type ContributionItem struct {
	ID            uuid.UUID
	PlanID        uuid.UUID
	TargetAssetID uuid.UUID
	Type          ContributionItemType // 'FIXED', 'PERCENT' (of Remainder), or 'REMAINDER' (Catch-all)
	Value         decimal.Decimal      // Amount for FIXED, percentage (0-100) for PERCENT, ignored for REMAINDER
	Priority      int                  // Lower number = Executed first (Important for Fixed logic)
}

// Validate ensures the plan adheres to domain rules
// CRITICAL: Ensures exactly one item is type 'REMAINDER'
func (p *ContributionPlan) Validate() error {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("contribution amount must be positive")
	}

	switch p.Frequency {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
	default:
		return errors.New("contribution frequency must be WEEKLY, MONTHLY, QUARTERLY, or YEARLY")
	}

	if p.StartDate.IsZero() {
		return errors.New("contribution plan must have a start date")
	}

	if len(p.Items) == 0 {
		return errors.New("contribution plan must have at least one item")
	}

	remainderCount := 0
	for _, item := range p.Items {
		switch item.Type {
		case ContributionItemTypeRemainder:
			remainderCount++
		case ContributionItemTypeFixed:
			if item.Value.LessThanOrEqual(decimal.Zero) {
				return errors.New("FIXED contribution item value must be positive")
			}
		case ContributionItemTypePercent:
			if item.Value.LessThan(decimal.Zero) || item.Value.GreaterThan(decimal.NewFromInt(100)) {
				return errors.New("PERCENT contribution item value must be between 0 and 100")
			}
		default:
			return errors.New("contribution item type must be FIXED, PERCENT, or REMAINDER")
		}
	}

	if remainderCount != 1 {
		return errors.New("contribution plan must have exactly one REMAINDER item")
	}

	return nil
}

// Occurrence returns the n-th scheduled run of the plan (n = 0 is StartDate).
// Month-based frequencies keep the StartDate day of month, clamped to the last
// day of shorter months, so a plan started on Jan 31 runs on Feb 28/29 and Mar 31.
func (p *ContributionPlan) Occurrence(n int) time.Time {
	switch p.Frequency {
	case FrequencyWeekly:
		return p.StartDate.AddDate(0, 0, 7*n)
	case FrequencyQuarterly:
		return addMonthsClamped(p.StartDate, 3*n)
	case FrequencyYearly:
		return addMonthsClamped(p.StartDate, 12*n)
	default:
		return addMonthsClamped(p.StartDate, n)
	}
}

// NextOccurrenceAfter returns the first occurrence strictly after t
func (p *ContributionPlan) NextOccurrenceAfter(t time.Time) time.Time {
	if p.StartDate.After(t) {
		return p.StartDate
	}

	var n int
	switch p.Frequency {
	case FrequencyWeekly:
		n = int(t.Sub(p.StartDate)/(7*24*time.Hour)) - 1
	default:
		n = monthsBetween(p.StartDate, t)/p.monthsPerPeriod() - 1
	}
	if n < 0 {
		n = 0
	}

	for !p.Occurrence(n).After(t) {
		n++
	}
	return p.Occurrence(n)
}

func (p *ContributionPlan) monthsPerPeriod() int {
	switch p.Frequency {
	case FrequencyQuarterly:
		return 3
	case FrequencyYearly:
		return 12
	default:
		return 1
	}
}

// addMonthsClamped adds months to t keeping the day of month when possible
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

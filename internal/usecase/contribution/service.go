package contribution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/allocator"
)

// Units bought by a contribution are kept to this many decimal places
const quantityPlaces = 8

// UnitPricer prices one unit of an asset
type UnitPricer interface {
	UnitPrice(ctx context.Context, asset *domain.Asset) (float64, error)
}

// RunReport summarizes a RunDue pass
type RunReport struct {
	Plans       int
	Occurrences int
	Investments int
	Failed      []uuid.UUID
}

// ContributionService executes recurring contribution plans
type ContributionService struct {
	PlanRepo  domain.ContributionPlanRepository
	AssetRepo domain.AssetRepository
	Pricer    UnitPricer
	Log       zerolog.Logger
}

// NewContributionService creates a new ContributionService instance
func NewContributionService(planRepo domain.ContributionPlanRepository, assetRepo domain.AssetRepository, pricer UnitPricer, log zerolog.Logger) *ContributionService {
	return &ContributionService{
		PlanRepo:  planRepo,
		AssetRepo: assetRepo,
		Pricer:    pricer,
		Log:       log.With().Str("component", "contribution").Logger(),
	}
}

// CreatePlan validates and stores a new plan. The first run is the start date.
func (s *ContributionService) CreatePlan(ctx context.Context, plan *domain.ContributionPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	for i := range plan.Items {
		if plan.Items[i].ID == uuid.Nil {
			plan.Items[i].ID = uuid.New()
		}
		plan.Items[i].PlanID = plan.ID
	}
	if plan.NextRun.IsZero() {
		plan.NextRun = plan.StartDate
	}

	if err := s.PlanRepo.Create(ctx, plan); err != nil {
		return fmt.Errorf("failed to create contribution plan: %w", err)
	}
	return nil
}

// RunDue executes every active plan whose next run is at or before asOf.
// Each missed occurrence is executed once, dated on its own scheduled day.
// A failing plan stops at the failed occurrence and is retried on the next pass.
func (s *ContributionService) RunDue(ctx context.Context, asOf time.Time) (*RunReport, error) {
	plans, err := s.PlanRepo.ListDue(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due plans: %w", err)
	}

	report := &RunReport{}
	for _, plan := range plans {
		if !plan.Active {
			continue
		}
		report.Plans++

		occurrences, investments, err := s.runPlan(ctx, plan, asOf)
		report.Occurrences += occurrences
		report.Investments += investments
		if err != nil {
			s.Log.Error().
				Err(err).
				Str("plan_id", plan.ID.String()).
				Str("plan", plan.Name).
				Msg("contribution plan failed")
			report.Failed = append(report.Failed, plan.ID)
		}
	}

	return report, nil
}

func (s *ContributionService) runPlan(ctx context.Context, plan *domain.ContributionPlan, asOf time.Time) (int, int, error) {
	occurrences, investments := 0, 0

	for run := plan.NextRun; !run.After(asOf); {
		if err := ctx.Err(); err != nil {
			return occurrences, investments, err
		}

		pending, err := s.prepare(ctx, plan, run)
		if err != nil {
			return occurrences, investments, fmt.Errorf("occurrence %s: %w", run.Format(time.DateOnly), err)
		}

		next := plan.NextOccurrenceAfter(run)
		if err := s.PlanRepo.RecordOccurrence(ctx, plan.ID, pending, next); err != nil {
			return occurrences, investments, fmt.Errorf("occurrence %s: failed to record: %w", run.Format(time.DateOnly), err)
		}
		added := len(pending)

		s.Log.Info().
			Str("plan_id", plan.ID.String()).
			Time("occurrence", run).
			Time("next_run", next).
			Int("investments", added).
			Msg("contribution executed")

		plan.NextRun = next
		run = next
		occurrences++
		investments += added
	}

	return occurrences, investments, nil
}

// prepare prices every target and builds the occurrence's investments without writing anything
func (s *ContributionService) prepare(ctx context.Context, plan *domain.ContributionPlan, date time.Time) ([]*domain.Investment, error) {
	allocations, err := allocator.Split(plan.Amount, plan.Items)
	if err != nil {
		return nil, err
	}

	pending := make([]*domain.Investment, 0, len(allocations))
	for _, allocation := range allocations {
		if allocation.Amount.IsZero() {
			continue
		}

		asset, err := s.AssetRepo.GetByID(ctx, allocation.AssetID)
		if err != nil {
			return nil, err
		}
		price, err := s.Pricer.UnitPrice(ctx, asset)
		if err != nil {
			return nil, err
		}
		if price <= 0 {
			return nil, fmt.Errorf("asset %s has no positive unit price", asset.ID)
		}

		unitPrice := decimal.NewFromFloat(price)
		pending = append(pending, &domain.Investment{
			ID:           uuid.New(),
			AssetID:      asset.ID,
			Quantity:     allocation.Amount.DivRound(unitPrice, quantityPlaces),
			PricePerUnit: unitPrice,
			Date:         date,
		})
	}

	return pending, nil
}

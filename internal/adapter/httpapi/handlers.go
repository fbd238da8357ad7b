package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

// Script bodies posted to the cache and dry-run endpoints are capped at this size
const maxScriptBytes = 1 << 20

// ============================================================================
// Helper Functions
// ============================================================================

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps a service error onto an HTTP status
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAssetNotFound), errors.Is(err, domain.ErrPlanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStrategyMissing),
		errors.Is(err, domain.ErrStrategyMismatch),
		errors.Is(err, domain.ErrMissingEntryPoint),
		errors.Is(err, domain.ErrInvalidReturnType),
		errors.Is(err, domain.ErrScriptExecution):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrTTLOutOfRange), isValidationError(err):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// isValidationError recognizes the plain validation errors returned by domain Validate methods
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "must be") ||
		strings.Contains(msg, "must not") ||
		strings.Contains(msg, "cannot be") ||
		strings.Contains(msg, "is required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must reference") ||
		strings.Contains(msg, "must have")
}

// decodeJSON decodes JSON from request body
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// readScript reads a raw script body
func readScript(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScriptBytes+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxScriptBytes {
		return "", fmt.Errorf("script exceeds %d bytes", maxScriptBytes)
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", errors.New("script source must not be empty")
	}
	return string(body), nil
}

func assetID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid asset id: %w", err)
	}
	return id, nil
}

// parseTime accepts RFC3339 or a plain date
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want RFC3339 or YYYY-MM-DD", value)
	}
	return t, nil
}

// ============================================================================
// Request/Response Models
// ============================================================================

// StrategyRequest describes a valuation strategy. Only the fields of Kind are read.
type StrategyRequest struct {
	Kind         string   `json:"kind"`
	GrowthRate   *float64 `json:"growth_rate,omitempty"`
	ScriptSource string   `json:"script_source,omitempty"`
	ManualValue  *float64 `json:"manual_value,omitempty"`
}

func (req StrategyRequest) toDomain(now time.Time) (domain.ValuationStrategy, error) {
	switch domain.StrategyKind(strings.ToUpper(req.Kind)) {
	case domain.StrategyKindFixed:
		if req.GrowthRate == nil {
			return domain.ValuationStrategy{}, errors.New("invalid strategy: growth_rate is required for FIXED")
		}
		return *domain.NewFixedStrategy(*req.GrowthRate), nil
	case domain.StrategyKindDynamic:
		return *domain.NewDynamicStrategy(req.ScriptSource), nil
	case domain.StrategyKindManual:
		value := 0.0
		if req.ManualValue != nil {
			value = *req.ManualValue
		}
		return *domain.NewManualStrategy(value, now), nil
	}
	return domain.ValuationStrategy{}, fmt.Errorf("invalid strategy kind %q", req.Kind)
}

// CreateAssetRequest represents request to create a new asset
type CreateAssetRequest struct {
	Name     string          `json:"name"`
	Strategy StrategyRequest `json:"strategy"`
}

// AssetResponse represents a created asset
type AssetResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Strategy  string    `json:"strategy"`
	CreatedAt time.Time `json:"created_at"`
}

// AddInvestmentRequest represents a purchase of units
type AddInvestmentRequest struct {
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Date         string          `json:"date,omitempty"`
}

// InvestmentResponse represents a recorded investment
type InvestmentResponse struct {
	ID           string          `json:"id"`
	AssetID      string          `json:"asset_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Date         time.Time       `json:"date"`
}

// ManualValueRequest sets the value of a manually valued asset
type ManualValueRequest struct {
	Value *float64 `json:"value"`
}

// ValueResponse carries a single number about an asset
type ValueResponse struct {
	AssetID string  `json:"asset_id,omitempty"`
	Value   float64 `json:"value"`
}

// NetWorthResponse mirrors dashboard.NetWorthResult
type NetWorthResponse struct {
	Total    decimal.Decimal `json:"total_net_worth"`
	Invested decimal.Decimal `json:"invested"`
	Fixed    decimal.Decimal `json:"fixed"`
	Dynamic  decimal.Decimal `json:"dynamic"`
	Manual   decimal.Decimal `json:"manual"`
	Skipped  []string        `json:"skipped"`
}

// ContributionItemRequest is one target of a contribution plan
type ContributionItemRequest struct {
	TargetAssetID uuid.UUID       `json:"target_asset_id"`
	Type          string          `json:"type"`
	Value         decimal.Decimal `json:"value"`
	Priority      int             `json:"priority"`
}

// CreatePlanRequest represents request to create a recurring contribution plan
type CreatePlanRequest struct {
	Name      string                    `json:"name"`
	Amount    decimal.Decimal           `json:"amount"`
	Frequency string                    `json:"frequency"`
	StartDate string                    `json:"start_date"`
	Items     []ContributionItemRequest `json:"items"`
}

// PlanResponse represents a stored plan
type PlanResponse struct {
	ID      string    `json:"id"`
	NextRun time.Time `json:"next_run"`
}

// RunReportResponse mirrors contribution.RunReport
type RunReportResponse struct {
	Plans       int      `json:"plans"`
	Occurrences int      `json:"occurrences"`
	Investments int      `json:"investments"`
	Failed      []string `json:"failed"`
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAssetValue handles GET /api/assets/{id}/value?bypass=true&ttl=30s
func (s *Server) handleAssetValue(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts []valuation.Option
	query := r.URL.Query()
	if query.Get("bypass") == "true" {
		opts = append(opts, valuation.WithBypassCache())
	}
	if raw := query.Get("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			respondError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		opts = append(opts, valuation.WithTTL(ttl))
	}

	value, err := s.valuation.CurrentValue(r.Context(), id, opts...)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ValueResponse{AssetID: id.String(), Value: value})
}

// handleAssetGrowth handles GET /api/assets/{id}/growth
func (s *Server) handleAssetGrowth(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rate, err := s.valuation.GrowthRate(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ValueResponse{AssetID: id.String(), Value: rate})
}

// handleAssetProfit handles GET /api/assets/{id}/profit
func (s *Server) handleAssetProfit(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	profit, err := s.investment.CalculateProfit(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id": id.String(),
		"profit":   profit,
	})
}

// handleCreateAsset handles POST /api/assets
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	strategy, err := req.Strategy.toDomain(s.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := s.investment.CreateAsset(r.Context(), req.Name, strategy)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, AssetResponse{
		ID:        asset.ID.String(),
		Name:      asset.Name,
		Strategy:  string(asset.Strategy.Kind),
		CreatedAt: asset.CreatedAt,
	})
}

// handleAddInvestment handles POST /api/assets/{id}/investments
func (s *Server) handleAddInvestment(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AddInvestmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var date time.Time
	if req.Date != "" {
		if date, err = parseTime(req.Date); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	inv, err := s.investment.AddInvestment(r.Context(), id, req.Quantity, req.PricePerUnit, date)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, InvestmentResponse{
		ID:           inv.ID.String(),
		AssetID:      inv.AssetID.String(),
		Quantity:     inv.Quantity,
		PricePerUnit: inv.PricePerUnit,
		Date:         inv.Date,
	})
}

// handleChangeStrategy handles PUT /api/assets/{id}/strategy
func (s *Server) handleChangeStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req StrategyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	strategy, err := req.toDomain(s.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.investment.ChangeStrategy(r.Context(), id, strategy); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetManualValue handles PUT /api/assets/{id}/manual-value
func (s *Server) handleSetManualValue(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ManualValueRequest
	if err := decodeJSON(r, &req); err != nil || req.Value == nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.investment.SetManualValue(r.Context(), id, *req.Value); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleNetWorth handles GET /api/net-worth
func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	result, err := s.dashboard.GetNetWorth(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	skipped := make([]string, 0, len(result.Skipped))
	for _, id := range result.Skipped {
		skipped = append(skipped, id.String())
	}

	respondJSON(w, http.StatusOK, NetWorthResponse{
		Total:    result.Total,
		Invested: result.Invested,
		Fixed:    result.Fixed,
		Dynamic:  result.Dynamic,
		Manual:   result.Manual,
		Skipped:  skipped,
	})
}

// handleCreatePlan handles POST /api/contribution-plans
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := s.now()
	if req.StartDate != "" {
		var err error
		if start, err = parseTime(req.StartDate); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	plan := &domain.ContributionPlan{
		Name:      strings.TrimSpace(req.Name),
		Amount:    req.Amount,
		Frequency: domain.ContributionFrequency(strings.ToUpper(req.Frequency)),
		StartDate: start,
		Active:    true,
	}
	for _, item := range req.Items {
		plan.Items = append(plan.Items, domain.ContributionItem{
			TargetAssetID: item.TargetAssetID,
			Type:          domain.ContributionItemType(strings.ToUpper(item.Type)),
			Value:         item.Value,
			Priority:      item.Priority,
		})
	}

	if err := s.contribution.CreatePlan(r.Context(), plan); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlanResponse{ID: plan.ID.String(), NextRun: plan.NextRun})
}

// handleRunPlans handles POST /api/contribution-plans/run[?as_of=]
func (s *Server) handleRunPlans(w http.ResponseWriter, r *http.Request) {
	asOf := s.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		var err error
		if asOf, err = parseTime(raw); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	report, err := s.contribution.RunDue(r.Context(), asOf)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	failed := make([]string, 0, len(report.Failed))
	for _, id := range report.Failed {
		failed = append(failed, id.String())
	}

	respondJSON(w, http.StatusOK, RunReportResponse{
		Plans:       report.Plans,
		Occurrences: report.Occurrences,
		Investments: report.Investments,
		Failed:      failed,
	})
}

// handleClearScriptCache handles DELETE /api/script-cache
func (s *Server) handleClearScriptCache(w http.ResponseWriter, r *http.Request) {
	s.valuation.ClearScriptCache()
	w.WriteHeader(http.StatusNoContent)
}

// handleInvalidateScriptCache handles POST /api/script-cache/invalidate; the body is the script source
func (s *Server) handleInvalidateScriptCache(w http.ResponseWriter, r *http.Request) {
	source, err := readScript(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.valuation.InvalidateScriptCache(source)
	w.WriteHeader(http.StatusNoContent)
}

// handleRunScript handles POST /api/scripts/run; the body is the script source
func (s *Server) handleRunScript(w http.ResponseWriter, r *http.Request) {
	source, err := readScript(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	value, err := s.valuation.RunScript(r.Context(), source)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ValueResponse{Value: value})
}

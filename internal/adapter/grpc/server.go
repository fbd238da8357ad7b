package grpc

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/dashboard"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

// maxTTLSeconds keeps ttl_seconds well inside time.Duration's range
const maxTTLSeconds = 366 * 24 * 60 * 60

// Server implements the ValuationService gRPC server
type Server struct {
	ValuationService *valuation.ValuationService
	DashboardService *dashboard.DashboardService
}

var _ ValuationServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(valuationService *valuation.ValuationService, dashboardService *dashboard.DashboardService) *Server {
	return &Server{
		ValuationService: valuationService,
		DashboardService: dashboardService,
	}
}

// GetCurrentValue handles the GetCurrentValue RPC
func (s *Server) GetCurrentValue(ctx context.Context, req *structpb.Struct) (*wrapperspb.DoubleValue, error) {
	fields := req.GetFields()

	// Parse asset ID
	assetID, err := uuid.Parse(fields["asset_id"].GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid asset_id format: %v", err)
	}

	var opts []valuation.Option
	if fields["bypass_cache"].GetBoolValue() {
		opts = append(opts, valuation.WithBypassCache())
	}
	if ttl, ok := fields["ttl_seconds"]; ok {
		seconds := ttl.GetNumberValue()
		if seconds <= 0 || math.IsNaN(seconds) {
			return nil, status.Errorf(codes.InvalidArgument, "ttl_seconds must be positive")
		}
		if seconds > maxTTLSeconds {
			return nil, status.Errorf(codes.InvalidArgument, "ttl_seconds must not exceed %d", maxTTLSeconds)
		}
		opts = append(opts, valuation.WithTTL(time.Duration(seconds*float64(time.Second))))
	}

	value, err := s.ValuationService.CurrentValue(ctx, assetID, opts...)
	if err != nil {
		return nil, mapError(err)
	}

	return wrapperspb.Double(value), nil
}

// GetGrowthRate handles the GetGrowthRate RPC
func (s *Server) GetGrowthRate(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error) {
	assetID, err := uuid.Parse(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid asset_id format: %v", err)
	}

	rate, err := s.ValuationService.GrowthRate(ctx, assetID)
	if err != nil {
		return nil, mapError(err)
	}

	return wrapperspb.Double(rate), nil
}

// InvalidateScriptCache handles the InvalidateScriptCache RPC
func (s *Server) InvalidateScriptCache(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Errorf(codes.InvalidArgument, "script source must not be empty")
	}

	s.ValuationService.InvalidateScriptCache(req.GetValue())
	return &emptypb.Empty{}, nil
}

// ClearScriptCache handles the ClearScriptCache RPC
func (s *Server) ClearScriptCache(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	s.ValuationService.ClearScriptCache()
	return &emptypb.Empty{}, nil
}

// RunScript handles the RunScript RPC
func (s *Server) RunScript(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error) {
	value, err := s.ValuationService.RunScript(ctx, req.GetValue())
	if err != nil {
		return nil, mapError(err)
	}

	return wrapperspb.Double(value), nil
}

// GetNetWorth handles the GetNetWorth RPC
func (s *Server) GetNetWorth(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	// Call dashboard service
	result, err := s.DashboardService.GetNetWorth(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	skipped := make([]interface{}, 0, len(result.Skipped))
	for _, id := range result.Skipped {
		skipped = append(skipped, id.String())
	}

	// Amounts travel as decimal strings
	out, err := structpb.NewStruct(map[string]interface{}{
		"total_net_worth": result.Total.String(),
		"invested":        result.Invested.String(),
		"fixed":           result.Fixed.String(),
		"dynamic":         result.Dynamic.String(),
		"manual":          result.Manual.String(),
		"skipped":         skipped,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode net worth: %v", err)
	}

	return out, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	errorMsg := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	case errors.Is(err, domain.ErrAssetNotFound), errors.Is(err, domain.ErrPlanNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	case errors.Is(err, domain.ErrStrategyMissing), errors.Is(err, domain.ErrStrategyMismatch):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)
	case errors.Is(err, domain.ErrMissingEntryPoint),
		errors.Is(err, domain.ErrInvalidReturnType),
		errors.Is(err, domain.ErrScriptExecution),
		errors.Is(err, domain.ErrTTLOutOfRange):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	}

	// Map common validation errors to InvalidArgument
	if strings.Contains(errorMsg, "must be positive") ||
		strings.Contains(errorMsg, "invalid") ||
		strings.Contains(errorMsg, "must reference") ||
		strings.Contains(errorMsg, "must have") {
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	}

	// Map "not found" errors to NotFound
	if strings.Contains(errorMsg, "not found") {
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}

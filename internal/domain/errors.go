package domain

import "errors"

// Data-integrity errors. These are never swallowed by valuation: there is no
// meaningful fallback value for an asset that does not exist or has no strategy.
var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrStrategyMissing  = errors.New("valuation strategy missing")
	ErrStrategyMismatch = errors.New("operation does not match the asset valuation strategy")
	ErrPlanNotFound     = errors.New("contribution plan not found")
)

// ErrTTLOutOfRange is returned when a per-call cache TTL is longer than the script cache keeps entries
var ErrTTLOutOfRange = errors.New("cache ttl exceeds script cache retention")

// Script-class errors. Valuation degrades all of them to the asset's last known value.
var (
	ErrMissingEntryPoint = errors.New("script does not expose a callable getValue")
	ErrInvalidReturnType = errors.New("getValue did not settle to a finite number")
	ErrScriptExecution   = errors.New("script execution failed")
)

// ScriptErrorKind returns a short label for a script error, used as a log field
func ScriptErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingEntryPoint):
		return "missing_entry_point"
	case errors.Is(err, ErrInvalidReturnType):
		return "invalid_return_type"
	case errors.Is(err, ErrScriptExecution):
		return "execution_error"
	default:
		return "unknown"
	}
}

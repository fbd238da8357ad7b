package script

import (
	"errors"
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

var (
	ErrMissingEntryPoint = domain.ErrMissingEntryPoint
	ErrInvalidReturnType = domain.ErrInvalidReturnType
	ErrScriptExecution   = domain.ErrScriptExecution
)

var errNeverSettled = errors.New("getValue promise never settled")

// executionError wraps anything thrown by the interpreter as ErrScriptExecution
func executionError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: interrupted: %v", ErrScriptExecution, interrupted.Value())
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("%w: %s", ErrScriptExecution, exception.Value().String())
	}

	return fmt.Errorf("%w: %v", ErrScriptExecution, err)
}

// rejectionError wraps the reason of a rejected getValue promise
func rejectionError(reason goja.Value) error {
	if reason == nil || goja.IsUndefined(reason) {
		return fmt.Errorf("%w: promise rejected", ErrScriptExecution)
	}
	return fmt.Errorf("%w: %s", ErrScriptExecution, reason.String())
}

// toFinite converts the settled result of getValue into a float64
func toFinite(v goja.Value) (float64, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidReturnType, describe(v))
	}

	switch n := v.Export().(type) {
	case int64:
		return float64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: got non-finite number %v", ErrInvalidReturnType, n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: got %s", ErrInvalidReturnType, describe(v))
	}
}

// describe renders a JS value with its type for error messages
func describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}

	switch exported := v.Export().(type) {
	case string:
		return fmt.Sprintf("string %q", exported)
	case bool:
		return fmt.Sprintf("boolean %v", exported)
	case *goja.Promise:
		return "nested promise"
	}

	if _, ok := goja.AssertFunction(v); ok {
		return "function"
	}
	return fmt.Sprintf("object %s", v.String())
}

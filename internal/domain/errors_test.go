package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("load: %w", ErrMissingEntryPoint), "missing_entry_point"},
		{fmt.Errorf("%w: got string \"abc\"", ErrInvalidReturnType), "invalid_return_type"},
		{fmt.Errorf("%w: boom", ErrScriptExecution), "execution_error"},
		{ErrAssetNotFound, "unknown"},
		{errors.New("other"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ScriptErrorKind(tt.err))
		})
	}
}

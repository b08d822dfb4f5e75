package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypedErrors_UnwrapToSentinels(t *testing.T) {
	t.Parallel()

	var err error = fmt.Errorf("submit: %w", Invalidf("title", "title is required"))
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "title", ve.Field)
	require.Equal(t, "title is required", ve.Error())

	err = fmt.Errorf("submit: %w", &RateLimitError{RetryAfter: time.Minute})
	require.ErrorIs(t, err, ErrRateLimited)

	err = fmt.Errorf("submit: %w", &CompileError{Message: "! Undefined control sequence."})
	require.ErrorIs(t, err, ErrCompilation)
	require.Contains(t, err.Error(), "Undefined control sequence")
}

func TestRateLimitError_Rounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       time.Duration
		minutes int
		hours   int
	}{
		{"exact 25m", 25 * time.Minute, 25, 1},
		{"partial minute rounds up", 24*time.Minute + time.Second, 25, 1},
		{"sub-second still one", time.Millisecond, 1, 1},
		{"zero floors at one", 0, 1, 1},
		{"23h30m", 23*time.Hour + 30*time.Minute, 1410, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &RateLimitError{RetryAfter: tt.d}
			require.Equal(t, tt.minutes, e.Minutes())
			require.Equal(t, tt.hours, e.Hours())
		})
	}
}

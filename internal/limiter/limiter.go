// Package limiter defines interfaces and implementations for registration and
// submission rate limiting.
package limiter

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

// UnknownOrigin marks a request whose network origin could not be determined.
// Registrations from it are never throttled.
const UnknownOrigin = "unknown"

// Default windows.
const (
	RegistrationWindow = 24 * time.Hour
	SubmissionWindow   = 30 * time.Minute
)

// Limiter controls how often origins may register and bots may publish.
type Limiter interface {
	// AllowRegistration reports whether origin may register now and, if not, how long to wait.
	AllowRegistration(ctx context.Context, origin string) (bool, time.Duration, error)
	// RecordRegistration stores an accepted registration from origin.
	RecordRegistration(ctx context.Context, origin string) error
	// AllowSubmission reports whether bot may submit now and, if not, how long to wait.
	AllowSubmission(ctx context.Context, botID uuid.UUID) (bool, time.Duration, error)
}

package runner

import (
	"errors"
	"fmt"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/validator"
)

// ErrValidation indicates storage did not match a unit after it was applied.
var ErrValidation = errors.New("post-apply validation failed")

// ErrUnknownDomain indicates a requested domain name with no registered units.
var ErrUnknownDomain = errors.New("unknown domain")

// ValidationError carries the differences that made a unit fail validation.
type ValidationError struct {
	Domain  string
	Version migration.Version
	Diff    validator.Diff
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s for %s@%s: %s", ErrValidation, e.Domain, e.Version, e.Diff)
}

// Is makes every *ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation //nolint:errorlint // sentinel identity check
}

package backup

import (
	"errors"
	"strings"
)

// ErrBackupIncomplete indicates leftover backup tables from an interrupted run.
var ErrBackupIncomplete = errors.New("incomplete backup found")

// IncompleteError lists the leftover backup tables. The operator must restore
// or discard them before the affected domains can migrate again.
type IncompleteError struct {
	Tables []string
}

func (e *IncompleteError) Error() string {
	return ErrBackupIncomplete.Error() + ": " + strings.Join(e.Tables, ", ")
}

// Is makes every *IncompleteError match ErrBackupIncomplete.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrBackupIncomplete //nolint:errorlint // sentinel identity check
}

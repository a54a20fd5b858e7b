package migration

import "errors"

// ErrConfiguration indicates the registered migration units are inconsistent.
// It is raised before any storage is touched.
var ErrConfiguration = errors.New("migration configuration error")

// ErrDuplicateVersion indicates two units declare the same version for one domain.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// ErrInvalidVersion indicates a version string or value cannot be used.
var ErrInvalidVersion = errors.New("invalid migration version")

// ErrInvalidUnit indicates a unit's renames, removals or tables contradict each other.
var ErrInvalidUnit = errors.New("invalid migration unit")

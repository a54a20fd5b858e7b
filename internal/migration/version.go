package migration

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Version is a three-part migration version compared numerically.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "1.2.3", optionally prefixed with "v" or "V".
func ParseVersion(s string) (Version, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "v"), "V")

	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 { //nolint:mnd // major.minor.patch
		return Version{}, fmt.Errorf("%w: %q is not major.minor.patch", ErrInvalidVersion, s)
	}

	nums := make([]int, len(parts))

	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q has a non-numeric component", ErrInvalidVersion, s)
		}

		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is ParseVersion for compiled-in declarations. It panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}

	return v
}

// Compare returns -1, 0 or +1 as v is less than, equal to or greater than o.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}

	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}

	return cmp.Compare(v.Patch, o.Patch)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// IsZero reports whether v is 0.0.0, the implicit version of a never-migrated domain.
func (v Version) IsZero() bool { return v == Version{} }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

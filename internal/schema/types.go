package schema

import (
	"fmt"
	"strings"
)

// LogicalType is the storage-neutral type of a declared column.
type LogicalType int

const (
	// TypeUnknown is the zero value and is never a valid column type.
	TypeUnknown LogicalType = iota
	// TypeTinyInt is an 8-bit integer.
	TypeTinyInt
	// TypeSmallInt is a 16-bit integer.
	TypeSmallInt
	// TypeInt is a 32-bit integer.
	TypeInt
	// TypeBigInt is a 64-bit integer.
	TypeBigInt
	// TypeString is a variable-length string with a declared max length.
	TypeString
	// TypeBinary is a large binary object.
	TypeBinary
	// TypeTimestamp is a point in time.
	TypeTimestamp
	// TypeIdentifier is a fixed-length identifier such as a UUID.
	TypeIdentifier
	// TypeBool is a boolean stored as a tiny integer.
	TypeBool
)

var typeNames = map[LogicalType]string{ //nolint:gochecknoglobals // lookup table
	TypeTinyInt:    "tinyint",
	TypeSmallInt:   "smallint",
	TypeInt:        "int",
	TypeBigInt:     "bigint",
	TypeString:     "string",
	TypeBinary:     "binary",
	TypeTimestamp:  "timestamp",
	TypeIdentifier: "identifier",
	TypeBool:       "bool",
}

// String returns the lowercase name used in declaration files.
func (t LogicalType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return "unknown"
}

// NeedsLength reports whether columns of this type must declare a length.
func (t LogicalType) NeedsLength() bool {
	return t == TypeString || t == TypeIdentifier
}

// ParseType resolves a type name as written in declaration files.
func ParseType(name string) (LogicalType, error) {
	needle := strings.ToLower(strings.TrimSpace(name))

	for t, n := range typeNames {
		if n == needle {
			return t, nil
		}
	}

	return TypeUnknown, fmt.Errorf("%w: unknown column type %q", ErrInvalidSchema, name)
}

// IndexKind distinguishes primary keys, unique constraints and plain indexes.
type IndexKind int

const (
	// IndexPlain is a non-unique secondary index.
	IndexPlain IndexKind = iota
	// IndexUnique enforces uniqueness over its columns.
	IndexUnique
	// IndexPrimary is the table's primary key.
	IndexPrimary
)

// String returns the lowercase kind name.
func (k IndexKind) String() string {
	switch k {
	case IndexPrimary:
		return "primary"
	case IndexUnique:
		return "unique"
	case IndexPlain:
		return "index"
	default:
		return "unknown"
	}
}

// ParseIndexKind resolves an index kind name. An empty name means IndexPlain.
func ParseIndexKind(name string) (IndexKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "index":
		return IndexPlain, nil
	case "unique":
		return IndexUnique, nil
	case "primary":
		return IndexPrimary, nil
	default:
		return IndexPlain, fmt.Errorf("%w: unknown index kind %q", ErrInvalidSchema, name)
	}
}

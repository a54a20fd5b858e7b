package schema

import "errors"

// ErrInvalidSchema indicates a table, column or index declaration is malformed.
var ErrInvalidSchema = errors.New("invalid schema declaration")

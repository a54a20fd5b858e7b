package tracker

import "errors"

// ErrTableCreation indicates the domain_versions table could not be created.
var ErrTableCreation = errors.New("creating domain_versions table")

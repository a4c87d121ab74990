package store

import (
	"errors"
	"strings"
)

// ErrUniqueViolation is returned (wrapped) when an insert or patch
// would violate a uniqueness constraint, e.g. a taken username.
var ErrUniqueViolation = errors.New("unique violation")

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

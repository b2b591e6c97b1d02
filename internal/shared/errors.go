package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique business key already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates out-of-range or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrRuleViolation indicates an input that breaks a consistency rule
	// (e.g. a work log ending before it starts).
	ErrRuleViolation = errors.New("rule violated")
)

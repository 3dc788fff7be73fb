package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTypeMismatch      = errors.New("cell type does not match column type")
	ErrInvalidValue      = errors.New("invalid value")
	ErrOrderingViolation = errors.New("position ordering violated")
	ErrPublishFailed     = errors.New("publish failed")
)

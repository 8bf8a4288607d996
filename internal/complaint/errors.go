package complaint

import "errors"

// Error classes of the lifecycle manager. Callers classify with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("complaint not found")
	ErrStorage    = errors.New("storage failure")
)

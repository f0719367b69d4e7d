package scan

import "errors"

var (
	ErrInvalidRadius    = errors.New("neighborhood radius must be positive")
	ErrInvalidThreshold = errors.New("spawn threshold must be in [0, 1]")
)

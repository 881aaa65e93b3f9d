package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLegend means a legend image has no decodable colored band.
	ErrEmptyLegend = errors.New("legend has no colored band")

	// ErrImageLoad matches any *ImageLoadError.
	ErrImageLoad = errors.New("image load failed")

	// ErrCancelled means the active domain changed while work was in flight.
	ErrCancelled = errors.New("cancelled by domain switch")

	// ErrNoActiveDomain is returned before the first domain switch.
	ErrNoActiveDomain = errors.New("no active domain")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// ImageLoadError records which URL failed to load.
type ImageLoadError struct {
	URL string
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.URL, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrImageLoad) match.
func (e *ImageLoadError) Is(target error) bool {
	return target == ErrImageLoad
}

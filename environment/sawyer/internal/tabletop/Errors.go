package tabletop

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCamera is returned when rendering from a camera the
	// scene does not define
	ErrUnknownCamera = errors.New("unknown camera")

	// ErrNoRenderer is returned when rendering after the render context
	// has been released
	ErrNoRenderer = errors.New("no render context")

	// ErrUnknownName is returned when querying a body, site or joint the
	// scene does not define
	ErrUnknownName = errors.New("unknown name")
)

func unknown(op, kind, name string) error {
	return fmt.Errorf("%v: %v %q: %w", op, kind, name, ErrUnknownName)
}

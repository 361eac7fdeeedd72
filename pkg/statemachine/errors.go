package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition definition")
	ErrNoTransition      = errors.New("no transition available")
)

func newNoTransitionError(from, event string) error {
	return fmt.Errorf("%w: from %q on %q", ErrNoTransition, from, event)
}

package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrSubscriptionDenied wraps every booking refused by the enforcer.
	ErrSubscriptionDenied = errors.New("subscription does not allow booking")
	// ErrNotOwner means the order belongs to a different user.
	ErrNotOwner = errors.New("order belongs to another user")
	// ErrInvalidInput covers malformed coordinates, prices and actions.
	ErrInvalidInput = errors.New("invalid input")
)

// DeniedError carries the enforcer's reason for refusing a booking.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrSubscriptionDenied
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

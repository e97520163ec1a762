package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParty           = errors.New("sender and receiver must be different users")
	ErrReceiverNotFound       = errors.New("receiver profile not found")
	ErrNotAuthorized          = errors.New("not allowed to perform this action on the booking")
	ErrInvalidTransition      = errors.New("booking status does not allow this action")
	ErrConcurrentModification = errors.New("booking was changed by someone else, reload and try again")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrInvalidTerms           = errors.New("invalid booking terms")
)

// PersistenceError carries a store failure up to the caller unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistence error"
	}
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence wraps store errors, passing the taxonomy errors through.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrConcurrentModification) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func transitionError(from Status, action Action) error {
	return fmt.Errorf("%w: cannot %s a booking that is %s", ErrInvalidTransition, action, from)
}

func termsError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTerms, msg)
}

package lds

import (
	"errors"
	"fmt"

	"github.com/gregLibert/mrtd/pkg/iso7816"
)

// Error categories. Every error returned by this package matches exactly one
// of them with errors.Is, and keeps the underlying cause in its chain.
var (
	// ErrTransceiver covers timeouts and I/O failures of the physical exchange.
	ErrTransceiver = errors.New("transceiver failure")

	// ErrIntegrity covers secure messaging failures: a response that does not
	// authenticate or decrypt, or a command that cannot be protected.
	ErrIntegrity = errors.New("secure messaging failure")

	// ErrFormat covers unsupported length forms, malformed file structures and
	// a nil send sequence counter.
	ErrFormat = errors.New("malformed data")

	// ErrNotFound is returned when no image start sequence is found.
	ErrNotFound = errors.New("image start not found")

	// ErrStatus is returned when an authenticated response carries an error
	// status word.
	ErrStatus = errors.New("card reported an error status")
)

// StatusError reports the status word of a rejected command.
type StatusError struct {
	Step   string
	Status iso7816.StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Step, ErrStatus, e.Status.Verbose())
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

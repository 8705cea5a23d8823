package ds7505

import (
	"errors"
	"fmt"
)

var ErrBusBusy = errors.New("I2C engine is busy (command not completed)")

// ErrTransport matches every *TransportError through errors.Is.
var ErrTransport = errors.New("transport error")

// TransportError wraps a failed bus write or read.
type TransportError struct {
	Op      string
	Address byte
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s at %#x: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError returns nil when err is nil.
func NewTransportError(op string, address byte, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Address: address, Err: err}
}

package weather

import (
	"errors"
	"fmt"
)

// ErrNoLocationSelected is returned when there is no active location or the
// location lacks usable coordinates. No gateway call is made in that case.
var ErrNoLocationSelected = errors.New("no location selected")

// GatewayError wraps a failed gateway call (network, HTTP status or decoding).
type GatewayError struct {
	Gateway   string
	Operation string
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Gateway, e.Operation, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayFailure reports whether err came from the weather gateway.
func IsGatewayFailure(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

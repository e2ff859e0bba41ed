package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for Initiative API client failures.
var (
	ErrAPIUnreachable = errors.New("initiative api unreachable")
	ErrAPITimeout     = errors.New("initiative api timeout")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("resource not found")
	ErrAPIError       = errors.New("initiative api error")
)

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrAPITimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrAPITimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrAPIUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrAPIUnreachable, err)
}

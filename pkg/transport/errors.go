package transport

import (
	"errors"
	"fmt"
)

var ErrInvalidName = errors.New("invalid file name")

// ServiceError reports a failed transport operation. Path is the remote or
// local path involved, when there is one.
type ServiceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

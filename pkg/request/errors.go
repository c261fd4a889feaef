package request

import (
	"errors"
	"fmt"
)

// ErrTargetNotSet is returned when a request is executed before its target has been composed.
var ErrTargetNotSet = errors.New("request target is not set")

// UnsupportedMethodError is returned when a request is composed with a method outside the supported set.
type UnsupportedMethodError struct {
	Name string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf(`request method "%s" is not supported`, e.Name)
}

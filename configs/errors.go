package configs

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned for invalid run options, before any run begins.
var ErrConfiguration = errors.New("configuration error")

func Errorf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, a...))
}

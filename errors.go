package lollipop

import (
	"errors"
	"fmt"
)

// ConfigError indicates invalid or self-contradictory configuration. It is
// always detectable before any deconvolution work starts.
type ConfigError struct {
	Msg string
}

func (e ConfigError) Error() string {
	return "invalid configuration: " + e.Msg
}

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...interface{}) error {
	return ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DataError indicates input data that cannot be interpreted under the current
// configuration, such as a missing required column or an unrecognized tag.
type DataError struct {
	Msg string
}

func (e DataError) Error() string {
	return "invalid input data: " + e.Msg
}

// Dataf builds a DataError from a format string.
func Dataf(format string, args ...interface{}) error {
	return DataError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce ConfigError
	return errors.As(err, &ce)
}

// IsDataError reports whether err is (or wraps) a DataError.
func IsDataError(err error) bool {
	var de DataError
	return errors.As(err, &de)
}

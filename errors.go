package ipintel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/ipintel/blobstore"
	"github.com/hupe1980/ipintel/internal/format"
)

var (
	// ErrCorruptData is returned when the data file violates its layout.
	ErrCorruptData = format.ErrCorruptData

	// ErrIncorrectVersion is returned when the data file version is not supported.
	ErrIncorrectVersion = format.ErrIncorrectVersion

	// ErrIncorrectIPAddressFormat is returned for unparsable or wrong-length addresses.
	ErrIncorrectIPAddressFormat = format.ErrIncorrectIPAddressFormat

	// ErrInsufficientMemory is returned when the memory limit denies a load.
	ErrInsufficientMemory = format.ErrInsufficientMemory

	// ErrInvalidConfig is returned for inconsistent configuration.
	ErrInvalidConfig = format.ErrInvalidConfig

	// ErrInvalidInput is returned for invalid call arguments.
	ErrInvalidInput = format.ErrInvalidInput

	// ErrFileNotFound is returned when the data file or blob does not exist.
	ErrFileNotFound = format.ErrFileNotFound

	// ErrFileIO is returned when reading the data file fails.
	ErrFileIO = format.ErrFileIO

	// ErrClosed is returned by operations on a closed Engine or released Results.
	ErrClosed = errors.New("engine closed")

	// ErrNoValue is matched by every *NoValueError.
	ErrNoValue = errors.New("no value")
)

// VersionError describes a data file version the engine does not support.
// It matches ErrIncorrectVersion.
type VersionError = format.VersionError

// LoadError describes a failed load or reload. The engine keeps serving the
// previous data file after a failed reload.
type LoadError struct {
	Op     string // "open" or "reload"
	Source string
	cause  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }

// NoValueError explains why a property has no values for the resolved
// address.
type NoValueError struct {
	Property string
	Reason   NoValueReason
}

func (e *NoValueError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("no value: %s", e.Reason.Message())
	}
	return fmt.Sprintf("no value for %s: %s", e.Property, e.Reason.Message())
}

// Is matches ErrNoValue.
func (e *NoValueError) Is(target error) bool { return target == ErrNoValue }

// NoValueReason classifies a missing value.
type NoValueReason uint8

const (
	// NoValueReasonUnknown is used when no other reason applies.
	NoValueReasonUnknown NoValueReason = iota
	// NoValueReasonNoResults means no address was resolved.
	NoValueReasonNoResults
	// NoValueReasonNullProfile means the address resolved to the null
	// profile of the property's component.
	NoValueReasonNullProfile
	// NoValueReasonInvalidProperty means the required property index is out
	// of range.
	NoValueReasonInvalidProperty
	// NoValueReasonTooManyValues means more values exist than the caller
	// accepts.
	NoValueReasonTooManyValues
)

var noValueReasons = [...]struct{ name, message string }{
	NoValueReasonUnknown:         {"unknown", "The reason for missing values is unknown."},
	NoValueReasonNoResults:       {"no results", "The results are empty. This is probably because we don't have this data in our database."},
	NoValueReasonNullProfile:     {"null profile", "The results contained a null profile for the component which the required property belongs to."},
	NoValueReasonInvalidProperty: {"invalid property", "The property index provided is invalid, either the property does not exist, or the data set has been initialized without it."},
	NoValueReasonTooManyValues:   {"too many values", "There are too many values to be returned by the method."},
}

func (r NoValueReason) String() string {
	if int(r) < len(noValueReasons) {
		return noValueReasons[r].name
	}
	return fmt.Sprintf("NoValueReason(%d)", uint8(r))
}

// Message returns a human-readable explanation.
func (r NoValueReason) Message() string {
	if int(r) < len(noValueReasons) {
		return noValueReasons[r].message
	}
	return noValueReasons[NoValueReasonUnknown].message
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already classified.
	for _, sentinel := range []error{
		ErrCorruptData, ErrIncorrectVersion, ErrIncorrectIPAddressFormat, ErrInsufficientMemory,
		ErrInvalidConfig, ErrInvalidInput, ErrFileNotFound, ErrFileIO,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Object storage.
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}

	return fmt.Errorf("%w: %w", ErrFileIO, err)
}

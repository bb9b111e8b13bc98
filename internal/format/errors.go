package format

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptData is returned when the data violates the file layout.
	ErrCorruptData = errors.New("corrupt data")

	// ErrIncorrectVersion is returned when the header version is not supported.
	ErrIncorrectVersion = errors.New("incorrect data file version")

	// ErrIncorrectIPAddressFormat is returned for unparsable or wrong-length addresses.
	ErrIncorrectIPAddressFormat = errors.New("incorrect ip address format")

	// ErrInsufficientMemory is returned when a memory budget denies an allocation.
	ErrInsufficientMemory = errors.New("insufficient memory")

	// ErrInvalidConfig is returned for inconsistent configuration.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidInput is returned for invalid call arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFileNotFound is returned when the data file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileIO is returned when reading the data file fails.
	ErrFileIO = errors.New("file io error")
)

// Corruptf wraps ErrCorruptData with a formatted detail message.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptData, fmt.Sprintf(format, args...))
}

// VersionError describes a header version that the engine does not support.
type VersionError struct {
	Major, Minor uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: got %d.%d, want %d.%d",
		ErrIncorrectVersion, e.Major, e.Minor, VersionMajor, VersionMinor)
}

func (e *VersionError) Unwrap() error { return ErrIncorrectVersion }

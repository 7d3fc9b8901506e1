package param

import "errors"

// Domain errors for the param package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, param.ErrNotFound) {
//	    // handle missing parameter
//	}
var (
	// ErrNotFound is returned when a parameter name is not registered.
	ErrNotFound = errors.New("param: not found")

	// ErrExists is returned when registering a name that is already taken.
	ErrExists = errors.New("param: already exists")

	// ErrTypeMismatch is returned when an operation targets a parameter of a
	// different kind, or a document value cannot be coerced to the kind.
	ErrTypeMismatch = errors.New("param: type mismatch")

	// ErrAccessDenied is returned when a write targets a read-only parameter.
	ErrAccessDenied = errors.New("param: access denied")

	// ErrValidationFailed is returned when a value is outside its declared
	// range or rejected by the parameter's validator callback.
	ErrValidationFailed = errors.New("param: validation failed")

	// ErrStoreFailure is returned when the durable store rejects an
	// operation or the registry has not been started.
	ErrStoreFailure = errors.New("param: store operation failed")

	// ErrInvalidName is returned when a parameter name is empty, too long,
	// or contains characters outside the allowed set.
	ErrInvalidName = errors.New("param: invalid name")

	// ErrTooLarge is returned when a value exceeds the parameter's declared
	// capacity.
	ErrTooLarge = errors.New("param: value too large")

	// ErrNilReference is returned when registering with a nil value pointer
	// or an empty blob buffer.
	ErrNilReference = errors.New("param: nil value reference")

	// ErrInvalidRange is returned when a numeric registration declares
	// min greater than max.
	ErrInvalidRange = errors.New("param: invalid range")
)

// ResultText renders an operation outcome as a short human-readable string
// for log lines and command replies. A nil error reads "Success".
func ResultText(err error) string {
	switch {
	case err == nil:
		return "Success"
	case errors.Is(err, ErrNotFound):
		return "Parameter not found"
	case errors.Is(err, ErrTypeMismatch):
		return "Type mismatch"
	case errors.Is(err, ErrAccessDenied):
		return "Access denied"
	case errors.Is(err, ErrValidationFailed):
		return "Validation failed"
	case errors.Is(err, ErrStoreFailure):
		return "Store operation failed"
	case errors.Is(err, ErrInvalidName):
		return "Invalid parameter name"
	case errors.Is(err, ErrTooLarge):
		return "Value too large"
	case errors.Is(err, ErrNilReference):
		return "Nil value reference"
	case errors.Is(err, ErrInvalidRange):
		return "Invalid range"
	default:
		return "Unknown error"
	}
}

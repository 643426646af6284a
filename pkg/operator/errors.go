package operator

import "errors"

// Standard error taxonomy surfaced uniformly regardless of backend.
//
// These errors provide a consistent way to indicate failure conditions
// across all operator implementations and the dispatch layers above them.
// Implementations wrap these with context:
//
//	if !exists {
//	    return fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
//	}
//
// and callers check with errors.Is:
//
//	if errors.Is(err, operator.ErrNotFound) { ... }
//
// Backend-reported errors are translated to this taxonomy at the operator
// boundary and re-raised unchanged through the bridge and the dispatcher.
// The core never retries: ErrTransient exists only so callers can decide to.
var (
	// ErrInvalidPath indicates a URL or key that cannot be resolved: empty
	// scheme, unparseable URL, a key escaping the root via "..", or a key
	// containing control characters.
	ErrInvalidPath = errors.New("invalid path")

	// ErrUnknownScheme indicates no service descriptor is registered for
	// the URL's scheme.
	ErrUnknownScheme = errors.New("unknown scheme")

	// ErrInvalidConfig indicates backend configuration that failed schema
	// validation: a missing required key, an uncoercible value, or an
	// unknown key against a closed schema.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrBackendUnavailable indicates operator construction failed at the
	// backend layer (connectivity, authentication, missing bucket).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNotFound indicates the key (or its bucket/root) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the key exists and the operation required
	// it not to.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPermissionDenied indicates the backend rejected the operation for
	// authorization reasons.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIsADirectory indicates a file operation was applied to a
	// directory key.
	ErrIsADirectory = errors.New("is a directory")

	// ErrNotADirectory indicates a directory operation was applied to a
	// regular object key.
	ErrNotADirectory = errors.New("not a directory")

	// ErrUnsupported indicates the backend lacks the primitive (e.g. no
	// native copy). This is permanent; retrying does not help. Dispatch
	// layers may fall back to an emulation instead of surfacing it.
	ErrUnsupported = errors.New("operation not supported")

	// ErrTransient indicates a retryable backend failure (throttling,
	// timeouts, 5xx). The core itself never retries.
	ErrTransient = errors.New("transient backend failure")

	// ErrInvalidArgument indicates an argument the backend rejected:
	// negative offsets, malformed keys, removing a non-empty directory.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBridgeClosed indicates an operation was submitted to a filesystem
	// instance after its teardown began.
	ErrBridgeClosed = errors.New("bridge closed")

	// ErrIteratorDone terminates an ObjectIterator. It is a control-flow
	// signal, not a failure.
	ErrIteratorDone = errors.New("iterator done")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err represents a transient backend failure
// worth retrying by a caller-level policy.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

package classify

import "errors"

// Gateway errors. These are terminal for the classification attempt that
// produced them, not for the process; callers use errors.Is to decide
// whether to skip the item or stop trying for the session.
var (
	// ErrEngineUnavailable is returned when the classification service
	// does not become ready within the bounded readiness wait, or cannot
	// be reached at all.
	ErrEngineUnavailable = errors.New("classification engine unavailable")

	// ErrPermissionDenied is returned when the user capability grant is
	// refused. The gateway does not retry the grant automatically; the
	// denial is remembered for the rest of the session.
	ErrPermissionDenied = errors.New("classification permission denied")
)

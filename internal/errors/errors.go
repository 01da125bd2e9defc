package errors

import "errors"

// Error taxonomy for the gateway. Packages wrap these with fmt.Errorf("...: %w")
// and the HTTP boundary maps them with errors.Is.
var (
	// Tenant errors
	ErrUnknownTenant = errors.New("unknown tenant")

	// Installation errors
	ErrExchange    = errors.New("oauth code exchange failed")
	ErrPersistence = errors.New("installation persistence failed")
	ErrStoreRead   = errors.New("installation store read failed")

	// Session errors
	ErrUnknownSession = errors.New("unknown session")
	ErrBadHandshake   = errors.New("bad handshake")
	ErrSessionClosed  = errors.New("session closed")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidState   = errors.New("invalid oauth state")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

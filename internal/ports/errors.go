package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown              = errors.New("unknown error occurred")
	ErrInvalidRequest       = errors.New("invalid request parameters or format")
	ErrNotFound             = errors.New("resource not found")
	ErrTimeout              = errors.New("operation timed out")
	ErrContextCanceled      = errors.New("operation canceled via context")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Analytics Errors
	ErrInvalidOrdering = errors.New("out-of-sequence input event")
	ErrInvalidTrade    = errors.New("malformed trade record")
	ErrRunFailure      = errors.New("backtest run failed")

	// Market Data / Transport Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrTransportDisconnect  = errors.New("stream transport disconnected")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)

// Error kinds recorded for failed sweep members.
const (
	KindInvalidConfiguration = "InvalidConfiguration"
	KindInvalidOrdering      = "InvalidOrdering"
	KindRunFailure           = "RunFailure"
)

// ErrorKind classifies err into one of the recorded failure kinds.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidConfiguration):
		return KindInvalidConfiguration
	case errors.Is(err, ErrInvalidOrdering), errors.Is(err, ErrInvalidTrade):
		return KindInvalidOrdering
	default:
		return KindRunFailure
	}
}

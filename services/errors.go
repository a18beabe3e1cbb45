package services

import "errors"

// Booking flow error taxonomy. Handlers map these onto HTTP statuses;
// network and internal errors are retryable with the same intent id,
// the rest are not.
var (
	ErrNotAuthenticated   = errors.New("requester is not authenticated")
	ErrInvalidRange       = errors.New("invalid date range or guest count")
	ErrSubjectUnavailable = errors.New("subject unavailable for the requested dates")
	ErrProviderRejected   = errors.New("payment provider rejected the transaction")
	ErrNetworkFailure     = errors.New("payment provider unreachable")
)

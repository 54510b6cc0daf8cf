package receipts

import "errors"

var (
	// ErrInvalidInput marks request payloads the service cannot use.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotComputed means no aggregate has been computed yet.
	ErrNotComputed = errors.New("aggregate not computed")
)

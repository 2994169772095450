package sdk

import "errors"

var (
	// ErrNotConnected indicates an operation attempted on a closed connection.
	ErrNotConnected = errors.New("connection is not valid")

	// ErrBackend means the server rejected or failed an operation. The
	// backend diagnostic is joined after this sentinel, verbatim.
	ErrBackend = errors.New("backend reported an error")

	// ErrBadResponse signals a malformed or unexpected backend response.
	ErrBadResponse = errors.New("backend response is invalid or unexpected")

	// ErrEmptyQuery is returned when the backend answers an empty query string.
	ErrEmptyQuery = errors.New("empty query")
)

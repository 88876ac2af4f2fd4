// Package oracle talks to the generative API that extracts candidate bets
// from screenshots, discovers them through web search and verifies results.
package oracle

import "errors"

var (
	// ErrUnavailable indicates the oracle could not be reached or refused the request
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrInvalidResponse indicates the oracle answered with something that is not the expected shape
	ErrInvalidResponse = errors.New("invalid oracle response")

	// ErrEmptyResponse indicates the oracle answered without any text
	ErrEmptyResponse = errors.New("empty oracle response")

	// ErrMissingAPIKey indicates no API key was configured
	ErrMissingAPIKey = errors.New("oracle api key not configured")

	// ErrCircuitOpen indicates the transport stopped sending after repeated failures
	ErrCircuitOpen = errors.New("oracle transport circuit open")
)

package domain

import "errors"

var (
	// ErrTokenNotFound is returned when no asset under the requested policy is resolvable
	ErrTokenNotFound = errors.New("token not found")

	// ErrNoHolderData is returned when the chain-data provider reports no holders for an asset
	ErrNoHolderData = errors.New("no holder data")

	// ErrRetryExhausted is returned when a rate-limited provider call does not
	// succeed within the bounded retry budget
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrIngestorRunning is returned when Run is called on an ingestor that is already running
	ErrIngestorRunning = errors.New("ingestor already running")
)

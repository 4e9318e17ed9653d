package domain

import "time"

// Quote is an ephemeral price/liquidity quote from a single venue. Quotes are
// produced fresh per aggregation call and discarded after best-quote
// selection; they are never persisted.
type Quote struct {
	Venue     string
	Price     float64
	Liquidity float64
	Timestamp time.Time
}

// ExecutionResult is the outcome of a single simulated execution attempt.
type ExecutionResult struct {
	Success       bool
	TxHash        string
	ExecutedPrice float64
	Err           error
}

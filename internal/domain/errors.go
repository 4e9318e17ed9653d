package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidOrder       = errors.New("invalid order parameters")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrExecutionFailed    = errors.New("execution failed")
	ErrInsufficientQuotes = errors.New("insufficient quotes")
	ErrRetriesExhausted   = errors.New("retries exhausted")
	ErrIllegalTransition  = errors.New("illegal status transition")
)

package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInsufficientFunds is returned when a conditional debit finds the balance too low.
	ErrInsufficientFunds = errors.New("insufficient balance")
	// ErrAlreadyProcessed marks a conditional state transition that lost to an earlier one.
	// Callers treat it as a successful no-op.
	ErrAlreadyProcessed = errors.New("already processed")
	ErrInvalidSignature = errors.New("invalid signature")
)

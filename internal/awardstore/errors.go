package awardstore

import "errors"

var (
	// ErrMalformedRecord is returned when a raw record does not match any known field mapping.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrConstraintViolation is returned when a record would break a store invariant,
	// such as an empty award id.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrTypeConversion is returned when an amount or date cannot be normalized.
	ErrTypeConversion = errors.New("type conversion")
	// ErrTransactionFailure is returned when the underlying database rejects a write.
	ErrTransactionFailure = errors.New("transaction failure")
	ErrAwardNotFound      = errors.New("award not found")
)

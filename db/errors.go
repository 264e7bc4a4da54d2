package db

import "errors"

// Common errors
var (
	ErrRunNotFound        = errors.New("run not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrTransactionFailed  = errors.New("transaction failed")
)

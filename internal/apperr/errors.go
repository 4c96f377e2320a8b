// Package apperr holds sentinel errors shared by the service, API and MCP layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidTask   = errors.New("invalid task")
	ErrInvalidInput  = errors.New("invalid input")
)

// Package repository contains data access logic separated from HTTP
// handlers. This file defines sentinel errors shared across repositories
// so handlers can map failures to HTTP responses with errors.Is instead
// of string matching.
package repository

import "errors"

// ErrNotFound is returned when a record lookup matches no row. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("record not found")

// ErrEmailExists is returned when an insert or update would violate the
// unique email constraint on users or customers. Handlers should translate
// this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

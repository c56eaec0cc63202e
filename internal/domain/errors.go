// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collides with existing state.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the request or stored entity failed validation.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates a missing or invalid bearer credential.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates an authenticated caller lacks the required role.
var ErrForbidden = errors.New("forbidden")

// Run pipeline taxonomy.
var (
	// ErrDecryption indicates a provider credential could not be decrypted
	// with the deployment key material.
	ErrDecryption = errors.New("decryption failed")

	// ErrMalformedConfig indicates decrypted credentials do not match the
	// settings shape of the claimed provider type.
	ErrMalformedConfig = errors.New("malformed provider config")

	// ErrUnsupportedProvider indicates no backend is registered for a provider type.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrGeneration indicates the vendor backend reported a failure.
	ErrGeneration = errors.New("generation failed")

	// ErrMalformedStream indicates an event arrived that the current
	// transcript state cannot accept.
	ErrMalformedStream = errors.New("malformed stream")

	// ErrIncompleteToolCall indicates a tool call never received a result or error.
	ErrIncompleteToolCall = errors.New("incomplete tool call")

	// ErrIncompleteStream indicates the event stream ended before finish.
	ErrIncompleteStream = errors.New("incomplete stream")

	// ErrPersistence indicates the run record could not be written.
	ErrPersistence = errors.New("persistence failed")
)

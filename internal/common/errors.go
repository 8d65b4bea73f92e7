// Package common defines shared constants and sentinel errors used across
// the filepool packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Transfer errors. ErrNetwork covers transport failures, ErrServer
	// covers responses the remote site rejected.
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")

	// ErrStorage wraps failures of the persistent store or content store.
	ErrStorage = errors.New("storage error")

	// Queue errors.
	ErrCanceled = errors.New("download canceled")
	ErrOffline  = errors.New("offline")

	// Auth errors (invalid or malformed token).
	ErrorInvalidToken = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")

	// Scheduler errors.
	ErrAlreadyRegistered = errors.New("already registered")
)

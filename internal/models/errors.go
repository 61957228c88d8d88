package models

import "errors"

var (
	// ErrValidation covers bad shapes or values on create and update.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidUpdates is returned when a patch names a field outside its allow-list.
	ErrInvalidUpdates = errors.New("Invalid updates!")
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrLoginFailed is deliberately the same for unknown email and wrong password.
	ErrLoginFailed = errors.New("Unable to login")
	// ErrUnauthenticated is the only auth error handed to callers.
	ErrUnauthenticated = errors.New("Please Authenticate.")
	ErrInvalidToken    = errors.New("invalid token")

	// ErrNotFound also stands for "owned by someone else".
	ErrNotFound = errors.New("not found")

	ErrInvalidUpload   = errors.New("invalid upload")
	ErrImageProcessing = errors.New("unable to process image")

	ErrStore = errors.New("store failure")
)

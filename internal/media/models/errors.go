package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid arguments")

	// Upload input errors. Nothing is persisted when these are returned.
	ErrMissingVideo    = errors.New("no video file uploaded")
	ErrEmptyFilename   = errors.New("no selected video file")
	ErrPayloadTooLarge = errors.New("payload too large")

	ErrStorageIO        = errors.New("storage io error")
	ErrStoreUnavailable = errors.New("metadata store unavailable")
)

package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileTooLarge      = errors.New("file exceeds maximum allowed size")

	// Pipeline errors.
	ErrImageDecode       = errors.New("image could not be decoded")
	ErrOCRFailure        = errors.New("ocr engine failure")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrExtractionPartial = errors.New("field extraction incomplete")

	// Queue errors.
	ErrQueueBackend = errors.New("unknown or unavailable queue backend")
	ErrUnknownTask  = errors.New("unknown task name")
	ErrJobNotFound  = errors.New("job not found")

	ErrTemplateSync = errors.New("template sync failed")
)

package service

import (
	"errors"

	"flipbook-fulfillment-service/internal/model"
	"flipbook-fulfillment-service/internal/repository"
)

// Error taxonomy surfaced to the controller.
var (
	ErrValidation     = errors.New("validation failed")
	ErrUpload         = errors.New("video upload failed")
	ErrPersistence    = errors.New("order persistence failed")
	ErrRollbackFailed = errors.New("uploaded video could not be removed")

	ErrNotFound          = repository.ErrNotFound
	ErrMalformedRecord   = repository.ErrMalformedRecord
	ErrInvalidTransition = model.ErrInvalidTransition
	ErrUnknownStatus     = model.ErrUnknownStatus
)

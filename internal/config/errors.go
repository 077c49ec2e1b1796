package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Editor errors
	ErrSessionNotFound  = "Session not found"
	ErrElementNotFound  = "Element not found"
	ErrInvalidFieldBody = "Invalid field update"
	ErrUploadTooLarge   = "Upload too large"
	ErrUploadNotImage   = "Uploaded file is not an image"

	ErrInternalServerError = "Internal server error"
)

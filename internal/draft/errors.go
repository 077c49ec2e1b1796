package draft

import "errors"

var (
	ErrSessionClosed   = errors.New("draft session is closed")
	ErrSessionNotFound = errors.New("draft session not found")
	ErrTypeMismatch    = errors.New("value does not match field type")
)

package common

import (
	"github.com/google/uuid"
)

// NewRedactionID generates a redaction action ID
// Format: red_<uuid>
func NewRedactionID() string {
	return "red_" + uuid.New().String()
}

// NewSessionID generates a review session ID
// Format: ses_<uuid>
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}

// NewTempFileID generates a temp file record ID
func NewTempFileID() string {
	return "tmp_" + uuid.New().String()
}

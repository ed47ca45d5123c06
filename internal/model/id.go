package model

import "github.com/google/uuid"

// NewID returns a short entity id. Eight hex characters is plenty for a
// single household and keeps ids readable on kiosk displays.
func NewID() string {
	return uuid.NewString()[:8]
}

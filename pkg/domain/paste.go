package domain

import (
	"time"
)

// Paste is a stored snippet. Content is kept verbatim, exactly as the
// client submitted it, and never changes after creation.
type Paste struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

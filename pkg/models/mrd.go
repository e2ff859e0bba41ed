package models

import (
	"time"

	"github.com/google/uuid"
)

// MRD is a generated Market Requirements Document. Content is markdown
// produced by the backend; each regeneration bumps Version.
type MRD struct {
	ID           uuid.UUID `json:"id"`
	InitiativeID uuid.UUID `json:"initiative_id"`
	Version      int       `json:"version"`
	Content      string    `json:"content"`
	GeneratedAt  time.Time `json:"generated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is an AI-generated discovery question attached to an initiative.
// Answer and AnsweredAt are nil until the user responds.
type Question struct {
	ID           uuid.UUID  `json:"id"`
	InitiativeID uuid.UUID  `json:"initiative_id"`
	Category     string     `json:"category"`
	Text         string     `json:"text"`
	Position     int        `json:"position"`
	Answer       *string    `json:"answer,omitempty"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

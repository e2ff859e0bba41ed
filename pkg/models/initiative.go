// Package models contains shared data models used across the initiativectl codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InitiativeStatusDraft     = "draft"
	InitiativeStatusDiscovery = "discovery"
	InitiativeStatusReady     = "ready"
	InitiativeStatusScored    = "scored"
)

// Initiative represents a product initiative being taken through discovery.
type Initiative struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	OwnerEmail  string    `json:"owner_email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Readiness summarizes how complete an initiative's discovery answers are.
// The backend computes it; the client only displays it.
type Readiness struct {
	InitiativeID uuid.UUID           `json:"initiative_id"`
	Ready        bool                `json:"ready"`
	Percent      int                 `json:"percent"`
	Categories   []CategoryReadiness `json:"categories,omitempty"`
}

// CategoryReadiness is the answered/total breakdown for one question category.
type CategoryReadiness struct {
	Category string `json:"category"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

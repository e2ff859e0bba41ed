package models

import (
	"time"

	"github.com/google/uuid"
)

// Score holds the backend-calculated prioritization scores for an
// initiative. Formulas are backend-owned; these are display values.
type Score struct {
	ID           uuid.UUID `json:"id"`
	InitiativeID uuid.UUID `json:"initiative_id"`
	RICE         RICEScore `json:"rice"`
	FDV          FDVScore  `json:"fdv"`
	Rationale    string    `json:"rationale,omitempty"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// RICEScore is the reach/impact/confidence/effort breakdown.
type RICEScore struct {
	Reach      float64 `json:"reach"`
	Impact     float64 `json:"impact"`
	Confidence float64 `json:"confidence"`
	Effort     float64 `json:"effort"`
	Total      float64 `json:"total"`
}

// FDVScore is the feasibility/desirability/viability breakdown.
type FDVScore struct {
	Feasibility  float64 `json:"feasibility"`
	Desirability float64 `json:"desirability"`
	Viability    float64 `json:"viability"`
	Total        float64 `json:"total"`
}

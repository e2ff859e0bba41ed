package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func InitiativeListKey(page, limit int) string {
	return fmt.Sprintf("initiatives:list:%d:%d", page, limit)
}

func MRDKey(initiativeID uuid.UUID) string {
	return fmt.Sprintf("mrd:%s", initiativeID)
}

func ScoreKey(initiativeID uuid.UUID) string {
	return fmt.Sprintf("score:%s", initiativeID)
}

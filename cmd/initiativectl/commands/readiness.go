package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newReadinessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "readiness <initiative-id>",
		Short: "Evaluate how complete an initiative's discovery is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			readiness, err := a.api.EvaluateReadiness(cmd.Context(), id)
			if err != nil {
				return err
			}

			state := "not ready"
			if readiness.Ready {
				state = "ready"
			}
			cmd.Printf("%d%% answered, %s\n", readiness.Percent, state)
			for _, cat := range readiness.Categories {
				cmd.Printf("  %-10s %d/%d\n", cat.Category, cat.Answered, cat.Total)
			}
			return nil
		},
	}
}

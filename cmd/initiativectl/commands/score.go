package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Calculate and read prioritization scores",
	}
	cmd.AddCommand(newScoreCalculateCmd(a), newScoreShowCmd(a))
	return cmd
}

func newScoreCalculateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "calculate <initiative-id>",
		Short: "Calculate RICE and FDV scores and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			job, err := a.api.CalculateScore(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.watchJob(cmd, job.ID)
		},
	}
}

func newScoreShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <initiative-id>",
		Short: "Print the latest scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			score, err := a.api.GetScore(cmd.Context(), id)
			if err != nil {
				return err
			}

			cmd.Printf("RICE: %.1f (reach %.0f, impact %.2f, confidence %.2f, effort %.1f)\n",
				score.RICE.Total, score.RICE.Reach, score.RICE.Impact, score.RICE.Confidence, score.RICE.Effort)
			cmd.Printf("FDV:  %.1f (feasibility %.1f, desirability %.1f, viability %.1f)\n",
				score.FDV.Total, score.FDV.Feasibility, score.FDV.Desirability, score.FDV.Viability)
			if score.Rationale != "" {
				cmd.Printf("rationale: %s\n", score.Rationale)
			}
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMRDCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mrd",
		Short: "Generate and read Market Requirements Documents",
	}
	cmd.AddCommand(newMRDGenerateCmd(a), newMRDShowCmd(a))
	return cmd
}

func newMRDGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <initiative-id>",
		Short: "Generate an MRD with AI and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			job, err := a.api.GenerateMRD(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.watchJob(cmd, job.ID)
		},
	}
}

func newMRDShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <initiative-id>",
		Short: "Print the latest MRD as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			mrd, err := a.api.GetMRD(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Printf("# version %d, generated %s\n\n%s", mrd.Version, mrd.GeneratedAt.Format("2006-01-02 15:04"), mrd.Content)
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newQuestionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Work with discovery questions",
	}
	cmd.AddCommand(
		newQuestionsListCmd(a),
		newQuestionsAnswerCmd(a),
		newQuestionsGenerateCmd(a),
	)
	return cmd
}

func newQuestionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <initiative-id>",
		Short: "List an initiative's discovery questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			questions, err := a.api.ListQuestions(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				cmd.Println("no questions yet, run: initiativectl questions generate " + id.String())
				return nil
			}

			for _, q := range questions {
				mark := " "
				if q.Answer != nil {
					mark = "x"
				}
				cmd.Printf("[%s] %s  (%s)\n    %s\n", mark, q.ID, q.Category, q.Text)
				if q.Answer != nil {
					cmd.Printf("    -> %s\n", *q.Answer)
				}
			}
			return nil
		},
	}
}

func newQuestionsAnswerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <initiative-id> <question-id> <answer>",
		Short: "Answer a discovery question",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			initiativeID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}
			questionID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid question id: %w", err)
			}

			q, err := a.api.AnswerQuestion(cmd.Context(), initiativeID, questionID, args[2])
			if err != nil {
				return err
			}
			cmd.Printf("answered question %s\n", q.ID)
			return nil
		},
	}
}

func newQuestionsGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <initiative-id>",
		Short: "Generate discovery questions with AI and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			job, err := a.api.GenerateQuestions(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.watchJob(cmd, job.ID)
		},
	}
}

package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and print a session token for INITIATIVE_API_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Print("password: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			password, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}

			session, err := a.api.Login(cmd.Context(), args[0], strings.TrimSpace(password))
			if err != nil {
				return err
			}

			cmd.Printf("logged in as %s\n", session.User.Email)
			cmd.Printf("export INITIATIVE_API_KEY=%s\n", session.Token)
			return nil
		},
	}
}

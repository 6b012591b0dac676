package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templui/docvault/internal/app"
)

func TokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <email>",
		Short: "Issue an API bearer token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				token, _, err := a.AuthService.IssueToken(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templui/docvault/internal/app"
	"github.com/templui/docvault/internal/model"
)

func MemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage tenant memberships",
	}

	cmd.AddCommand(memberAddCmd())
	return cmd
}

func memberAddCmd() *cobra.Command {
	var role, as string
	cmd := &cobra.Command{
		Use:   "add <tenant> <email>",
		Short: "Add a user to a tenant on behalf of one of its admins",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx, tenant, err := a.TenantService.Enter(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				admin, err := a.Store.Users().ByEmail(ctx, as)
				if err != nil {
					return fmt.Errorf("admin %s: %w", as, err)
				}
				m, err := a.MembershipService.AddMember(ctx, admin.ID, args[1], model.Role(role))
				if err != nil {
					return err
				}
				fmt.Printf("%s is now %s in %s (user %s)\n", args[1], m.Role, tenant.Slug, m.UserID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(model.RoleViewer), "admin, editor or viewer")
	cmd.Flags().StringVar(&as, "as", "", "email of an admin of the tenant")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

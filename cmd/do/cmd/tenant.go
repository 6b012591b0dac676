package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/templui/docvault/internal/app"
	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/service"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Provision and manage tenants",
	}

	cmd.AddCommand(tenantCreateCmd())
	cmd.AddCommand(tenantActivationCmd("deactivate", "Hide a tenant from resolution", (*service.TenantService).Deactivate))
	cmd.AddCommand(tenantActivationCmd("activate", "Make a deactivated tenant resolvable again", (*service.TenantService).Activate))
	cmd.AddCommand(tenantListCmd())
	return cmd
}

func tenantCreateCmd() *cobra.Command {
	var name, mode, admin string
	cmd := &cobra.Command{
		Use:   "create <slug>",
		Short: "Create a tenant and optionally its first admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if name == "" {
					name = args[0]
				}
				tenant, err := a.TenantService.Provision(cmd.Context(), service.ProvisionRequest{
					Name:       name,
					Slug:       args[0],
					Mode:       model.IsolationMode(mode),
					AdminEmail: admin,
				})
				if err != nil {
					return err
				}
				fmt.Printf("created tenant %s (%s, %s isolation)\n", tenant.Slug, tenant.ID, tenant.IsolationMode)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the slug)")
	cmd.Flags().StringVar(&mode, "mode", "", "isolation mode: filter or schema (defaults to DEFAULT_ISOLATION_MODE)")
	cmd.Flags().StringVar(&admin, "admin", "", "email of the first admin")
	return cmd
}

func tenantActivationCmd(use, short string, apply func(*service.TenantService, context.Context, string) (*model.Tenant, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <slug>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				tenant, err := apply(a.TenantService, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("tenant %s active=%t\n", tenant.Slug, tenant.Active)
				return nil
			})
		},
	}
}

func tenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				tenants, err := a.TenantService.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SLUG\tNAME\tMODE\tACTIVE\tID")
				for _, t := range tenants {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", t.Slug, t.Name, t.IsolationMode, t.Active, t.ID)
				}
				return w.Flush()
			})
		},
	}
}

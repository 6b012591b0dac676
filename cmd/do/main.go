package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/templui/docvault/cmd/do/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Operator tools for docvault",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.TenantCmd())
	rootCmd.AddCommand(cmd.MemberCmd())
	rootCmd.AddCommand(cmd.TokenCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package root

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdReconcile "github.com/BerryBytes/awsorgctl/cmd/reconcile"
)

var RootCmd = &cobra.Command{
	Use:   "awsorgctl",
	Short: "IAM resource manager for AWS Organizations",
	Long: `Converges IAM users, groups, cross-account delegation roles, and custom
policies across every account in an AWS Organization from a single spec file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("No subcommand provided. Showing help...")
		return cmd.Help()
	},
}

func init() {
	deps := cmdReconcile.DefaultDependencies()
	for _, c := range cmdReconcile.NewCommands(deps) {
		RootCmd.AddCommand(c)
	}
}

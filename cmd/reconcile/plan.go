package reconcile

import (
	"github.com/spf13/cobra"

	"github.com/BerryBytes/awsorgctl/internal/config"
)

// NewPlanCmd shows the ordered operations a run would perform without
// touching any account.
func NewPlanCmd(deps Dependencies) *cobra.Command {
	var flags config.Config

	cmd := &cobra.Command{
		Use:          "plan",
		Short:        "Preview the IAM changes a run would apply",
		Long:         `Loads the spec, observes every managed account, and prints the ordered operations that would bring the organization in line. Nothing is modified.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pass, err := runPass(cmd.Context(), deps, flags)
			if err != nil {
				return err
			}
			renderPlan(deps.Out, pass)
			return nil
		},
	}

	addCommonFlags(cmd, &flags)
	return cmd
}

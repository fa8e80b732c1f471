package reconcile

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BerryBytes/awsorgctl/internal/config"
)

// NewApplyCmd converges every managed account on the spec.
func NewApplyCmd(deps Dependencies) *cobra.Command {
	var flags config.Config
	var autoApprove bool

	cmd := &cobra.Command{
		Use:          "apply",
		Short:        "Apply the spec to the organization",
		Long:         `Computes the plan and executes it batch by batch, converging users, groups, delegation roles, and policies in every managed account.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, pass, err := runPass(cmd.Context(), deps, flags)
			if err != nil {
				return err
			}

			renderPlan(deps.Out, pass)
			if pass.Plan.Empty() {
				return nil
			}

			if !autoApprove {
				prompt := fmt.Sprintf("Apply %d operation(s)", pass.Plan.Size())
				if !deps.Prompter.PromptForConfirmation(prompt) {
					fmt.Fprintln(deps.Out, "Apply cancelled.")
					return nil
				}
			}

			report := eng.Apply(cmd.Context(), pass)
			renderReport(deps.Out, report)
			if report.Failed() {
				return fmt.Errorf("one or more operations failed")
			}
			return nil
		},
	}

	addCommonFlags(cmd, &flags)
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "skip the interactive confirmation")
	return cmd
}

package reconcile

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BerryBytes/awsorgctl/internal/config"
)

// NewReportCmd prints the organization inventory and the drift against the
// spec, without planning details.
func NewReportCmd(deps Dependencies) *cobra.Command {
	var flags config.Config

	cmd := &cobra.Command{
		Use:          "report",
		Short:        "Report organization accounts and drift from the spec",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pass, err := runPass(cmd.Context(), deps, flags)
			if err != nil {
				return err
			}

			renderAccounts(deps.Out, pass.Model)
			fmt.Fprintln(deps.Out)
			renderDrift(deps.Out, pass)

			if degraded := pass.State.Degraded(); len(degraded) > 0 {
				fmt.Fprintf(deps.Out, "\nUnreachable account(s) excluded from the report: %v\n", degraded)
			}
			return nil
		},
	}

	addCommonFlags(cmd, &flags)
	return cmd
}

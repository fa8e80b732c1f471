// Package reconcile provides the plan, apply, and report commands that drive
// IAM convergence across the organization.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/BerryBytes/awsorgctl/internal/config"
	"github.com/BerryBytes/awsorgctl/internal/engine"
	"github.com/BerryBytes/awsorgctl/internal/orgclient"
	"github.com/BerryBytes/awsorgctl/internal/spec"
	promptutils "github.com/BerryBytes/awsorgctl/utils/prompt"
)

type Dependencies struct {
	Fs       afero.Fs
	Prompter promptutils.Prompter
	Out      io.Writer

	// BuildEngine opens the AWS session for the management account. Swapped
	// out in tests.
	BuildEngine func(ctx context.Context, cfg *config.Config) (*engine.Engine, error)
}

func DefaultDependencies() Dependencies {
	return Dependencies{
		Fs:       afero.NewOsFs(),
		Prompter: &promptutils.RealPrompter{},
		Out:      os.Stdout,
		BuildEngine: func(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
			var opts []func(*awsconfig.LoadOptions) error
			if cfg.Region != "" {
				opts = append(opts, awsconfig.WithRegion(cfg.Region))
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			return engine.New(orgclient.NewClient(awsCfg, cfg.OrgAccessRole)), nil
		},
	}
}

// NewCommands wires the plan, apply, and report subcommands.
func NewCommands(deps Dependencies) []*cobra.Command {
	return []*cobra.Command{
		NewPlanCmd(deps),
		NewApplyCmd(deps),
		NewReportCmd(deps),
	}
}

func addCommonFlags(cmd *cobra.Command, flags *config.Config) {
	cmd.Flags().StringVarP(&flags.SpecFile, "spec-file", "s", "", "path to the IAM spec file")
	cmd.Flags().StringVar(&flags.MasterAccountID, "master-account-id", "", "expected organization management account id")
	cmd.Flags().StringVar(&flags.AuthAccountID, "auth-account-id", "", "central auth account id, overrides the spec")
	cmd.Flags().StringVar(&flags.OrgAccessRole, "org-access-role", "", "role assumed in member accounts, overrides the spec")
	cmd.Flags().StringVar(&flags.Region, "region", "", "AWS region for API calls")
}

// runPass loads config and spec, opens the session, and computes the plan.
func runPass(ctx context.Context, deps Dependencies, flags config.Config) (*engine.Engine, *engine.Pass, error) {
	cfg, err := config.Load(deps.Fs, ".")
	if err != nil {
		return nil, nil, err
	}
	cfg.Merge(flags)
	if cfg.SpecFile == "" {
		return nil, nil, fmt.Errorf("no spec file: pass --spec-file or set spec_file in awsorgctl.yml")
	}

	eng, err := deps.BuildEngine(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	loader := spec.NewLoader(deps.Fs)
	loader.Overrides = spec.Overrides{
		MasterAccountID: cfg.MasterAccountID,
		AuthAccountID:   cfg.AuthAccountID,
		OrgAccessRole:   cfg.OrgAccessRole,
	}

	pass, err := eng.PlanPass(ctx, loader, cfg.SpecFile)
	if err != nil {
		return nil, nil, err
	}
	return eng, pass, nil
}

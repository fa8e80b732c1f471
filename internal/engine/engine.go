// Package engine drives a full reconciliation pass: observe, diff, plan,
// execute, report.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/BerryBytes/awsorgctl/internal/differ"
	"github.com/BerryBytes/awsorgctl/internal/executor"
	"github.com/BerryBytes/awsorgctl/internal/iamclient"
	"github.com/BerryBytes/awsorgctl/internal/observer"
	"github.com/BerryBytes/awsorgctl/internal/orgclient"
	"github.com/BerryBytes/awsorgctl/internal/planner"
	"github.com/BerryBytes/awsorgctl/internal/spec"
	"github.com/BerryBytes/awsorgctl/models"
)

// Engine wires the pass components around one organization session.
type Engine struct {
	Org      *orgclient.Client
	Observer *observer.Observer
	Executor *executor.Executor
}

func New(org *orgclient.Client) *Engine {
	factory := &clientFactory{org: org}
	return &Engine{
		Org:      org,
		Observer: observer.New(readerFactory{factory}),
		Executor: executor.New(writerFactory{factory}),
	}
}

// Pass is everything one reconciliation pass computed before execution.
type Pass struct {
	Model   *spec.Model
	State   models.ObservedState
	Changes []models.Change
	Plan    *models.Plan
}

// PlanPass loads the spec, observes every managed account, and produces the
// ordered plan. No remote state is mutated.
func (e *Engine) PlanPass(ctx context.Context, loader *spec.Loader, specPath string) (*Pass, error) {
	accounts, err := e.Org.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	model, err := loader.Load(specPath, accounts)
	if err != nil {
		return nil, err
	}

	if err := e.Org.ValidateMasterAccount(ctx, model.MasterAccountID); err != nil {
		return nil, err
	}

	// The spec's role wins so one session can serve different organizations.
	e.Org.AccessRole = model.OrgAccessRole

	log.Printf("engine: observing %d account(s)", len(model.ManagedAccountIDs()))
	state := e.Observer.Observe(ctx, model.ManagedAccountIDs())

	changes := differ.New(model, state).Diff()
	plan, err := planner.Plan(changes)
	if err != nil {
		return nil, err
	}

	return &Pass{Model: model, State: state, Changes: changes, Plan: plan}, nil
}

// Apply executes the pass's plan and folds blocked changes and degraded
// accounts into the report.
func (e *Engine) Apply(ctx context.Context, pass *Pass) *models.RunReport {
	report := e.Executor.Execute(ctx, pass.Plan)
	finalizeReport(report, pass)
	return report
}

func finalizeReport(report *models.RunReport, pass *Pass) {
	for _, c := range pass.Changes {
		switch c.Kind {
		case models.ChangeNoOp:
			report.AddNoOp(c)
		case models.ChangeBlocked:
			report.AddBlocked(c)
		}
	}
	for _, id := range pass.State.Degraded() {
		report.MarkDegraded(id)
	}
}

// clientFactory builds account-scoped IAM clients over the org session's
// assumed-role configs.
type clientFactory struct {
	org *orgclient.Client
}

func (f *clientFactory) client(ctx context.Context, accountID string) (*iamclient.Client, error) {
	cfg, err := f.org.Config(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("no credentials for account %s: %w", accountID, err)
	}
	return iamclient.NewClient(cfg, accountID), nil
}

type readerFactory struct{ f *clientFactory }

func (r readerFactory) ForAccount(ctx context.Context, accountID string) (observer.AccountReader, error) {
	return r.f.client(ctx, accountID)
}

type writerFactory struct{ f *clientFactory }

func (w writerFactory) ForAccount(ctx context.Context, accountID string) (executor.AccountWriter, error) {
	return w.f.client(ctx, accountID)
}

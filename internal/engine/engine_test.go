package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerryBytes/awsorgctl/internal/engine"
	"github.com/BerryBytes/awsorgctl/internal/executor"
	"github.com/BerryBytes/awsorgctl/models"
)

type noClients struct{}

func (noClients) ForAccount(context.Context, string) (executor.AccountWriter, error) {
	return nil, errors.New("no remote calls expected")
}

func TestApply_ConvergedPassEnumeratesNoOps(t *testing.T) {
	pass := &engine.Pass{
		Changes: []models.Change{
			{Resource: models.ResourceUser, Name: "ashely", AccountID: "222222222222", Kind: models.ChangeNoOp},
			{Resource: models.ResourceAlias, Name: "auth", AccountID: "222222222222", Kind: models.ChangeNoOp},
			{Resource: models.ResourceGroup, Name: "admins", AccountID: "222222222222", Kind: models.ChangeBlocked, Reason: "group still has members: ashely"},
		},
		State: models.ObservedState{
			"222222222222": &models.AccountSnapshot{AccountID: "222222222222"},
			"333333333333": &models.AccountSnapshot{AccountID: "333333333333", Degraded: true},
		},
		Plan: &models.Plan{},
	}

	eng := &engine.Engine{Executor: executor.New(noClients{})}
	report := eng.Apply(context.Background(), pass)

	counts := report.Counts()
	assert.Equal(t, 2, counts[models.OutcomeNoOp], "converged resources are enumerated, not dropped")
	assert.Equal(t, 1, counts[models.OutcomeBlocked])
	assert.Zero(t, counts[models.OutcomeApplied])

	require.Len(t, report.NoOps, 2)
	assert.Equal(t, "ashely", report.NoOps[0].Name)
	assert.Equal(t, []string{"333333333333"}, report.Degraded)
}

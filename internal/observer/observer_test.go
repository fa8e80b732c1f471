package observer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerryBytes/awsorgctl/internal/observer"
	"github.com/BerryBytes/awsorgctl/models"
)

type fakeReader struct {
	users    []models.ObservedUser
	groups   []models.ObservedGroup
	roles    []models.ObservedRole
	policies []models.ObservedPolicy
	alias    string

	rolesErr error
	aliasErr error
}

func (f *fakeReader) Users(context.Context) ([]models.ObservedUser, error)   { return f.users, nil }
func (f *fakeReader) Groups(context.Context) ([]models.ObservedGroup, error) { return f.groups, nil }
func (f *fakeReader) Roles(context.Context) ([]models.ObservedRole, error) {
	return f.roles, f.rolesErr
}
func (f *fakeReader) LocalPolicies(context.Context) ([]models.ObservedPolicy, error) {
	return f.policies, nil
}
func (f *fakeReader) AccountAlias(context.Context) (string, error) { return f.alias, f.aliasErr }

type fakeClients struct {
	readers map[string]*fakeReader
	errs    map[string]error
}

func (f *fakeClients) ForAccount(_ context.Context, accountID string) (observer.AccountReader, error) {
	if err := f.errs[accountID]; err != nil {
		return nil, err
	}
	return f.readers[accountID], nil
}

func TestObserve_SnapshotsAllAccounts(t *testing.T) {
	clients := &fakeClients{readers: map[string]*fakeReader{
		"222222222222": {
			users:  []models.ObservedUser{{Name: "ashely"}},
			groups: []models.ObservedGroup{{Name: "admins", Members: []string{"ashely"}}},
			alias:  "auth",
		},
		"333333333333": {
			roles: []models.ObservedRole{{Name: "admin"}},
			alias: "dev",
		},
	}}

	state := observer.New(clients).Observe(context.Background(), []string{"222222222222", "333333333333"})

	require.Len(t, state, 2)
	auth := state["222222222222"]
	assert.False(t, auth.Degraded)
	assert.Equal(t, "auth", auth.Alias)
	assert.Contains(t, auth.Users, "ashely")
	assert.Contains(t, auth.Groups, "admins")

	dev := state["333333333333"]
	assert.Contains(t, dev.Roles, "admin")
	assert.Empty(t, state.Degraded())
}

func TestObserve_DegradesFailingAccount(t *testing.T) {
	clients := &fakeClients{
		readers: map[string]*fakeReader{
			"222222222222": {alias: "auth"},
		},
		errs: map[string]error{"333333333333": errors.New("assume role denied")},
	}

	state := observer.New(clients).Observe(context.Background(), []string{"222222222222", "333333333333"})

	assert.False(t, state["222222222222"].Degraded)

	dev := state["333333333333"]
	assert.True(t, dev.Degraded)
	require.Error(t, dev.Cause)
	var oerr *models.ObservationError
	require.True(t, errors.As(dev.Cause, &oerr))
	assert.Equal(t, "333333333333", oerr.AccountID)
	assert.Empty(t, dev.Users)

	assert.Equal(t, []string{"333333333333"}, state.Degraded())
}

func TestObserve_MidObservationFailureDegrades(t *testing.T) {
	clients := &fakeClients{readers: map[string]*fakeReader{
		"222222222222": {
			users:    []models.ObservedUser{{Name: "ashely"}},
			rolesErr: errors.New("throttled"),
		},
	}}

	state := observer.New(clients).Observe(context.Background(), []string{"222222222222"})

	snap := state["222222222222"]
	assert.True(t, snap.Degraded)
	// A degraded snapshot carries no partial entities.
	assert.Empty(t, snap.Users)
}

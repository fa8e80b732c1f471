// Package observer builds the per-account observed-state snapshots a
// reconciliation pass diffs against.
package observer

import (
	"context"
	"log"
	"sync"

	"github.com/BerryBytes/awsorgctl/models"
)

// AccountReader is the observation slice of an account-scoped IAM client.
type AccountReader interface {
	Users(ctx context.Context) ([]models.ObservedUser, error)
	Groups(ctx context.Context) ([]models.ObservedGroup, error)
	Roles(ctx context.Context) ([]models.ObservedRole, error)
	LocalPolicies(ctx context.Context) ([]models.ObservedPolicy, error)
	AccountAlias(ctx context.Context) (string, error)
}

// AccountClients hands out account-scoped readers, assuming the org access
// role as needed.
type AccountClients interface {
	ForAccount(ctx context.Context, accountID string) (AccountReader, error)
}

// Observer fetches observed state for every in-scope account. A failing
// account degrades rather than aborting the pass.
type Observer struct {
	Clients AccountClients
	Workers int
}

func New(clients AccountClients) *Observer {
	return &Observer{Clients: clients, Workers: 10}
}

// Observe snapshots every account concurrently. Degraded accounts carry
// their cause and no entities.
func (o *Observer) Observe(ctx context.Context, accountIDs []string) models.ObservedState {
	workers := o.Workers
	if workers <= 0 {
		workers = 10
	}

	state := make(models.ObservedState, len(accountIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, id := range accountIDs {
		wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snap := o.observeAccount(ctx, accountID)
			mu.Lock()
			state[accountID] = snap
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return state
}

func (o *Observer) observeAccount(ctx context.Context, accountID string) *models.AccountSnapshot {
	snap := &models.AccountSnapshot{
		AccountID: accountID,
		Users:     map[string]models.ObservedUser{},
		Groups:    map[string]models.ObservedGroup{},
		Roles:     map[string]models.ObservedRole{},
		Policies:  map[string]models.ObservedPolicy{},
	}

	degrade := func(err error) *models.AccountSnapshot {
		log.Printf("observer: account %s degraded: %v", accountID, err)
		return &models.AccountSnapshot{
			AccountID: accountID,
			Degraded:  true,
			Cause:     &models.ObservationError{AccountID: accountID, Err: err},
		}
	}

	client, err := o.Clients.ForAccount(ctx, accountID)
	if err != nil {
		return degrade(err)
	}

	users, err := client.Users(ctx)
	if err != nil {
		return degrade(err)
	}
	for _, u := range users {
		snap.Users[u.Name] = u
	}

	groups, err := client.Groups(ctx)
	if err != nil {
		return degrade(err)
	}
	for _, g := range groups {
		snap.Groups[g.Name] = g
	}

	roles, err := client.Roles(ctx)
	if err != nil {
		return degrade(err)
	}
	for _, r := range roles {
		snap.Roles[r.Name] = r
	}

	policies, err := client.LocalPolicies(ctx)
	if err != nil {
		return degrade(err)
	}
	for _, p := range policies {
		snap.Policies[p.Name] = p
	}

	alias, err := client.AccountAlias(ctx)
	if err != nil {
		return degrade(err)
	}
	snap.Alias = alias

	return snap
}

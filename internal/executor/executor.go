// Package executor applies an ordered plan against the remote accounts.
package executor

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/BerryBytes/awsorgctl/models"
)

// AccountWriter is the mutation slice of an account-scoped IAM client.
// Every method is idempotent at the remote-call level.
type AccountWriter interface {
	EnsureUser(ctx context.Context, name, path string) error
	DeleteUser(ctx context.Context, name string) error
	EnsureGroup(ctx context.Context, name, path string) error
	DeleteGroup(ctx context.Context, name string) error
	AddUserToGroup(ctx context.Context, group, user string) error
	RemoveUserFromGroup(ctx context.Context, group, user string) error
	EnsureRole(ctx context.Context, name, path, description string, duration int32, trust *models.PolicyDocument) error
	UpdateRole(ctx context.Context, name, description string, duration int32, trust *models.PolicyDocument) error
	DeleteRole(ctx context.Context, name string) error
	AttachGroupPolicy(ctx context.Context, group, policyRef string) error
	DetachGroupPolicy(ctx context.Context, group, policyRef string) error
	AttachRolePolicy(ctx context.Context, role, policyRef string) error
	DetachRolePolicy(ctx context.Context, role, policyRef string) error
	PutGroupStatement(ctx context.Context, group, policyName string, doc *models.PolicyDocument) error
	DeleteGroupStatement(ctx context.Context, group, policyName string) error
	EnsurePolicy(ctx context.Context, name, description string, doc *models.PolicyDocument) error
	UpdatePolicy(ctx context.Context, name string, doc *models.PolicyDocument) error
	DeletePolicy(ctx context.Context, name string) error
	EnsureLoginProfile(ctx context.Context, user, password string) error
	DeleteLoginProfile(ctx context.Context, user string) error
	EnsureAccessKey(ctx context.Context, user string) error
	DeleteAccessKeys(ctx context.Context, user string) error
	UploadSSHKey(ctx context.Context, user, publicKey string) error
	DeleteSSHKeys(ctx context.Context, user string) error
	EnsureGitCredential(ctx context.Context, user string) error
	DeleteGitCredentials(ctx context.Context, user string) error
	SetAccountAlias(ctx context.Context, alias string) error
}

// AccountClients hands out account-scoped writers.
type AccountClients interface {
	ForAccount(ctx context.Context, accountID string) (AccountWriter, error)
}

// Executor runs plan batches in order. Within a batch, each account gets
// one sequential operation stream; streams across accounts run concurrently
// up to Workers. Account API budgets gate every call.
type Executor struct {
	Clients AccountClients

	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Budget parameters per account.
	BurstBudget    int
	CallsPerSecond float64

	mu      sync.Mutex
	budgets map[string]*tokenBucket
}

func New(clients AccountClients) *Executor {
	return &Executor{
		Clients:        clients,
		Workers:        10,
		MaxAttempts:    5,
		BaseBackoff:    200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BurstBudget:    10,
		CallsPerSecond: 5,
		budgets:        map[string]*tokenBucket{},
	}
}

// Execute applies the plan and returns the run report. Batch boundaries are
// hard barriers; a batch only starts once every operation of the previous
// batch has terminated. Cancellation stops issuing new operations; finished
// mutations stay in place and converge on the next run.
func (e *Executor) Execute(ctx context.Context, plan *models.Plan) *models.RunReport {
	report := models.NewRunReport()

	for _, batch := range plan.Batches {
		byAccount := map[string][]models.Operation{}
		for _, op := range batch {
			byAccount[op.AccountID] = append(byAccount[op.AccountID], op)
		}
		accountIDs := make([]string, 0, len(byAccount))
		for id := range byAccount {
			accountIDs = append(accountIDs, id)
		}
		sort.Strings(accountIDs)

		var wg sync.WaitGroup
		sem := make(chan struct{}, e.workers())
		for _, accountID := range accountIDs {
			wg.Add(1)
			go func(accountID string, ops []models.Operation) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				e.runStream(ctx, accountID, ops, report)
			}(accountID, byAccount[accountID])
		}
		wg.Wait()
	}

	report.Finished = time.Now()
	return report
}

func (e *Executor) workers() int {
	if e.Workers <= 0 {
		return 10
	}
	return e.Workers
}

// runStream executes one account's slice of a batch sequentially.
func (e *Executor) runStream(ctx context.Context, accountID string, ops []models.Operation, report *models.RunReport) {
	writer, err := e.Clients.ForAccount(ctx, accountID)
	if err != nil {
		for _, op := range ops {
			report.Record(models.OperationResult{
				Operation: op,
				Outcome:   models.OutcomeFailed,
				Err:       fmt.Sprintf("no client for account %s: %v", accountID, err),
			})
		}
		return
	}
	for _, op := range ops {
		if ctx.Err() != nil {
			report.Record(models.OperationResult{Operation: op, Outcome: models.OutcomeSkipped, Err: ctx.Err().Error()})
			continue
		}
		report.Record(e.applyWithRetry(ctx, writer, op))
	}
}

// applyWithRetry runs one operation with bounded exponential backoff on
// transient failures.
func (e *Executor) applyWithRetry(ctx context.Context, writer AccountWriter, op models.Operation) models.OperationResult {
	res := models.OperationResult{Operation: op}
	budget := e.budget(op.AccountID)

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		if err := budget.take(ctx); err != nil {
			res.Outcome = models.OutcomeSkipped
			res.Err = err.Error()
			return res
		}

		err := e.apply(ctx, writer, op)
		if err == nil {
			res.Outcome = models.OutcomeApplied
			return res
		}
		if !models.IsTransient(err) || attempt >= e.MaxAttempts {
			res.Outcome = models.OutcomeFailed
			res.Err = err.Error()
			log.Printf("executor: %s failed after %d attempt(s): %v", op.ID(), attempt, err)
			return res
		}

		backoff := e.BaseBackoff << (attempt - 1)
		if backoff > e.MaxBackoff {
			backoff = e.MaxBackoff
		}
		backoff += time.Duration(rand.Int63n(int64(e.BaseBackoff)))
		select {
		case <-ctx.Done():
			res.Outcome = models.OutcomeSkipped
			res.Err = ctx.Err().Error()
			return res
		case <-time.After(backoff):
		}
	}
}

func (e *Executor) budget(accountID string) *tokenBucket {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.budgets == nil {
		e.budgets = map[string]*tokenBucket{}
	}
	b, ok := e.budgets[accountID]
	if !ok {
		b = newTokenBucket(e.BurstBudget, e.CallsPerSecond)
		e.budgets[accountID] = b
	}
	return b
}

// apply dispatches one operation to the account writer.
func (e *Executor) apply(ctx context.Context, w AccountWriter, op models.Operation) error {
	switch op.Kind {
	case models.OpCreateUser:
		return w.EnsureUser(ctx, op.User, op.Path)
	case models.OpDeleteUser:
		return w.DeleteUser(ctx, op.User)
	case models.OpCreateGroup:
		return w.EnsureGroup(ctx, op.Group, op.Path)
	case models.OpDeleteGroup:
		return w.DeleteGroup(ctx, op.Group)
	case models.OpAddUserToGroup:
		return w.AddUserToGroup(ctx, op.Group, op.User)
	case models.OpRemoveUserFromGroup:
		return w.RemoveUserFromGroup(ctx, op.Group, op.User)
	case models.OpCreateRole:
		return w.EnsureRole(ctx, op.Role, op.Path, op.Description, op.Duration, op.Document)
	case models.OpUpdateRole:
		return w.UpdateRole(ctx, op.Role, op.Description, op.Duration, op.Document)
	case models.OpDeleteRole:
		return w.DeleteRole(ctx, op.Role)
	case models.OpAttachGroupPolicy:
		return w.AttachGroupPolicy(ctx, op.Group, op.Policy)
	case models.OpDetachGroupPolicy:
		return w.DetachGroupPolicy(ctx, op.Group, op.Policy)
	case models.OpAttachRolePolicy:
		return w.AttachRolePolicy(ctx, op.Role, op.Policy)
	case models.OpDetachRolePolicy:
		return w.DetachRolePolicy(ctx, op.Role, op.Policy)
	case models.OpPutGroupStatement:
		return w.PutGroupStatement(ctx, op.Group, op.Policy, op.Document)
	case models.OpDeleteGroupStatement:
		return w.DeleteGroupStatement(ctx, op.Group, op.Policy)
	case models.OpCreatePolicy:
		return w.EnsurePolicy(ctx, op.Policy, op.Description, op.Document)
	case models.OpUpdatePolicy:
		return w.UpdatePolicy(ctx, op.Policy, op.Document)
	case models.OpDeletePolicy:
		return w.DeletePolicy(ctx, op.Policy)
	case models.OpEnsureLoginProfile:
		password, err := generatePassword(20)
		if err != nil {
			return fmt.Errorf("generating console password: %w", err)
		}
		return w.EnsureLoginProfile(ctx, op.User, password)
	case models.OpDeleteLoginProfile:
		return w.DeleteLoginProfile(ctx, op.User)
	case models.OpEnsureAccessKey:
		return w.EnsureAccessKey(ctx, op.User)
	case models.OpDeleteAccessKeys:
		return w.DeleteAccessKeys(ctx, op.User)
	case models.OpUploadSSHKey:
		return w.UploadSSHKey(ctx, op.User, op.PublicKey)
	case models.OpDeleteSSHKeys:
		return w.DeleteSSHKeys(ctx, op.User)
	case models.OpEnsureGitCredential:
		return w.EnsureGitCredential(ctx, op.User)
	case models.OpDeleteGitCredentials:
		return w.DeleteGitCredentials(ctx, op.User)
	case models.OpSetAccountAlias:
		return w.SetAccountAlias(ctx, op.Alias)
	}
	return fmt.Errorf("unknown operation kind %s", op.Kind)
}

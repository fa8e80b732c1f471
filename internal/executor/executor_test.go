package executor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerryBytes/awsorgctl/internal/executor"
	"github.com/BerryBytes/awsorgctl/models"
)

const (
	authAccount = "222222222222"
	devAccount  = "333333333333"
)

// fakeWriter records calls and serves queued errors per call key.
type fakeWriter struct {
	mu    sync.Mutex
	calls []string
	errs  map[string][]error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{errs: map[string][]error{}}
}

func (f *fakeWriter) failWith(key string, errs ...error) {
	f.errs[key] = append(f.errs[key], errs...)
}

func (f *fakeWriter) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if queue := f.errs[key]; len(queue) > 0 {
		err := queue[0]
		f.errs[key] = queue[1:]
		return err
	}
	return nil
}

func (f *fakeWriter) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWriter) EnsureUser(_ context.Context, name, _ string) error {
	return f.record("EnsureUser/" + name)
}
func (f *fakeWriter) DeleteUser(_ context.Context, name string) error {
	return f.record("DeleteUser/" + name)
}
func (f *fakeWriter) EnsureGroup(_ context.Context, name, _ string) error {
	return f.record("EnsureGroup/" + name)
}
func (f *fakeWriter) DeleteGroup(_ context.Context, name string) error {
	return f.record("DeleteGroup/" + name)
}
func (f *fakeWriter) AddUserToGroup(_ context.Context, group, user string) error {
	return f.record(fmt.Sprintf("AddUserToGroup/%s/%s", group, user))
}
func (f *fakeWriter) RemoveUserFromGroup(_ context.Context, group, user string) error {
	return f.record(fmt.Sprintf("RemoveUserFromGroup/%s/%s", group, user))
}
func (f *fakeWriter) EnsureRole(_ context.Context, name, _, _ string, _ int32, _ *models.PolicyDocument) error {
	return f.record("EnsureRole/" + name)
}
func (f *fakeWriter) UpdateRole(_ context.Context, name, _ string, _ int32, _ *models.PolicyDocument) error {
	return f.record("UpdateRole/" + name)
}
func (f *fakeWriter) DeleteRole(_ context.Context, name string) error {
	return f.record("DeleteRole/" + name)
}
func (f *fakeWriter) AttachGroupPolicy(_ context.Context, group, policyRef string) error {
	return f.record(fmt.Sprintf("AttachGroupPolicy/%s/%s", group, policyRef))
}
func (f *fakeWriter) DetachGroupPolicy(_ context.Context, group, policyRef string) error {
	return f.record(fmt.Sprintf("DetachGroupPolicy/%s/%s", group, policyRef))
}
func (f *fakeWriter) AttachRolePolicy(_ context.Context, role, policyRef string) error {
	return f.record(fmt.Sprintf("AttachRolePolicy/%s/%s", role, policyRef))
}
func (f *fakeWriter) DetachRolePolicy(_ context.Context, role, policyRef string) error {
	return f.record(fmt.Sprintf("DetachRolePolicy/%s/%s", role, policyRef))
}
func (f *fakeWriter) PutGroupStatement(_ context.Context, group, policyName string, _ *models.PolicyDocument) error {
	return f.record(fmt.Sprintf("PutGroupStatement/%s/%s", group, policyName))
}
func (f *fakeWriter) DeleteGroupStatement(_ context.Context, group, policyName string) error {
	return f.record(fmt.Sprintf("DeleteGroupStatement/%s/%s", group, policyName))
}
func (f *fakeWriter) EnsurePolicy(_ context.Context, name, _ string, _ *models.PolicyDocument) error {
	return f.record("EnsurePolicy/" + name)
}
func (f *fakeWriter) UpdatePolicy(_ context.Context, name string, _ *models.PolicyDocument) error {
	return f.record("UpdatePolicy/" + name)
}
func (f *fakeWriter) DeletePolicy(_ context.Context, name string) error {
	return f.record("DeletePolicy/" + name)
}
func (f *fakeWriter) EnsureLoginProfile(_ context.Context, user, password string) error {
	if len(password) < 12 {
		return fmt.Errorf("weak generated password for %s", user)
	}
	return f.record("EnsureLoginProfile/" + user)
}
func (f *fakeWriter) DeleteLoginProfile(_ context.Context, user string) error {
	return f.record("DeleteLoginProfile/" + user)
}
func (f *fakeWriter) EnsureAccessKey(_ context.Context, user string) error {
	return f.record("EnsureAccessKey/" + user)
}
func (f *fakeWriter) DeleteAccessKeys(_ context.Context, user string) error {
	return f.record("DeleteAccessKeys/" + user)
}
func (f *fakeWriter) UploadSSHKey(_ context.Context, user, _ string) error {
	return f.record("UploadSSHKey/" + user)
}
func (f *fakeWriter) DeleteSSHKeys(_ context.Context, user string) error {
	return f.record("DeleteSSHKeys/" + user)
}
func (f *fakeWriter) EnsureGitCredential(_ context.Context, user string) error {
	return f.record("EnsureGitCredential/" + user)
}
func (f *fakeWriter) DeleteGitCredentials(_ context.Context, user string) error {
	return f.record("DeleteGitCredentials/" + user)
}
func (f *fakeWriter) SetAccountAlias(_ context.Context, alias string) error {
	return f.record("SetAccountAlias/" + alias)
}

type fakeClients struct {
	writers map[string]*fakeWriter
	errs    map[string]error
}

func (f *fakeClients) ForAccount(_ context.Context, accountID string) (executor.AccountWriter, error) {
	if err := f.errs[accountID]; err != nil {
		return nil, err
	}
	return f.writers[accountID], nil
}

func newExecutor(clients *fakeClients) *executor.Executor {
	e := executor.New(clients)
	e.BaseBackoff = time.Millisecond
	e.MaxBackoff = 2 * time.Millisecond
	return e
}

func outcomeOf(t *testing.T, report *models.RunReport, opID string) models.OperationResult {
	t.Helper()
	for _, res := range report.Results {
		if res.Operation.ID() == opID {
			return res
		}
	}
	t.Fatalf("no result for %s", opID)
	return models.OperationResult{}
}

func TestExecute_AppliesBatchesInOrder(t *testing.T) {
	auth := newFakeWriter()
	clients := &fakeClients{writers: map[string]*fakeWriter{authAccount: auth}}

	plan := &models.Plan{Batches: [][]models.Operation{
		{{Kind: models.OpCreateUser, AccountID: authAccount, User: "ashely"}},
		{{Kind: models.OpAddUserToGroup, AccountID: authAccount, Group: "admins", User: "ashely"}},
	}}

	report := newExecutor(clients).Execute(context.Background(), plan)

	assert.False(t, report.Failed())
	assert.Equal(t, []string{"EnsureUser/ashely", "AddUserToGroup/admins/ashely"}, auth.callLog())
	assert.Equal(t, map[models.Outcome]int{models.OutcomeApplied: 2}, report.Counts())
	assert.False(t, report.Finished.IsZero())
}

func TestExecute_RetriesTransientErrors(t *testing.T) {
	auth := newFakeWriter()
	auth.failWith("EnsureUser/ashely", &models.TransientRemoteError{Err: errors.New("rate exceeded")})
	clients := &fakeClients{writers: map[string]*fakeWriter{authAccount: auth}}

	plan := &models.Plan{Batches: [][]models.Operation{
		{{Kind: models.OpCreateUser, AccountID: authAccount, User: "ashely"}},
	}}

	report := newExecutor(clients).Execute(context.Background(), plan)

	res := outcomeOf(t, report, plan.Batches[0][0].ID())
	assert.Equal(t, models.OutcomeApplied, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
}

func TestExecute_GivesUpAfterMaxAttempts(t *testing.T) {
	auth := newFakeWriter()
	transient := &models.TransientRemoteError{Err: errors.New("rate exceeded")}
	auth.failWith("EnsureUser/ashely", transient, transient, transient)
	clients := &fakeClients{writers: map[string]*fakeWriter{authAccount: auth}}

	e := newExecutor(clients)
	e.MaxAttempts = 3

	plan := &models.Plan{Batches: [][]models.Operation{
		{{Kind: models.OpCreateUser, AccountID: authAccount, User: "ashely"}},
	}}
	report := e.Execute(context.Background(), plan)

	res := outcomeOf(t, report, plan.Batches[0][0].ID())
	assert.Equal(t, models.OutcomeFailed, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, report.Failed())
}

func TestExecute_PermanentErrorIsNotRetried(t *testing.T) {
	auth := newFakeWriter()
	auth.failWith("DeleteGroup/admins", errors.New("access denied"))
	clients := &fakeClients{writers: map[string]*fakeWriter{authAccount: auth}}

	plan := &models.Plan{Batches: [][]models.Operation{
		{{Kind: models.OpDeleteGroup, AccountID: authAccount, Group: "admins"}},
	}}
	report := newExecutor(clients).Execute(context.Background(), plan)

	res := outcomeOf(t, report, plan.Batches[0][0].ID())
	assert.Equal(t, models.OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Err, "access denied")
}

func TestExecute_AccountFailureDoesNotStopOthers(t *testing.T) {
	dev := newFakeWriter()
	clients := &fakeClients{
		writers: map[string]*fakeWriter{devAccount: dev},
		errs:    map[string]error{authAccount: errors.New("assume role denied")},
	}

	plan := &models.Plan{Batches: [][]models.Operation{{
		{Kind: models.OpCreateUser, AccountID: authAccount, User: "ashely"},
		{Kind: models.OpCreateRole, AccountID: devAccount, Role: "admin"},
	}}}
	report := newExecutor(clients).Execute(context.Background(), plan)

	failed := outcomeOf(t, report, plan.Batches[0][0].ID())
	assert.Equal(t, models.OutcomeFailed, failed.Outcome)
	assert.Contains(t, failed.Err, "no client for account")

	applied := outcomeOf(t, report, plan.Batches[0][1].ID())
	assert.Equal(t, models.OutcomeApplied, applied.Outcome)
}

func TestExecute_CancelledContextSkipsOperations(t *testing.T) {
	auth := newFakeWriter()
	clients := &fakeClients{writers: map[string]*fakeWriter{authAccount: auth}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &models.Plan{Batches: [][]models.Operation{{
		{Kind: models.OpCreateUser, AccountID: authAccount, User: "ashely"},
		{Kind: models.OpCreateGroup, AccountID: authAccount, Group: "admins"},
	}}}
	report := newExecutor(clients).Execute(ctx, plan)

	counts := report.Counts()
	assert.Equal(t, 2, counts[models.OutcomeSkipped])
	assert.Empty(t, auth.callLog())
}

func TestExecute_SequentialWithinAccount(t *testing.T) {
	auth := newFakeWriter()
	clients := &fakeClients{writers: map[string]*fakeWriter{authAccount: auth}}

	plan := &models.Plan{Batches: [][]models.Operation{{
		{Kind: models.OpCreateUser, AccountID: authAccount, User: "adam"},
		{Kind: models.OpCreateUser, AccountID: authAccount, User: "bea"},
		{Kind: models.OpCreateUser, AccountID: authAccount, User: "cal"},
	}}}
	report := newExecutor(clients).Execute(context.Background(), plan)

	assert.False(t, report.Failed())
	assert.Equal(t, []string{"EnsureUser/adam", "EnsureUser/bea", "EnsureUser/cal"}, auth.callLog())
}

func TestExecute_EmptyPlan(t *testing.T) {
	clients := &fakeClients{writers: map[string]*fakeWriter{}}
	report := newExecutor(clients).Execute(context.Background(), &models.Plan{})

	require.Empty(t, report.Results)
	assert.False(t, report.Failed())
}

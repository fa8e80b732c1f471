package reconcile_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerryBytes/awsorgctl/cmd/reconcile"
	"github.com/BerryBytes/awsorgctl/internal/config"
	"github.com/BerryBytes/awsorgctl/internal/engine"
	"github.com/BerryBytes/awsorgctl/internal/executor"
	"github.com/BerryBytes/awsorgctl/internal/observer"
	"github.com/BerryBytes/awsorgctl/internal/orgclient"
	"github.com/BerryBytes/awsorgctl/models"
	mock_awsorgctl "github.com/BerryBytes/awsorgctl/tests/mock"
	mock_orgclient "github.com/BerryBytes/awsorgctl/tests/mock/orgclient"
)

const cliSpec = `
master_account_id: "111111111111"
auth_account_id: "222222222222"
org_access_role: OrganizationAccountAccessRole

users:
  - Name: ashely
    Email: ashely@example.com
`

// emptyReader reports an account with no IAM entities at all.
type emptyReader struct{}

func (emptyReader) Users(context.Context) ([]models.ObservedUser, error)   { return nil, nil }
func (emptyReader) Groups(context.Context) ([]models.ObservedGroup, error) { return nil, nil }
func (emptyReader) Roles(context.Context) ([]models.ObservedRole, error)   { return nil, nil }
func (emptyReader) LocalPolicies(context.Context) ([]models.ObservedPolicy, error) {
	return nil, nil
}
func (emptyReader) AccountAlias(context.Context) (string, error) { return "", nil }

type emptyReaders struct{}

func (emptyReaders) ForAccount(context.Context, string) (observer.AccountReader, error) {
	return emptyReader{}, nil
}

// recordingWriter embeds the writer interface so only the paths a test plan
// reaches need real implementations.
type recordingWriter struct {
	executor.AccountWriter

	mu    *sync.Mutex
	calls *[]string
}

func (w recordingWriter) record(call string) {
	w.mu.Lock()
	*w.calls = append(*w.calls, call)
	w.mu.Unlock()
}

func (w recordingWriter) EnsureUser(_ context.Context, name, _ string) error {
	w.record("EnsureUser/" + name)
	return nil
}

func (w recordingWriter) EnsureLoginProfile(_ context.Context, user, _ string) error {
	w.record("EnsureLoginProfile/" + user)
	return nil
}

func (w recordingWriter) SetAccountAlias(_ context.Context, alias string) error {
	w.record("SetAccountAlias/" + alias)
	return nil
}

type recordingWriters struct {
	mu    sync.Mutex
	calls []string
}

func (ws *recordingWriters) ForAccount(_ context.Context, accountID string) (executor.AccountWriter, error) {
	return recordingWriter{mu: &ws.mu, calls: &ws.calls}, nil
}

func (ws *recordingWriters) callLog() []string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return append([]string(nil), ws.calls...)
}

type testHarness struct {
	deps    reconcile.Dependencies
	out     *bytes.Buffer
	writers *recordingWriters
}

func newHarness(t *testing.T, ctrl *gomock.Controller, prompter *mock_awsorgctl.MockPrompter) *testHarness {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/spec.yml", []byte(cliSpec), 0o644))

	org := mock_orgclient.NewMockOrganizationsAPI(ctrl)
	org.EXPECT().ListAccounts(gomock.Any(), gomock.Any()).Return(&organizations.ListAccountsOutput{
		Accounts: []orgtypes.Account{
			{Id: aws.String("111111111111"), Name: aws.String("master"), Status: orgtypes.AccountStatusActive},
			{Id: aws.String("222222222222"), Name: aws.String("auth"), Status: orgtypes.AccountStatusActive},
		},
	}, nil).AnyTimes()
	org.EXPECT().DescribeOrganization(gomock.Any(), gomock.Any()).Return(&organizations.DescribeOrganizationOutput{
		Organization: &orgtypes.Organization{MasterAccountId: aws.String("111111111111")},
	}, nil).AnyTimes()

	stsAPI := mock_orgclient.NewMockSTSAPI(ctrl)
	stsAPI.EXPECT().GetCallerIdentity(gomock.Any(), gomock.Any()).Return(&sts.GetCallerIdentityOutput{
		Account: aws.String("111111111111"),
	}, nil).AnyTimes()

	writers := &recordingWriters{}
	out := &bytes.Buffer{}

	deps := reconcile.Dependencies{
		Fs:       fs,
		Prompter: prompter,
		Out:      out,
		BuildEngine: func(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
			orgClient := orgclient.NewClient(aws.Config{}, cfg.OrgAccessRole)
			orgClient.Org = org
			orgClient.STS = stsAPI
			return &engine.Engine{
				Org:      orgClient,
				Observer: observer.New(emptyReaders{}),
				Executor: executor.New(writers),
			}, nil
		},
	}
	return &testHarness{deps: deps, out: out, writers: writers}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestPlanCmd_PrintsOrderedBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, nil)
	err := run(t, reconcile.NewPlanCmd(h.deps), "--spec-file", "/spec.yml")
	require.NoError(t, err)

	out := h.out.String()
	assert.Contains(t, out, "Batch 1:")
	assert.Contains(t, out, "Batch 2:")
	assert.Contains(t, out, "Plan: 4 operation(s) in 2 batch(es)")
	assert.Empty(t, h.writers.callLog(), "plan must not mutate anything")
}

func TestPlanCmd_RequiresSpecFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, nil)
	err := run(t, reconcile.NewPlanCmd(h.deps))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spec file")
}

func TestPlanCmd_ReadsSpecPathFromConfigFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, nil)
	require.NoError(t, afero.WriteFile(h.deps.Fs, "awsorgctl.yml", []byte("spec_file: /spec.yml\n"), 0o644))

	require.NoError(t, run(t, reconcile.NewPlanCmd(h.deps)))
	assert.Contains(t, h.out.String(), "Plan: 4 operation(s)")
}

func TestApplyCmd_ExecutesAfterConfirmation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prompter := mock_awsorgctl.NewMockPrompter(ctrl)
	prompter.EXPECT().PromptForConfirmation("Apply 4 operation(s)").Return(true)

	h := newHarness(t, ctrl, prompter)
	require.NoError(t, run(t, reconcile.NewApplyCmd(h.deps), "--spec-file", "/spec.yml"))

	calls := h.writers.callLog()
	assert.Contains(t, calls, "EnsureUser/ashely")
	assert.Contains(t, calls, "EnsureLoginProfile/ashely")
	assert.Contains(t, calls, "SetAccountAlias/auth")
	assert.Contains(t, calls, "SetAccountAlias/master")
	assert.Contains(t, h.out.String(), "Run finished")
}

func TestApplyCmd_CancelledConfirmation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prompter := mock_awsorgctl.NewMockPrompter(ctrl)
	prompter.EXPECT().PromptForConfirmation(gomock.Any()).Return(false)

	h := newHarness(t, ctrl, prompter)
	require.NoError(t, run(t, reconcile.NewApplyCmd(h.deps), "--spec-file", "/spec.yml"))

	assert.Contains(t, h.out.String(), "Apply cancelled.")
	assert.Empty(t, h.writers.callLog())
}

func TestApplyCmd_AutoApproveSkipsPrompt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no prompter expectations: --auto-approve must never consult it
	h := newHarness(t, ctrl, mock_awsorgctl.NewMockPrompter(ctrl))
	require.NoError(t, run(t, reconcile.NewApplyCmd(h.deps), "--spec-file", "/spec.yml", "--auto-approve"))

	assert.Contains(t, h.writers.callLog(), "EnsureUser/ashely")
}

func TestReportCmd_ListsAccountsAndDrift(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, nil)
	require.NoError(t, run(t, reconcile.NewReportCmd(h.deps), "--spec-file", "/spec.yml"))

	out := h.out.String()
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "master")
	assert.Contains(t, out, "111111111111")
	assert.Contains(t, out, "auth")
	assert.Contains(t, out, "ashely")
	assert.Empty(t, h.writers.callLog(), "report must not mutate anything")
}

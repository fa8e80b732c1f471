package orgclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/BerryBytes/awsorgctl/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Client reads the organization account list and hands out per-account AWS
// configs by assuming the shared org access role.
type Client struct {
	Org        OrganizationsAPI
	STS        STSAPI
	BaseCfg    aws.Config
	AccessRole string

	mu     sync.Mutex
	cfgs   map[string]aws.Config
	homeID string
}

func NewClient(cfg aws.Config, accessRole string) *Client {
	return &Client{
		Org:        organizations.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
		BaseCfg:    cfg,
		AccessRole: accessRole,
		cfgs:       map[string]aws.Config{},
	}
}

// ListAccounts enumerates every member account of the organization.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	input := &organizations.ListAccountsInput{}
	for {
		out, err := c.Org.ListAccounts(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed listing organization accounts: %w", err)
		}
		for _, a := range out.Accounts {
			accounts = append(accounts, models.Account{
				ID:     aws.ToString(a.Id),
				Name:   aws.ToString(a.Name),
				Email:  aws.ToString(a.Email),
				Status: string(a.Status),
			})
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return accounts, nil
}

// ValidateMasterAccount confirms the configured master account id matches
// the organization the credentials actually reach. A mismatch is fatal:
// mutating the wrong organization is not recoverable by a rerun.
func (c *Client) ValidateMasterAccount(ctx context.Context, masterAccountID string) error {
	out, err := c.Org.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		return fmt.Errorf("failed describing organization: %w", err)
	}
	got := aws.ToString(out.Organization.MasterAccountId)
	if got != masterAccountID {
		return fmt.Errorf("master account mismatch: spec declares %s but organization reports %s", masterAccountID, got)
	}
	return nil
}

// CallerAccountID returns the account id of the current credentials.
func (c *Client) CallerAccountID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.homeID != "" {
		id := c.homeID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed resolving caller identity: %w", err)
	}
	id := aws.ToString(out.Account)

	c.mu.Lock()
	c.homeID = id
	c.mu.Unlock()
	return id, nil
}

// Config returns an aws.Config scoped to the target account. The home
// account uses the base credentials directly; every other account goes
// through sts:AssumeRole on the org access role. Configs are cached per
// account for the lifetime of the run.
func (c *Client) Config(ctx context.Context, accountID string) (aws.Config, error) {
	c.mu.Lock()
	if cfg, ok := c.cfgs[accountID]; ok {
		c.mu.Unlock()
		return cfg, nil
	}
	c.mu.Unlock()

	home, err := c.CallerAccountID(ctx)
	if err != nil {
		return aws.Config{}, err
	}

	cfg := c.BaseCfg.Copy()
	if accountID != home {
		roleArn := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, c.AccessRole)
		stsClient, ok := c.STS.(*sts.Client)
		if !ok {
			stsClient = sts.NewFromConfig(c.BaseCfg)
		}
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, roleArn))
	}

	c.mu.Lock()
	c.cfgs[accountID] = cfg
	c.mu.Unlock()
	return cfg, nil
}

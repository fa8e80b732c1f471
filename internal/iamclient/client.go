package iamclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/BerryBytes/awsorgctl/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// Client is an account-scoped IAM adapter. Observation methods normalize
// remote responses into the observed entity shapes; mutation methods are
// idempotent at the call level so a resumed run converges without
// duplication.
type Client struct {
	api       IAMAPI
	accountID string
}

func NewClient(cfg aws.Config, accountID string) *Client {
	return &Client{api: iam.NewFromConfig(cfg), accountID: accountID}
}

// NewClientWithAPI wires an explicit API implementation, used by tests.
func NewClientWithAPI(api IAMAPI, accountID string) *Client {
	return &Client{api: api, accountID: accountID}
}

func (c *Client) AccountID() string { return c.accountID }

// Users fetches every IAM user with its memberships and credential
// sub-resources.
func (c *Client) Users(ctx context.Context) ([]models.ObservedUser, error) {
	var users []models.ObservedUser
	input := &iam.ListUsersInput{}
	for {
		out, err := c.api.ListUsers(ctx, input)
		if err != nil {
			return nil, classify(err, "listing users")
		}
		for _, u := range out.Users {
			user, err := c.userDetail(ctx, aws.ToString(u.UserName), aws.ToString(u.Path), aws.ToString(u.Arn))
			if err != nil {
				return nil, err
			}
			users = append(users, user)
		}
		if !out.IsTruncated {
			break
		}
		input.Marker = out.Marker
	}
	return users, nil
}

func (c *Client) userDetail(ctx context.Context, name, path, arn string) (models.ObservedUser, error) {
	user := models.ObservedUser{Name: name, Path: path, Arn: arn}

	groupsOut, err := c.api.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{UserName: aws.String(name)})
	if err != nil {
		return user, classify(err, fmt.Sprintf("listing groups for user %s", name))
	}
	for _, g := range groupsOut.Groups {
		user.Groups = append(user.Groups, aws.ToString(g.GroupName))
	}

	if _, err := c.api.GetLoginProfile(ctx, &iam.GetLoginProfileInput{UserName: aws.String(name)}); err == nil {
		user.HasLoginProfile = true
	} else if !isNotFound(err) {
		return user, classify(err, fmt.Sprintf("fetching login profile for user %s", name))
	}

	keysOut, err := c.api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(name)})
	if err != nil {
		return user, classify(err, fmt.Sprintf("listing access keys for user %s", name))
	}
	for _, k := range keysOut.AccessKeyMetadata {
		if k.Status == iamtypes.StatusTypeActive {
			user.AccessKeyIDs = append(user.AccessKeyIDs, aws.ToString(k.AccessKeyId))
		}
	}

	sshOut, err := c.api.ListSSHPublicKeys(ctx, &iam.ListSSHPublicKeysInput{UserName: aws.String(name)})
	if err != nil {
		return user, classify(err, fmt.Sprintf("listing ssh keys for user %s", name))
	}
	for _, k := range sshOut.SSHPublicKeys {
		keyOut, err := c.api.GetSSHPublicKey(ctx, &iam.GetSSHPublicKeyInput{
			UserName:       aws.String(name),
			SSHPublicKeyId: k.SSHPublicKeyId,
			Encoding:       iamtypes.EncodingTypeSsh,
		})
		if err != nil {
			return user, classify(err, fmt.Sprintf("fetching ssh key for user %s", name))
		}
		user.SSHPublicKeys = append(user.SSHPublicKeys, models.ObservedSSHKey{
			ID:          aws.ToString(k.SSHPublicKeyId),
			Fingerprint: aws.ToString(keyOut.SSHPublicKey.Fingerprint),
		})
	}

	credsOut, err := c.api.ListServiceSpecificCredentials(ctx, &iam.ListServiceSpecificCredentialsInput{UserName: aws.String(name)})
	if err != nil {
		return user, classify(err, fmt.Sprintf("listing git credentials for user %s", name))
	}
	for _, cred := range credsOut.ServiceSpecificCredentials {
		user.GitCredentials = append(user.GitCredentials, aws.ToString(cred.ServiceSpecificCredentialId))
	}

	return user, nil
}

// Groups fetches every IAM group with members, attachments and inline
// policy documents.
func (c *Client) Groups(ctx context.Context) ([]models.ObservedGroup, error) {
	var groups []models.ObservedGroup
	input := &iam.ListGroupsInput{}
	for {
		out, err := c.api.ListGroups(ctx, input)
		if err != nil {
			return nil, classify(err, "listing groups")
		}
		for _, g := range out.Groups {
			group, err := c.groupDetail(ctx, aws.ToString(g.GroupName), aws.ToString(g.Path), aws.ToString(g.Arn))
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
		}
		if !out.IsTruncated {
			break
		}
		input.Marker = out.Marker
	}
	return groups, nil
}

func (c *Client) groupDetail(ctx context.Context, name, path, arn string) (models.ObservedGroup, error) {
	group := models.ObservedGroup{
		Name:           name,
		Path:           path,
		Arn:            arn,
		InlinePolicies: map[string]*models.PolicyDocument{},
	}

	getInput := &iam.GetGroupInput{GroupName: aws.String(name)}
	for {
		out, err := c.api.GetGroup(ctx, getInput)
		if err != nil {
			return group, classify(err, fmt.Sprintf("fetching group %s", name))
		}
		for _, u := range out.Users {
			group.Members = append(group.Members, aws.ToString(u.UserName))
		}
		if !out.IsTruncated {
			break
		}
		getInput.Marker = out.Marker
	}

	attachedOut, err := c.api.ListAttachedGroupPolicies(ctx, &iam.ListAttachedGroupPoliciesInput{GroupName: aws.String(name)})
	if err != nil {
		return group, classify(err, fmt.Sprintf("listing attached policies for group %s", name))
	}
	for _, p := range attachedOut.AttachedPolicies {
		group.AttachedPolicies = append(group.AttachedPolicies, models.AttachedPolicy{
			Name: aws.ToString(p.PolicyName),
			Arn:  aws.ToString(p.PolicyArn),
		})
	}

	inlineOut, err := c.api.ListGroupPolicies(ctx, &iam.ListGroupPoliciesInput{GroupName: aws.String(name)})
	if err != nil {
		return group, classify(err, fmt.Sprintf("listing inline policies for group %s", name))
	}
	for _, policyName := range inlineOut.PolicyNames {
		docOut, err := c.api.GetGroupPolicy(ctx, &iam.GetGroupPolicyInput{
			GroupName:  aws.String(name),
			PolicyName: aws.String(policyName),
		})
		if err != nil {
			return group, classify(err, fmt.Sprintf("fetching inline policy %s of group %s", policyName, name))
		}
		doc, err := decodeDocument(aws.ToString(docOut.PolicyDocument))
		if err != nil {
			return group, fmt.Errorf("inline policy %s of group %s: %w", policyName, name, err)
		}
		group.InlinePolicies[policyName] = doc
	}

	return group, nil
}

// Roles fetches every IAM role with its decoded trust document and
// attachments.
func (c *Client) Roles(ctx context.Context) ([]models.ObservedRole, error) {
	var roles []models.ObservedRole
	input := &iam.ListRolesInput{}
	for {
		out, err := c.api.ListRoles(ctx, input)
		if err != nil {
			return nil, classify(err, "listing roles")
		}
		for _, r := range out.Roles {
			role := models.ObservedRole{
				Name:        aws.ToString(r.RoleName),
				Path:        aws.ToString(r.Path),
				Arn:         aws.ToString(r.Arn),
				Description: aws.ToString(r.Description),
			}
			if r.MaxSessionDuration != nil {
				role.MaxSessionDuration = *r.MaxSessionDuration
			}
			if r.AssumeRolePolicyDocument != nil {
				doc, err := decodeDocument(*r.AssumeRolePolicyDocument)
				if err != nil {
					return nil, fmt.Errorf("trust policy of role %s: %w", role.Name, err)
				}
				role.TrustPolicy = doc
			}
			attachedOut, err := c.api.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: r.RoleName})
			if err != nil {
				return nil, classify(err, fmt.Sprintf("listing attached policies for role %s", role.Name))
			}
			for _, p := range attachedOut.AttachedPolicies {
				role.AttachedPolicies = append(role.AttachedPolicies, models.AttachedPolicy{
					Name: aws.ToString(p.PolicyName),
					Arn:  aws.ToString(p.PolicyArn),
				})
			}
			roles = append(roles, role)
		}
		if !out.IsTruncated {
			break
		}
		input.Marker = out.Marker
	}
	return roles, nil
}

// LocalPolicies fetches every customer-managed policy with its default
// version document.
func (c *Client) LocalPolicies(ctx context.Context) ([]models.ObservedPolicy, error) {
	var policies []models.ObservedPolicy
	input := &iam.ListPoliciesInput{Scope: iamtypes.PolicyScopeTypeLocal}
	for {
		out, err := c.api.ListPolicies(ctx, input)
		if err != nil {
			return nil, classify(err, "listing policies")
		}
		for _, p := range out.Policies {
			policy := models.ObservedPolicy{
				Name: aws.ToString(p.PolicyName),
				Arn:  aws.ToString(p.Arn),
				Path: aws.ToString(p.Path),
			}
			verOut, err := c.api.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
				PolicyArn: p.Arn,
				VersionId: p.DefaultVersionId,
			})
			if err != nil {
				return nil, classify(err, fmt.Sprintf("fetching policy version for %s", policy.Name))
			}
			doc, err := decodeDocument(aws.ToString(verOut.PolicyVersion.Document))
			if err != nil {
				return nil, fmt.Errorf("document of policy %s: %w", policy.Name, err)
			}
			policy.Document = doc
			policies = append(policies, policy)
		}
		if !out.IsTruncated {
			break
		}
		input.Marker = out.Marker
	}
	return policies, nil
}

// AccountAlias returns the account's IAM alias, or "" when none is set.
func (c *Client) AccountAlias(ctx context.Context) (string, error) {
	out, err := c.api.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{})
	if err != nil {
		return "", classify(err, "listing account aliases")
	}
	if len(out.AccountAliases) == 0 {
		return "", nil
	}
	return out.AccountAliases[0], nil
}

// decodeDocument parses the URL-encoded JSON bodies IAM returns for policy
// and trust documents.
func decodeDocument(raw string) (*models.PolicyDocument, error) {
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	return models.ParsePolicyDocument(raw)
}

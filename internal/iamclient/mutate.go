package iamclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerryBytes/awsorgctl/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// PolicyArn resolves a policy reference to an ARN. Full ARNs (AWS-managed
// references) pass through; bare names resolve to this account's
// customer-managed policy.
func (c *Client) PolicyArn(ref string) string {
	if strings.HasPrefix(ref, "arn:") {
		return ref
	}
	return fmt.Sprintf("arn:aws:iam::%s:policy/%s", c.accountID, ref)
}

// EnsureUser creates the user, treating an existing one as success.
func (c *Client) EnsureUser(ctx context.Context, name, path string) error {
	_, err := c.api.CreateUser(ctx, &iam.CreateUserInput{
		UserName: aws.String(name),
		Path:     aws.String(path),
	})
	if err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("creating user %s", name))
	}
	return nil
}

// DeleteUser removes the user, treating an already-absent one as success.
func (c *Client) DeleteUser(ctx context.Context, name string) error {
	_, err := c.api.DeleteUser(ctx, &iam.DeleteUserInput{UserName: aws.String(name)})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("deleting user %s", name))
	}
	return nil
}

func (c *Client) EnsureGroup(ctx context.Context, name, path string) error {
	_, err := c.api.CreateGroup(ctx, &iam.CreateGroupInput{
		GroupName: aws.String(name),
		Path:      aws.String(path),
	})
	if err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("creating group %s", name))
	}
	return nil
}

func (c *Client) DeleteGroup(ctx context.Context, name string) error {
	_, err := c.api.DeleteGroup(ctx, &iam.DeleteGroupInput{GroupName: aws.String(name)})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("deleting group %s", name))
	}
	return nil
}

func (c *Client) AddUserToGroup(ctx context.Context, group, user string) error {
	_, err := c.api.AddUserToGroup(ctx, &iam.AddUserToGroupInput{
		GroupName: aws.String(group),
		UserName:  aws.String(user),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("adding user %s to group %s", user, group))
	}
	return nil
}

func (c *Client) RemoveUserFromGroup(ctx context.Context, group, user string) error {
	_, err := c.api.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{
		GroupName: aws.String(group),
		UserName:  aws.String(user),
	})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("removing user %s from group %s", user, group))
	}
	return nil
}

// EnsureRole creates the role with its trust policy. An existing role is
// success; the differ emits separate update operations for drifted trust
// documents or settings.
func (c *Client) EnsureRole(ctx context.Context, name, path, description string, duration int32, trust *models.PolicyDocument) error {
	trustJSON, err := trust.Marshal()
	if err != nil {
		return fmt.Errorf("trust policy for role %s: %w", name, err)
	}
	_, err = c.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		Path:                     aws.String(path),
		Description:              aws.String(description),
		MaxSessionDuration:       aws.Int32(duration),
		AssumeRolePolicyDocument: aws.String(trustJSON),
	})
	if err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("creating role %s", name))
	}
	return nil
}

// UpdateRole converges description, session duration and trust document of
// an existing role.
func (c *Client) UpdateRole(ctx context.Context, name, description string, duration int32, trust *models.PolicyDocument) error {
	_, err := c.api.UpdateRole(ctx, &iam.UpdateRoleInput{
		RoleName:           aws.String(name),
		Description:        aws.String(description),
		MaxSessionDuration: aws.Int32(duration),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("updating role %s", name))
	}
	if trust != nil {
		trustJSON, err := trust.Marshal()
		if err != nil {
			return fmt.Errorf("trust policy for role %s: %w", name, err)
		}
		_, err = c.api.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(name),
			PolicyDocument: aws.String(trustJSON),
		})
		if err != nil {
			return classify(err, fmt.Sprintf("updating trust policy of role %s", name))
		}
	}
	return nil
}

func (c *Client) DeleteRole(ctx context.Context, name string) error {
	_, err := c.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("deleting role %s", name))
	}
	return nil
}

func (c *Client) AttachGroupPolicy(ctx context.Context, group, policyRef string) error {
	_, err := c.api.AttachGroupPolicy(ctx, &iam.AttachGroupPolicyInput{
		GroupName: aws.String(group),
		PolicyArn: aws.String(c.PolicyArn(policyRef)),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("attaching policy %s to group %s", policyRef, group))
	}
	return nil
}

func (c *Client) DetachGroupPolicy(ctx context.Context, group, policyRef string) error {
	_, err := c.api.DetachGroupPolicy(ctx, &iam.DetachGroupPolicyInput{
		GroupName: aws.String(group),
		PolicyArn: aws.String(c.PolicyArn(policyRef)),
	})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("detaching policy %s from group %s", policyRef, group))
	}
	return nil
}

func (c *Client) AttachRolePolicy(ctx context.Context, role, policyRef string) error {
	_, err := c.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(role),
		PolicyArn: aws.String(c.PolicyArn(policyRef)),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("attaching policy %s to role %s", policyRef, role))
	}
	return nil
}

func (c *Client) DetachRolePolicy(ctx context.Context, role, policyRef string) error {
	_, err := c.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(role),
		PolicyArn: aws.String(c.PolicyArn(policyRef)),
	})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("detaching policy %s from role %s", policyRef, role))
	}
	return nil
}

// PutGroupStatement writes (or overwrites) a named inline policy on a
// group. PutGroupPolicy is naturally idempotent.
func (c *Client) PutGroupStatement(ctx context.Context, group, policyName string, doc *models.PolicyDocument) error {
	body, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("inline policy %s for group %s: %w", policyName, group, err)
	}
	_, err = c.api.PutGroupPolicy(ctx, &iam.PutGroupPolicyInput{
		GroupName:      aws.String(group),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(body),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("putting inline policy %s on group %s", policyName, group))
	}
	return nil
}

func (c *Client) DeleteGroupStatement(ctx context.Context, group, policyName string) error {
	_, err := c.api.DeleteGroupPolicy(ctx, &iam.DeleteGroupPolicyInput{
		GroupName:  aws.String(group),
		PolicyName: aws.String(policyName),
	})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("deleting inline policy %s from group %s", policyName, group))
	}
	return nil
}

// EnsurePolicy creates a customer-managed policy with the given document.
func (c *Client) EnsurePolicy(ctx context.Context, name, description string, doc *models.PolicyDocument) error {
	body, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("policy %s: %w", name, err)
	}
	_, err = c.api.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		Description:    aws.String(description),
		PolicyDocument: aws.String(body),
	})
	if err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("creating policy %s", name))
	}
	return nil
}

// UpdatePolicy writes a new default version of an existing policy, pruning
// old versions first so the five-version service limit never blocks the
// write.
func (c *Client) UpdatePolicy(ctx context.Context, name string, doc *models.PolicyDocument) error {
	arn := c.PolicyArn(name)
	versions, err := c.api.ListPolicyVersions(ctx, &iam.ListPolicyVersionsInput{PolicyArn: aws.String(arn)})
	if err != nil {
		return classify(err, fmt.Sprintf("listing versions of policy %s", name))
	}
	if len(versions.Versions) >= 5 {
		oldest := versions.Versions[len(versions.Versions)-1]
		if !oldest.IsDefaultVersion {
			if _, err := c.api.DeletePolicyVersion(ctx, &iam.DeletePolicyVersionInput{
				PolicyArn: aws.String(arn),
				VersionId: oldest.VersionId,
			}); err != nil {
				return classify(err, fmt.Sprintf("pruning version of policy %s", name))
			}
		}
	}
	body, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("policy %s: %w", name, err)
	}
	_, err = c.api.CreatePolicyVersion(ctx, &iam.CreatePolicyVersionInput{
		PolicyArn:      aws.String(arn),
		PolicyDocument: aws.String(body),
		SetAsDefault:   true,
	})
	if err != nil {
		return classify(err, fmt.Sprintf("updating policy %s", name))
	}
	return nil
}

// DeletePolicy removes a customer-managed policy and its non-default
// versions.
func (c *Client) DeletePolicy(ctx context.Context, name string) error {
	arn := c.PolicyArn(name)
	versions, err := c.api.ListPolicyVersions(ctx, &iam.ListPolicyVersionsInput{PolicyArn: aws.String(arn)})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return classify(err, fmt.Sprintf("listing versions of policy %s", name))
	}
	for _, v := range versions.Versions {
		if v.IsDefaultVersion {
			continue
		}
		if _, err := c.api.DeletePolicyVersion(ctx, &iam.DeletePolicyVersionInput{
			PolicyArn: aws.String(arn),
			VersionId: v.VersionId,
		}); err != nil && !isNotFound(err) {
			return classify(err, fmt.Sprintf("deleting version of policy %s", name))
		}
	}
	_, err = c.api.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: aws.String(arn)})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("deleting policy %s", name))
	}
	return nil
}

// EnsureLoginProfile gives the user console access with a generated
// password that must be changed at first sign-in.
func (c *Client) EnsureLoginProfile(ctx context.Context, user, password string) error {
	_, err := c.api.CreateLoginProfile(ctx, &iam.CreateLoginProfileInput{
		UserName:              aws.String(user),
		Password:              aws.String(password),
		PasswordResetRequired: true,
	})
	if err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("creating login profile for %s", user))
	}
	return nil
}

func (c *Client) DeleteLoginProfile(ctx context.Context, user string) error {
	_, err := c.api.DeleteLoginProfile(ctx, &iam.DeleteLoginProfileInput{UserName: aws.String(user)})
	if err != nil && !isNotFound(err) {
		return classify(err, fmt.Sprintf("deleting login profile for %s", user))
	}
	return nil
}

// EnsureAccessKey creates an access key only when the user has none active,
// keeping the operation convergent across retries.
func (c *Client) EnsureAccessKey(ctx context.Context, user string) error {
	out, err := c.api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(user)})
	if err != nil {
		return classify(err, fmt.Sprintf("listing access keys for %s", user))
	}
	if len(out.AccessKeyMetadata) > 0 {
		return nil
	}
	if _, err := c.api.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(user)}); err != nil {
		return classify(err, fmt.Sprintf("creating access key for %s", user))
	}
	return nil
}

// DeleteAccessKeys removes every access key of the user.
func (c *Client) DeleteAccessKeys(ctx context.Context, user string) error {
	out, err := c.api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(user)})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return classify(err, fmt.Sprintf("listing access keys for %s", user))
	}
	for _, k := range out.AccessKeyMetadata {
		if _, err := c.api.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
			UserName:    aws.String(user),
			AccessKeyId: k.AccessKeyId,
		}); err != nil && !isNotFound(err) {
			return classify(err, fmt.Sprintf("deleting access key for %s", user))
		}
	}
	return nil
}

// UploadSSHKey registers public key material, treating a duplicate upload
// as success.
func (c *Client) UploadSSHKey(ctx context.Context, user, publicKey string) error {
	_, err := c.api.UploadSSHPublicKey(ctx, &iam.UploadSSHPublicKeyInput{
		UserName:         aws.String(user),
		SSHPublicKeyBody: aws.String(publicKey),
	})
	if err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("uploading ssh key for %s", user))
	}
	return nil
}

// DeleteSSHKeys removes every uploaded SSH public key of the user.
func (c *Client) DeleteSSHKeys(ctx context.Context, user string) error {
	out, err := c.api.ListSSHPublicKeys(ctx, &iam.ListSSHPublicKeysInput{UserName: aws.String(user)})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return classify(err, fmt.Sprintf("listing ssh keys for %s", user))
	}
	for _, k := range out.SSHPublicKeys {
		if _, err := c.api.DeleteSSHPublicKey(ctx, &iam.DeleteSSHPublicKeyInput{
			UserName:       aws.String(user),
			SSHPublicKeyId: k.SSHPublicKeyId,
		}); err != nil && !isNotFound(err) {
			return classify(err, fmt.Sprintf("deleting ssh key for %s", user))
		}
	}
	return nil
}

// EnsureGitCredential issues a codecommit service credential when the user
// has none.
func (c *Client) EnsureGitCredential(ctx context.Context, user string) error {
	out, err := c.api.ListServiceSpecificCredentials(ctx, &iam.ListServiceSpecificCredentialsInput{UserName: aws.String(user)})
	if err != nil {
		return classify(err, fmt.Sprintf("listing git credentials for %s", user))
	}
	if len(out.ServiceSpecificCredentials) > 0 {
		return nil
	}
	_, err = c.api.CreateServiceSpecificCredential(ctx, &iam.CreateServiceSpecificCredentialInput{
		UserName:    aws.String(user),
		ServiceName: aws.String("codecommit.amazonaws.com"),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("creating git credential for %s", user))
	}
	return nil
}

// DeleteGitCredentials removes every service-specific credential of the
// user.
func (c *Client) DeleteGitCredentials(ctx context.Context, user string) error {
	out, err := c.api.ListServiceSpecificCredentials(ctx, &iam.ListServiceSpecificCredentialsInput{UserName: aws.String(user)})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return classify(err, fmt.Sprintf("listing git credentials for %s", user))
	}
	for _, cred := range out.ServiceSpecificCredentials {
		if _, err := c.api.DeleteServiceSpecificCredential(ctx, &iam.DeleteServiceSpecificCredentialInput{
			UserName:                    aws.String(user),
			ServiceSpecificCredentialId: cred.ServiceSpecificCredentialId,
		}); err != nil && !isNotFound(err) {
			return classify(err, fmt.Sprintf("deleting git credential for %s", user))
		}
	}
	return nil
}

// SetAccountAlias converges the account alias: a matching alias is a no-op,
// a different one is replaced.
func (c *Client) SetAccountAlias(ctx context.Context, alias string) error {
	current, err := c.AccountAlias(ctx)
	if err != nil {
		return err
	}
	if current == alias {
		return nil
	}
	if current != "" {
		if _, err := c.api.DeleteAccountAlias(ctx, &iam.DeleteAccountAliasInput{AccountAlias: aws.String(current)}); err != nil && !isNotFound(err) {
			return classify(err, fmt.Sprintf("deleting account alias %s", current))
		}
	}
	if _, err := c.api.CreateAccountAlias(ctx, &iam.CreateAccountAliasInput{AccountAlias: aws.String(alias)}); err != nil && !isAlreadyExists(err) {
		return classify(err, fmt.Sprintf("creating account alias %s", alias))
	}
	return nil
}

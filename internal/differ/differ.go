// Package differ compares desired entities against observed snapshots and
// emits the typed changeset a pass will execute.
package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BerryBytes/awsorgctl/internal/spec"
	"github.com/BerryBytes/awsorgctl/internal/sshkeys"
	"github.com/BerryBytes/awsorgctl/models"
)

// Differ holds one pass's inputs. Both are read-only.
type Differ struct {
	Spec  *spec.Model
	State models.ObservedState
}

func New(m *spec.Model, state models.ObservedState) *Differ {
	return &Differ{Spec: m, State: state}
}

// Diff produces the full changeset for the pass. Entities scoped to a
// degraded account are skipped entirely; callers surface those accounts via
// the run report.
func (d *Differ) Diff() []models.Change {
	var changes []models.Change
	changes = append(changes, d.diffPolicies()...)
	changes = append(changes, d.diffUsers()...)
	changes = append(changes, d.diffGroups()...)
	changes = append(changes, d.diffDelegations()...)
	changes = append(changes, d.diffLocalUsers()...)
	changes = append(changes, d.diffAliases()...)
	return changes
}

// snapshot returns the account snapshot, or nil when the account is
// degraded or unobserved and must not be diffed.
func (d *Differ) snapshot(accountID string) *models.AccountSnapshot {
	snap, ok := d.State[accountID]
	if !ok || snap.Degraded {
		return nil
	}
	return snap
}

func (d *Differ) diffUsers() []models.Change {
	snap := d.snapshot(d.Spec.AuthAccountID)
	if snap == nil {
		return nil
	}
	var changes []models.Change
	for _, u := range d.Spec.Users {
		changes = append(changes, diffUserLike(d.Spec.AuthAccountID, models.ResourceUser, u.Name, u.Path, u.Ensure, u.AuthMethods, u.SSHPublicKeys, snap))
	}
	return changes
}

func (d *Differ) diffLocalUsers() []models.Change {
	var changes []models.Change
	for _, lu := range d.Spec.LocalUsers {
		for _, accountID := range lu.Accounts {
			snap := d.snapshot(accountID)
			if snap == nil {
				continue
			}
			changes = append(changes, diffUserLike(accountID, models.ResourceLocalUser, lu.Name, lu.Path, lu.Ensure, lu.AuthMethods, lu.SSHPublicKeys, snap))
		}
	}
	return changes
}

// diffUserLike reconciles one user in one account, including each declared
// auth method as an independent sub-resource.
func diffUserLike(accountID string, resource models.ResourceType, name, path string, ensure models.Ensure, methods []models.AuthMethod, sshKeys []string, snap *models.AccountSnapshot) models.Change {
	observed, exists := snap.Users[name]
	change := models.Change{Resource: resource, Name: name, AccountID: accountID}

	switch {
	case ensure == models.EnsureAbsent && !exists:
		change.Kind = models.ChangeNoOp

	case ensure == models.EnsureAbsent:
		change.Kind = models.ChangeDelete
		for _, g := range observed.Groups {
			change.Ops = append(change.Ops, models.Operation{Kind: models.OpRemoveUserFromGroup, AccountID: accountID, User: name, Group: g})
		}
		change.Ops = append(change.Ops, credentialTeardownOps(accountID, name, observed)...)
		change.Ops = append(change.Ops, models.Operation{Kind: models.OpDeleteUser, AccountID: accountID, User: name})

	case !exists:
		change.Kind = models.ChangeCreate
		change.Ops = append(change.Ops, models.Operation{Kind: models.OpCreateUser, AccountID: accountID, User: name, Path: path})
		change.Ops = append(change.Ops, credentialEnsureOps(accountID, name, methods, sshKeys, models.ObservedUser{})...)

	default:
		ops := credentialEnsureOps(accountID, name, methods, sshKeys, observed)
		ops = append(ops, credentialExcessOps(accountID, name, methods, observed)...)
		if len(ops) == 0 {
			change.Kind = models.ChangeNoOp
		} else {
			change.Kind = models.ChangeUpdate
			change.Ops = ops
		}
	}
	return change
}

func hasMethod(methods []models.AuthMethod, m models.AuthMethod) bool {
	for _, have := range methods {
		if have == m {
			return true
		}
	}
	return false
}

// credentialEnsureOps emits one create per declared method sub-resource not
// yet observed.
func credentialEnsureOps(accountID, name string, methods []models.AuthMethod, sshKeys []string, observed models.ObservedUser) []models.Operation {
	var ops []models.Operation
	if hasMethod(methods, models.AuthMethodConsole) && !observed.HasLoginProfile {
		ops = append(ops, models.Operation{Kind: models.OpEnsureLoginProfile, AccountID: accountID, User: name})
	}
	if hasMethod(methods, models.AuthMethodAccessKey) && len(observed.AccessKeyIDs) == 0 {
		ops = append(ops, models.Operation{Kind: models.OpEnsureAccessKey, AccountID: accountID, User: name})
	}
	if hasMethod(methods, models.AuthMethodSSHKey) {
		have := map[string]bool{}
		for _, k := range observed.SSHPublicKeys {
			have[k.Fingerprint] = true
		}
		for _, material := range sshKeys {
			fp, err := sshkeys.Fingerprint(material)
			if err != nil || !have[fp] {
				ops = append(ops, models.Operation{Kind: models.OpUploadSSHKey, AccountID: accountID, User: name, PublicKey: material})
			}
		}
	}
	if hasMethod(methods, models.AuthMethodHTTPSGit) && len(observed.GitCredentials) == 0 {
		ops = append(ops, models.Operation{Kind: models.OpEnsureGitCredential, AccountID: accountID, User: name})
	}
	return ops
}

// credentialExcessOps removes sub-resources whose method is no longer
// declared.
func credentialExcessOps(accountID, name string, methods []models.AuthMethod, observed models.ObservedUser) []models.Operation {
	var ops []models.Operation
	if !hasMethod(methods, models.AuthMethodConsole) && observed.HasLoginProfile {
		ops = append(ops, models.Operation{Kind: models.OpDeleteLoginProfile, AccountID: accountID, User: name})
	}
	if !hasMethod(methods, models.AuthMethodAccessKey) && len(observed.AccessKeyIDs) > 0 {
		ops = append(ops, models.Operation{Kind: models.OpDeleteAccessKeys, AccountID: accountID, User: name})
	}
	if !hasMethod(methods, models.AuthMethodSSHKey) && len(observed.SSHPublicKeys) > 0 {
		ops = append(ops, models.Operation{Kind: models.OpDeleteSSHKeys, AccountID: accountID, User: name})
	}
	if !hasMethod(methods, models.AuthMethodHTTPSGit) && len(observed.GitCredentials) > 0 {
		ops = append(ops, models.Operation{Kind: models.OpDeleteGitCredentials, AccountID: accountID, User: name})
	}
	return ops
}

func credentialTeardownOps(accountID, name string, observed models.ObservedUser) []models.Operation {
	var ops []models.Operation
	if observed.HasLoginProfile {
		ops = append(ops, models.Operation{Kind: models.OpDeleteLoginProfile, AccountID: accountID, User: name})
	}
	if len(observed.AccessKeyIDs) > 0 {
		ops = append(ops, models.Operation{Kind: models.OpDeleteAccessKeys, AccountID: accountID, User: name})
	}
	if len(observed.SSHPublicKeys) > 0 {
		ops = append(ops, models.Operation{Kind: models.OpDeleteSSHKeys, AccountID: accountID, User: name})
	}
	if len(observed.GitCredentials) > 0 {
		ops = append(ops, models.Operation{Kind: models.OpDeleteGitCredentials, AccountID: accountID, User: name})
	}
	return ops
}

func (d *Differ) diffGroups() []models.Change {
	snap := d.snapshot(d.Spec.AuthAccountID)
	if snap == nil {
		return nil
	}
	accountID := d.Spec.AuthAccountID

	var changes []models.Change
	for _, g := range d.Spec.Groups {
		observed, exists := snap.Groups[g.Name]
		change := models.Change{Resource: models.ResourceGroup, Name: g.Name, AccountID: accountID}

		switch {
		case g.Ensure == models.EnsureAbsent && !exists:
			change.Kind = models.ChangeNoOp

		case g.Ensure == models.EnsureAbsent:
			if len(observed.Members) > 0 {
				change.Kind = models.ChangeBlocked
				change.Reason = fmt.Sprintf("group %s still has members: %s", g.Name, strings.Join(observed.Members, ", "))
				break
			}
			change.Kind = models.ChangeDelete
			for _, p := range observed.AttachedPolicies {
				change.Ops = append(change.Ops, models.Operation{Kind: models.OpDetachGroupPolicy, AccountID: accountID, Group: g.Name, Policy: p.Arn})
			}
			for inline := range observed.InlinePolicies {
				change.Ops = append(change.Ops, models.Operation{Kind: models.OpDeleteGroupStatement, AccountID: accountID, Group: g.Name, Policy: inline})
			}
			change.Ops = append(change.Ops, models.Operation{Kind: models.OpDeleteGroup, AccountID: accountID, Group: g.Name})

		case !exists:
			change.Kind = models.ChangeCreate
			change.Ops = append(change.Ops, models.Operation{Kind: models.OpCreateGroup, AccountID: accountID, Group: g.Name, Path: g.Path})
			for _, member := range g.Members {
				change.Ops = append(change.Ops, models.Operation{Kind: models.OpAddUserToGroup, AccountID: accountID, Group: g.Name, User: member})
			}
			for _, p := range g.Policies {
				change.Ops = append(change.Ops, models.Operation{Kind: models.OpAttachGroupPolicy, AccountID: accountID, Group: g.Name, Policy: p})
			}

		default:
			var ops []models.Operation
			add, remove := diffSets(g.Members, observed.Members)
			for _, member := range add {
				ops = append(ops, models.Operation{Kind: models.OpAddUserToGroup, AccountID: accountID, Group: g.Name, User: member})
			}
			for _, member := range remove {
				ops = append(ops, models.Operation{Kind: models.OpRemoveUserFromGroup, AccountID: accountID, Group: g.Name, User: member})
			}
			attach, detach := diffAttachments(g.Policies, observed.AttachedPolicies)
			for _, p := range attach {
				ops = append(ops, models.Operation{Kind: models.OpAttachGroupPolicy, AccountID: accountID, Group: g.Name, Policy: p})
			}
			for _, p := range detach {
				ops = append(ops, models.Operation{Kind: models.OpDetachGroupPolicy, AccountID: accountID, Group: g.Name, Policy: p.Arn})
			}
			if len(ops) == 0 {
				change.Kind = models.ChangeNoOp
			} else {
				change.Kind = models.ChangeUpdate
				change.Ops = ops
			}
		}
		changes = append(changes, change)
	}
	return changes
}

// StatementName is the inline group policy a delegation maintains on its
// trusted group.
func StatementName(roleName string) string {
	return "AllowAssumeRole-" + roleName
}

func (d *Differ) diffDelegations() []models.Change {
	var changes []models.Change
	for _, del := range d.Spec.Delegations {
		changes = append(changes, d.diffDelegationRoles(del)...)
		if c, ok := d.diffDelegationStatement(del); ok {
			changes = append(changes, c)
		}
	}
	return changes
}

// diffDelegationRoles reconciles the role side of a delegation in each
// trusting account.
func (d *Differ) diffDelegationRoles(del models.Delegation) []models.Change {
	trust := models.TrustPolicy(d.Spec.AuthAccountID, del.RequireMFA)

	var changes []models.Change
	for _, accountID := range del.TrustingAccounts {
		snap := d.snapshot(accountID)
		if snap == nil {
			continue
		}
		observed, exists := snap.Roles[del.RoleName]
		change := models.Change{Resource: models.ResourceRole, Name: del.RoleName, AccountID: accountID}

		switch {
		case del.Ensure == models.EnsureAbsent && !exists:
			change.Kind = models.ChangeNoOp

		case del.Ensure == models.EnsureAbsent:
			change.Kind = models.ChangeDelete
			for _, p := range observed.AttachedPolicies {
				change.Ops = append(change.Ops, models.Operation{Kind: models.OpDetachRolePolicy, AccountID: accountID, Role: del.RoleName, Policy: p.Arn})
			}
			change.Ops = append(change.Ops, models.Operation{Kind: models.OpDeleteRole, AccountID: accountID, Role: del.RoleName})

		case !exists:
			change.Kind = models.ChangeCreate
			change.Ops = append(change.Ops, models.Operation{
				Kind: models.OpCreateRole, AccountID: accountID, Role: del.RoleName,
				Path: del.Path, Description: del.Description, Duration: del.Duration, Document: trust,
			})
			for _, p := range del.Policies {
				change.Ops = append(change.Ops, models.Operation{Kind: models.OpAttachRolePolicy, AccountID: accountID, Role: del.RoleName, Policy: p})
			}

		default:
			var ops []models.Operation
			drifted := observed.Description != del.Description || observed.MaxSessionDuration != del.Duration
			trustDrifted := !trust.Equal(observed.TrustPolicy)
			if drifted || trustDrifted {
				op := models.Operation{
					Kind: models.OpUpdateRole, AccountID: accountID, Role: del.RoleName,
					Description: del.Description, Duration: del.Duration,
				}
				if trustDrifted {
					op.Document = trust
				}
				ops = append(ops, op)
			}
			attach, detach := diffAttachments(del.Policies, observed.AttachedPolicies)
			for _, p := range attach {
				ops = append(ops, models.Operation{Kind: models.OpAttachRolePolicy, AccountID: accountID, Role: del.RoleName, Policy: p})
			}
			for _, p := range detach {
				ops = append(ops, models.Operation{Kind: models.OpDetachRolePolicy, AccountID: accountID, Role: del.RoleName, Policy: p.Arn})
			}
			if len(ops) == 0 {
				change.Kind = models.ChangeNoOp
			} else {
				change.Kind = models.ChangeUpdate
				change.Ops = ops
			}
		}
		changes = append(changes, change)
	}
	return changes
}

// diffDelegationStatement reconciles the assume-role statement on the
// trusted group in the auth account.
func (d *Differ) diffDelegationStatement(del models.Delegation) (models.Change, bool) {
	snap := d.snapshot(d.Spec.AuthAccountID)
	if snap == nil {
		return models.Change{}, false
	}
	accountID := d.Spec.AuthAccountID
	name := StatementName(del.RoleName)
	change := models.Change{Resource: models.ResourceGroup, Name: del.TrustedGroup + "/" + name, AccountID: accountID}

	var observedDoc *models.PolicyDocument
	if g, ok := snap.Groups[del.TrustedGroup]; ok {
		observedDoc = g.InlinePolicies[name]
	}

	if del.Ensure == models.EnsureAbsent {
		if observedDoc == nil {
			change.Kind = models.ChangeNoOp
			return change, true
		}
		change.Kind = models.ChangeDelete
		change.Ops = []models.Operation{{Kind: models.OpDeleteGroupStatement, AccountID: accountID, Group: del.TrustedGroup, Policy: name, Role: del.RoleName}}
		return change, true
	}

	desired := models.AssumeRoleStatementPolicy(del.RoleName, del.Path, del.TrustingAccounts)
	if desired.Equal(observedDoc) {
		change.Kind = models.ChangeNoOp
		return change, true
	}
	if observedDoc == nil {
		change.Kind = models.ChangeCreate
	} else {
		change.Kind = models.ChangeUpdate
	}
	change.Ops = []models.Operation{{
		Kind: models.OpPutGroupStatement, AccountID: accountID,
		Group: del.TrustedGroup, Policy: name, Role: del.RoleName, Document: desired,
	}}
	return change, true
}

// diffPolicies creates custom policies lazily: only in accounts where a
// present group or delegation references them.
func (d *Differ) diffPolicies() []models.Change {
	referenced := d.referencedPolicies()

	var changes []models.Change
	for _, p := range d.Spec.CustomPolicies {
		desiredDoc := &models.PolicyDocument{Version: models.PolicyVersion, Statement: p.Statement}

		if p.Ensure == models.EnsureAbsent {
			for accountID, snap := range d.State {
				if snap.Degraded {
					continue
				}
				if _, ok := snap.Policies[p.PolicyName]; ok {
					changes = append(changes, models.Change{
						Resource: models.ResourcePolicy, Name: p.PolicyName, AccountID: accountID,
						Kind: models.ChangeDelete,
						Ops:  []models.Operation{{Kind: models.OpDeletePolicy, AccountID: accountID, Policy: p.PolicyName}},
					})
				}
			}
			continue
		}

		for _, accountID := range sortedKeys(referenced[p.PolicyName]) {
			snap := d.snapshot(accountID)
			if snap == nil {
				continue
			}
			change := models.Change{Resource: models.ResourcePolicy, Name: p.PolicyName, AccountID: accountID}
			observed, exists := snap.Policies[p.PolicyName]
			switch {
			case !exists:
				change.Kind = models.ChangeCreate
				change.Ops = []models.Operation{{
					Kind: models.OpCreatePolicy, AccountID: accountID, Policy: p.PolicyName,
					Description: p.Description, Document: desiredDoc,
				}}
			case !desiredDoc.Equal(observed.Document):
				change.Kind = models.ChangeUpdate
				change.Ops = []models.Operation{{
					Kind: models.OpUpdatePolicy, AccountID: accountID, Policy: p.PolicyName, Document: desiredDoc,
				}}
			default:
				change.Kind = models.ChangeNoOp
			}
			changes = append(changes, change)
		}
	}
	return changes
}

// referencedPolicies maps custom policy name to the set of account ids
// where something attaches it.
func (d *Differ) referencedPolicies() map[string]map[string]bool {
	refs := map[string]map[string]bool{}
	mark := func(policy, accountID string) {
		if spec.IsAWSManagedPolicy(policy) {
			return
		}
		if refs[policy] == nil {
			refs[policy] = map[string]bool{}
		}
		refs[policy][accountID] = true
	}
	for _, g := range d.Spec.Groups {
		if g.Ensure != models.EnsurePresent {
			continue
		}
		for _, p := range g.Policies {
			mark(p, d.Spec.AuthAccountID)
		}
	}
	for _, del := range d.Spec.Delegations {
		if del.Ensure != models.EnsurePresent {
			continue
		}
		for _, p := range del.Policies {
			for _, accountID := range del.TrustingAccounts {
				mark(p, accountID)
			}
		}
	}
	return refs
}

// diffAliases converges each managed account's IAM alias to its lowercased
// organization name.
func (d *Differ) diffAliases() []models.Change {
	var changes []models.Change
	for _, accountID := range d.Spec.ManagedAccountIDs() {
		snap := d.snapshot(accountID)
		if snap == nil {
			continue
		}
		account, ok := d.Spec.AccountByID(accountID)
		if !ok || account.Name == "" {
			continue
		}
		desired := strings.ToLower(account.Name)
		change := models.Change{Resource: models.ResourceAlias, Name: desired, AccountID: accountID}
		if snap.Alias == desired {
			change.Kind = models.ChangeNoOp
		} else {
			change.Kind = models.ChangeUpdate
			if snap.Alias == "" {
				change.Kind = models.ChangeCreate
			}
			change.Ops = []models.Operation{{Kind: models.OpSetAccountAlias, AccountID: accountID, Alias: desired}}
		}
		changes = append(changes, change)
	}
	return changes
}

// diffSets returns desired-minus-observed and observed-minus-desired,
// sorted.
func diffSets(desired, observed []string) (add, remove []string) {
	want := map[string]bool{}
	for _, s := range desired {
		want[s] = true
	}
	have := map[string]bool{}
	for _, s := range observed {
		have[s] = true
	}
	for s := range want {
		if !have[s] {
			add = append(add, s)
		}
	}
	for s := range have {
		if !want[s] {
			remove = append(remove, s)
		}
	}
	sort.Strings(add)
	sort.Strings(remove)
	return add, remove
}

// diffAttachments compares desired policy references (bare custom names or
// AWS-managed ARNs) against observed attachments by name. Attach results
// keep the original reference; detach results keep the observed attachment
// so its ARN is available.
func diffAttachments(desiredRefs []string, observed []models.AttachedPolicy) (attach []string, detach []models.AttachedPolicy) {
	want := map[string]string{}
	for _, ref := range desiredRefs {
		want[attachmentName(ref)] = ref
	}
	have := map[string]bool{}
	for _, p := range observed {
		have[p.Name] = true
		if _, ok := want[p.Name]; !ok {
			detach = append(detach, p)
		}
	}
	for name, ref := range want {
		if !have[name] {
			attach = append(attach, ref)
		}
	}
	sort.Strings(attach)
	sort.Slice(detach, func(i, j int) bool { return detach[i].Name < detach[j].Name })
	return attach, detach
}

// attachmentName is the policy name as IAM reports it on an attachment.
func attachmentName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

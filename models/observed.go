package models

import "sort"

// Observed entity shapes. The state observer normalizes raw IAM responses
// into these before anything downstream sees them.

type ObservedUser struct {
	Name            string
	Path            string
	Arn             string
	Groups          []string
	HasLoginProfile bool
	AccessKeyIDs    []string
	SSHPublicKeys   []ObservedSSHKey
	GitCredentials  []string // service-specific credential ids
}

type ObservedSSHKey struct {
	ID          string
	Fingerprint string
}

// AttachedPolicy is one managed-policy attachment as IAM reports it. The
// name drives set comparison; the ARN drives detachment.
type AttachedPolicy struct {
	Name string
	Arn  string
}

type ObservedGroup struct {
	Name             string
	Path             string
	Arn              string
	Members          []string
	AttachedPolicies []AttachedPolicy
	InlinePolicies   map[string]*PolicyDocument // policy name -> document
}

type ObservedRole struct {
	Name               string
	Path               string
	Arn                string
	Description        string
	TrustPolicy        *PolicyDocument
	AttachedPolicies   []AttachedPolicy
	MaxSessionDuration int32
}

type ObservedPolicy struct {
	Name     string
	Arn      string
	Path     string
	Document *PolicyDocument
}

// AccountSnapshot is one account's observed IAM state. A degraded snapshot
// carries the failure cause and no entities; its account is excluded from
// this pass's changeset but still shows up in the report.
type AccountSnapshot struct {
	AccountID string
	Alias     string
	Degraded  bool
	Cause     error

	Users    map[string]ObservedUser
	Groups   map[string]ObservedGroup
	Roles    map[string]ObservedRole
	Policies map[string]ObservedPolicy
}

// ObservedState maps account id to its snapshot for a single pass.
type ObservedState map[string]*AccountSnapshot

// Degraded lists the account ids whose observation failed this pass.
func (s ObservedState) Degraded() []string {
	var ids []string
	for id, snap := range s {
		if snap.Degraded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

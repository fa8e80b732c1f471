package spec

import "github.com/BerryBytes/awsorgctl/models"

// Document is the raw spec file before validation and wildcard resolution.
type Document struct {
	MasterAccountID string              `yaml:"master_account_id"`
	AuthAccountID   string              `yaml:"auth_account_id"`
	OrgAccessRole   string              `yaml:"org_access_role"`
	DefaultPath     string              `yaml:"default_path"`
	Users           []UserSpec          `yaml:"users"`
	Groups          []GroupSpec         `yaml:"groups"`
	Delegations     []DelegationSpec    `yaml:"delegations"`
	LocalUsers      []LocalUserSpec     `yaml:"local_users"`
	CustomPolicies  []CustomPolicySpec  `yaml:"custom_policies"`
}

type UserSpec struct {
	Name          string   `yaml:"Name"`
	Ensure        string   `yaml:"Ensure"`
	Email         string   `yaml:"Email"`
	Team          string   `yaml:"Team"`
	Path          string   `yaml:"Path"`
	AuthMethods   []string `yaml:"AuthMethods"`
	SSHPublicKeys []string `yaml:"SSHPublicKeys"`
}

type GroupSpec struct {
	Name           string              `yaml:"Name"`
	Ensure         string              `yaml:"Ensure"`
	Path           string              `yaml:"Path"`
	Members        models.StringOrList `yaml:"Members"`
	ExcludeMembers []string            `yaml:"ExcludeMembers"`
	Policies       []string            `yaml:"Policies"`
}

type DelegationSpec struct {
	RoleName        string              `yaml:"RoleName"`
	Ensure          string              `yaml:"Ensure"`
	Description     string              `yaml:"Description"`
	TrustingAccount models.StringOrList `yaml:"TrustingAccount"`
	ExcludeAccounts []string            `yaml:"ExcludeAccounts"`
	TrustedGroup    string              `yaml:"TrustedGroup"`
	RequireMFA      bool                `yaml:"RequireMFA"`
	Duration        int32               `yaml:"Duration"`
	Path            string              `yaml:"Path"`
	Policies        []string            `yaml:"Policies"`
}

type LocalUserSpec struct {
	Name            string              `yaml:"Name"`
	Ensure          string              `yaml:"Ensure"`
	Team            string              `yaml:"Team"`
	Path            string              `yaml:"Path"`
	Account         models.StringOrList `yaml:"Account"`
	ExcludeAccounts []string            `yaml:"ExcludeAccounts"`
	AuthMethods     []string            `yaml:"AuthMethods"`
	SSHPublicKeys   []string            `yaml:"SSHPublicKeys"`
}

type CustomPolicySpec struct {
	PolicyName  string             `yaml:"PolicyName"`
	Ensure      string             `yaml:"Ensure"`
	Description string             `yaml:"Description"`
	Statement   []models.Statement `yaml:"Statement"`
}

// Model is the fully resolved, wildcard-free entity graph the rest of the
// engine consumes.
type Model struct {
	MasterAccountID string
	AuthAccountID   string
	OrgAccessRole   string
	DefaultPath     string

	Users          []models.User
	Groups         []models.Group
	Delegations    []models.Delegation
	LocalUsers     []models.LocalUser
	CustomPolicies []models.CustomPolicy

	// Accounts is the organization universe the wildcards resolved against.
	Accounts []models.Account
}

// CustomPolicy looks up a declared policy by name.
func (m *Model) CustomPolicy(name string) (models.CustomPolicy, bool) {
	for _, p := range m.CustomPolicies {
		if p.PolicyName == name {
			return p, true
		}
	}
	return models.CustomPolicy{}, false
}

// Group looks up a declared group by name.
func (m *Model) Group(name string) (models.Group, bool) {
	for _, g := range m.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return models.Group{}, false
}

// AccountByID looks up an organization account.
func (m *Model) AccountByID(id string) (models.Account, bool) {
	for _, a := range m.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return models.Account{}, false
}

// ManagedAccountIDs is every account the spec can touch: the auth account
// plus all resolved trusting accounts of delegations and local users.
func (m *Model) ManagedAccountIDs() []string {
	seen := map[string]bool{m.AuthAccountID: true}
	ids := []string{m.AuthAccountID}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, d := range m.Delegations {
		for _, id := range d.TrustingAccounts {
			add(id)
		}
	}
	for _, lu := range m.LocalUsers {
		for _, id := range lu.Accounts {
			add(id)
		}
	}
	return ids
}

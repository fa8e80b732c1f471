package models

// Ensure is the desired presence of a declared resource.
type Ensure string

const (
	EnsurePresent Ensure = "present"
	EnsureAbsent  Ensure = "absent"
)

// AuthMethod is one credential kind a user is issued. Each declared method is
// reconciled as its own sub-resource with an independent create/delete.
type AuthMethod string

const (
	AuthMethodConsole   AuthMethod = "console"
	AuthMethodAccessKey AuthMethod = "access-key"
	AuthMethodSSHKey    AuthMethod = "ssh-key"
	AuthMethodHTTPSGit  AuthMethod = "https-git"
)

// MaxSessionDuration is the service ceiling for a delegation role's session, in seconds.
const MaxSessionDuration = 43200

// DefaultSessionDuration is used when a delegation does not set Duration.
const DefaultSessionDuration = 3600

// User is a canonical identity in the auth account.
type User struct {
	Name          string
	Ensure        Ensure
	Email         string
	Team          string
	Path          string
	AuthMethods   []AuthMethod
	SSHPublicKeys []string
}

// Group holds users in the auth account and carries policy attachments.
// Members is fully resolved; wildcards never survive spec loading.
type Group struct {
	Name     string
	Ensure   Ensure
	Members  []string
	Policies []string
	Path     string
}

// Delegation grants a trusted group cross-account access into each trusting
// account. It decomposes into one role per trusting account plus one
// assume-role statement on the trusted group in the auth account.
type Delegation struct {
	RoleName         string
	Ensure           Ensure
	Description      string
	TrustingAccounts []string // resolved account ids
	TrustedGroup     string
	RequireMFA       bool
	Duration         int32
	Policies         []string
	Path             string
}

// LocalUser is an identity created directly in trusting accounts rather than
// behind the auth account's groups.
type LocalUser struct {
	Name          string
	Ensure        Ensure
	Team          string
	Path          string
	Accounts      []string // resolved trusting account ids
	AuthMethods   []AuthMethod
	SSHPublicKeys []string
}

// CustomPolicy is a customer-managed policy definition. It is only ever
// created in accounts where a group or delegation role references it.
type CustomPolicy struct {
	PolicyName  string
	Ensure      Ensure
	Description string
	Statement   []Statement
}

// Account is one member account of the organization. Accounts are resolution
// targets for wildcard sets; the engine never mutates them.
type Account struct {
	ID     string
	Name   string
	Email  string
	Status string // ACTIVE or SUSPENDED
}

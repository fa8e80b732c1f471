package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BerryBytes/awsorgctl/models"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Wildcard expands to the full known user or account set minus excludes.
const Wildcard = "ALL"

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// Overrides are tool-level settings that win over the spec file, mirroring
// the command-line flags.
type Overrides struct {
	MasterAccountID string
	AuthAccountID   string
	OrgAccessRole   string
}

// Loader reads and resolves spec files.
type Loader struct {
	Fs        afero.Fs
	Overrides Overrides
}

func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{Fs: fs}
}

// Load parses the spec file at path, validates it, and resolves wildcards
// against the given organization accounts. Any failure is a ValidationError;
// no remote state is touched before Load succeeds.
func (l *Loader) Load(path string, accounts []models.Account) (*Model, error) {
	data, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		return nil, &models.ValidationError{Reason: fmt.Sprintf("failed to read spec file %s: %v", path, err)}
	}
	return l.Parse(data, accounts)
}

// Parse is Load without the file read, used by tests and embedded callers.
func (l *Loader) Parse(data []byte, accounts []models.Account) (*Model, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &models.ValidationError{Reason: fmt.Sprintf("failed to parse spec: %v", err)}
	}
	if l.Overrides.MasterAccountID != "" {
		doc.MasterAccountID = l.Overrides.MasterAccountID
	}
	if l.Overrides.AuthAccountID != "" {
		doc.AuthAccountID = l.Overrides.AuthAccountID
	}
	if l.Overrides.OrgAccessRole != "" {
		doc.OrgAccessRole = l.Overrides.OrgAccessRole
	}
	if err := validate(&doc, accounts); err != nil {
		return nil, err
	}
	return resolve(&doc, accounts)
}

func validate(doc *Document, accounts []models.Account) error {
	if !accountIDPattern.MatchString(doc.MasterAccountID) {
		return &models.ValidationError{Field: "master_account_id", Reason: "must be a 12-digit account id"}
	}
	if !accountIDPattern.MatchString(doc.AuthAccountID) {
		return &models.ValidationError{Field: "auth_account_id", Reason: "must be a 12-digit account id"}
	}
	if doc.OrgAccessRole == "" {
		return &models.ValidationError{Field: "org_access_role", Reason: "required"}
	}

	userNames := map[string]bool{}
	for i, u := range doc.Users {
		field := fmt.Sprintf("users[%d]", i)
		if u.Name == "" {
			return &models.ValidationError{Field: field, Reason: "Name is required"}
		}
		if userNames[u.Name] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("duplicate user name %q", u.Name)}
		}
		userNames[u.Name] = true
		if err := checkEnsure(field, u.Ensure); err != nil {
			return err
		}
		if err := checkAuthMethods(field, u.AuthMethods); err != nil {
			return err
		}
	}

	policyNames := map[string]bool{}
	for i, p := range doc.CustomPolicies {
		field := fmt.Sprintf("custom_policies[%d]", i)
		if p.PolicyName == "" {
			return &models.ValidationError{Field: field, Reason: "PolicyName is required"}
		}
		if policyNames[p.PolicyName] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("duplicate policy name %q", p.PolicyName)}
		}
		policyNames[p.PolicyName] = true
		if err := checkEnsure(field, p.Ensure); err != nil {
			return err
		}
		if len(p.Statement) == 0 {
			return &models.ValidationError{Field: field, Reason: "at least one Statement is required"}
		}
		for j, s := range p.Statement {
			if s.Effect != "Allow" && s.Effect != "Deny" {
				return &models.ValidationError{
					Field:  fmt.Sprintf("%s.Statement[%d]", field, j),
					Reason: fmt.Sprintf("Effect must be Allow or Deny, got %q", s.Effect),
				}
			}
			if len(s.Action) == 0 {
				return &models.ValidationError{
					Field:  fmt.Sprintf("%s.Statement[%d]", field, j),
					Reason: "Action is required",
				}
			}
		}
	}

	groupNames := map[string]bool{}
	for i, g := range doc.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		if g.Name == "" {
			return &models.ValidationError{Field: field, Reason: "Name is required"}
		}
		if groupNames[g.Name] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("duplicate group name %q", g.Name)}
		}
		groupNames[g.Name] = true
		if err := checkEnsure(field, g.Ensure); err != nil {
			return err
		}
		if err := checkMembers(field, g.Members, g.ExcludeMembers, userNames); err != nil {
			return err
		}
		for _, name := range g.Policies {
			if err := checkPolicyRef(field, name, policyNames); err != nil {
				return err
			}
		}
	}

	roleNames := map[string]bool{}
	for i, d := range doc.Delegations {
		field := fmt.Sprintf("delegations[%d]", i)
		if d.RoleName == "" {
			return &models.ValidationError{Field: field, Reason: "RoleName is required"}
		}
		if roleNames[d.RoleName] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("duplicate delegation role %q", d.RoleName)}
		}
		roleNames[d.RoleName] = true
		if err := checkEnsure(field, d.Ensure); err != nil {
			return err
		}
		if d.TrustedGroup == "" {
			return &models.ValidationError{Field: field, Reason: "TrustedGroup is required"}
		}
		if !groupNames[d.TrustedGroup] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("TrustedGroup %q is not a declared group", d.TrustedGroup)}
		}
		if d.Duration < 0 || d.Duration > models.MaxSessionDuration {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("Duration must be between 1 and %d seconds", models.MaxSessionDuration)}
		}
		if err := checkAccounts(field, d.TrustingAccount, d.ExcludeAccounts, accounts); err != nil {
			return err
		}
		for _, name := range d.Policies {
			if err := checkPolicyRef(field, name, policyNames); err != nil {
				return err
			}
		}
	}

	localNames := map[string]bool{}
	for i, lu := range doc.LocalUsers {
		field := fmt.Sprintf("local_users[%d]", i)
		if lu.Name == "" {
			return &models.ValidationError{Field: field, Reason: "Name is required"}
		}
		if localNames[lu.Name] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("duplicate local user name %q", lu.Name)}
		}
		localNames[lu.Name] = true
		if err := checkEnsure(field, lu.Ensure); err != nil {
			return err
		}
		if err := checkAuthMethods(field, lu.AuthMethods); err != nil {
			return err
		}
		if err := checkAccounts(field, lu.Account, lu.ExcludeAccounts, accounts); err != nil {
			return err
		}
	}

	return nil
}

func checkEnsure(field, ensure string) error {
	switch ensure {
	case "", string(models.EnsurePresent), string(models.EnsureAbsent):
		return nil
	}
	return &models.ValidationError{Field: field, Reason: fmt.Sprintf("Ensure must be present or absent, got %q", ensure)}
}

func checkAuthMethods(field string, methods []string) error {
	for _, m := range methods {
		switch models.AuthMethod(m) {
		case models.AuthMethodConsole, models.AuthMethodAccessKey, models.AuthMethodSSHKey, models.AuthMethodHTTPSGit:
		default:
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("unknown auth method %q", m)}
		}
	}
	return nil
}

func checkMembers(field string, members models.StringOrList, excludes []string, users map[string]bool) error {
	if isWildcard(members) {
		for _, e := range excludes {
			if !users[e] {
				return &models.ValidationError{Field: field, Reason: fmt.Sprintf("ExcludeMembers entry %q is not a declared user", e)}
			}
		}
		return nil
	}
	if len(excludes) > 0 {
		return &models.ValidationError{Field: field, Reason: "ExcludeMembers is only valid with Members: ALL"}
	}
	for _, m := range members {
		if !users[m] {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("member %q is not a declared user", m)}
		}
	}
	return nil
}

func checkAccounts(field string, accountRefs models.StringOrList, excludes []string, accounts []models.Account) error {
	if isWildcard(accountRefs) {
		for _, e := range excludes {
			if _, ok := findAccount(accounts, e); !ok {
				return &models.ValidationError{Field: field, Reason: fmt.Sprintf("ExcludeAccounts entry %q is not a known account", e)}
			}
		}
		return nil
	}
	if len(excludes) > 0 {
		return &models.ValidationError{Field: field, Reason: "ExcludeAccounts is only valid with the ALL wildcard"}
	}
	for _, ref := range accountRefs {
		if _, ok := findAccount(accounts, ref); !ok {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("account %q is not a known account", ref)}
		}
	}
	return nil
}

func checkPolicyRef(field, name string, custom map[string]bool) error {
	if custom[name] || IsAWSManagedPolicy(name) {
		return nil
	}
	return &models.ValidationError{Field: field, Reason: fmt.Sprintf("policy %q is neither a declared custom policy nor an AWS-managed policy ARN", name)}
}

// IsAWSManagedPolicy reports whether name references a policy owned by AWS
// rather than one declared in custom_policies.
func IsAWSManagedPolicy(name string) bool {
	return strings.HasPrefix(name, "arn:aws:iam::aws:policy/")
}

func isWildcard(l models.StringOrList) bool {
	return len(l) == 1 && l[0] == Wildcard
}

// findAccount matches an account reference by id or name.
func findAccount(accounts []models.Account, ref string) (models.Account, bool) {
	for _, a := range accounts {
		if a.ID == ref || a.Name == ref {
			return a, true
		}
	}
	return models.Account{}, false
}

func resolve(doc *Document, accounts []models.Account) (*Model, error) {
	defaultPath := normalizePath(doc.DefaultPath)

	m := &Model{
		MasterAccountID: doc.MasterAccountID,
		AuthAccountID:   doc.AuthAccountID,
		OrgAccessRole:   doc.OrgAccessRole,
		DefaultPath:     defaultPath,
		Accounts:        accounts,
	}

	for _, u := range doc.Users {
		m.Users = append(m.Users, models.User{
			Name:          u.Name,
			Ensure:        ensureOf(u.Ensure),
			Email:         u.Email,
			Team:          u.Team,
			Path:          pathOrDefault(u.Path, defaultPath),
			AuthMethods:   authMethods(u.AuthMethods),
			SSHPublicKeys: u.SSHPublicKeys,
		})
	}

	presentUsers := make([]string, 0, len(m.Users))
	for _, u := range m.Users {
		if u.Ensure == models.EnsurePresent {
			presentUsers = append(presentUsers, u.Name)
		}
	}

	for _, g := range doc.Groups {
		m.Groups = append(m.Groups, models.Group{
			Name:     g.Name,
			Ensure:   ensureOf(g.Ensure),
			Path:     pathOrDefault(g.Path, defaultPath),
			Members:  resolveSet(g.Members, g.ExcludeMembers, presentUsers),
			Policies: append([]string(nil), g.Policies...),
		})
	}

	for _, d := range doc.Delegations {
		duration := d.Duration
		if duration == 0 {
			duration = models.DefaultSessionDuration
		}
		m.Delegations = append(m.Delegations, models.Delegation{
			RoleName:         d.RoleName,
			Ensure:           ensureOf(d.Ensure),
			Description:      d.Description,
			TrustingAccounts: resolveAccountSet(d.TrustingAccount, d.ExcludeAccounts, accounts, doc.AuthAccountID),
			TrustedGroup:     d.TrustedGroup,
			RequireMFA:       d.RequireMFA,
			Duration:         duration,
			Policies:         append([]string(nil), d.Policies...),
			Path:             pathOrDefault(d.Path, defaultPath),
		})
	}

	for _, lu := range doc.LocalUsers {
		m.LocalUsers = append(m.LocalUsers, models.LocalUser{
			Name:          lu.Name,
			Ensure:        ensureOf(lu.Ensure),
			Team:          lu.Team,
			Path:          pathOrDefault(lu.Path, defaultPath),
			Accounts:      resolveAccountSet(lu.Account, lu.ExcludeAccounts, accounts, doc.AuthAccountID),
			AuthMethods:   authMethods(lu.AuthMethods),
			SSHPublicKeys: lu.SSHPublicKeys,
		})
	}

	for _, p := range doc.CustomPolicies {
		m.CustomPolicies = append(m.CustomPolicies, models.CustomPolicy{
			PolicyName:  p.PolicyName,
			Ensure:      ensureOf(p.Ensure),
			Description: p.Description,
			Statement:   append([]models.Statement(nil), p.Statement...),
		})
	}

	return m, nil
}

// resolveSet expands ALL over the universe minus excludes, or copies the
// explicit list. The result is sorted for stable comparison.
func resolveSet(refs models.StringOrList, excludes []string, universe []string) []string {
	var out []string
	if isWildcard(refs) {
		excluded := map[string]bool{}
		for _, e := range excludes {
			excluded[e] = true
		}
		for _, name := range universe {
			if !excluded[name] {
				out = append(out, name)
			}
		}
	} else {
		out = append(out, refs...)
	}
	sort.Strings(out)
	return out
}

// resolveAccountSet expands ALL over the active organization accounts minus
// excludes, mapping names to account ids. The auth account is never a
// trusting account.
func resolveAccountSet(refs models.StringOrList, excludes []string, accounts []models.Account, authAccountID string) []string {
	var out []string
	if isWildcard(refs) {
		excluded := map[string]bool{authAccountID: true}
		for _, e := range excludes {
			if a, ok := findAccount(accounts, e); ok {
				excluded[a.ID] = true
			}
		}
		for _, a := range accounts {
			if a.Status == "ACTIVE" && !excluded[a.ID] {
				out = append(out, a.ID)
			}
		}
	} else {
		for _, ref := range refs {
			if a, ok := findAccount(accounts, ref); ok {
				out = append(out, a.ID)
			}
		}
	}
	sort.Strings(out)
	return out
}

func ensureOf(s string) models.Ensure {
	if s == string(models.EnsureAbsent) {
		return models.EnsureAbsent
	}
	return models.EnsurePresent
}

func authMethods(in []string) []models.AuthMethod {
	out := make([]models.AuthMethod, 0, len(in))
	for _, m := range in {
		out = append(out, models.AuthMethod(m))
	}
	return out
}

func pathOrDefault(p, def string) string {
	if p == "" {
		if def == "" {
			return "/"
		}
		return def
	}
	return normalizePath(p)
}

// normalizePath forces the /segment/ form IAM expects.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/") + "/"
}

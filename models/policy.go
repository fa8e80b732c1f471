package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StringOrList accepts either a scalar or a sequence in YAML/JSON, the way
// IAM policy documents treat Action and Resource fields.
type StringOrList []string

func (s *StringOrList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var one string
	if err := unmarshal(&one); err == nil {
		*s = StringOrList{one}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringOrList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = many
	return nil
}

// Statement is one access-statement block of a policy document. Principal
// only appears in trust documents.
type Statement struct {
	Sid       string                             `json:"Sid,omitempty" yaml:"Sid,omitempty"`
	Effect    string                             `json:"Effect" yaml:"Effect"`
	Principal map[string]StringOrList            `json:"Principal,omitempty" yaml:"Principal,omitempty"`
	Action    StringOrList                       `json:"Action" yaml:"Action"`
	Resource  StringOrList                       `json:"Resource,omitempty" yaml:"Resource,omitempty"`
	Condition map[string]map[string]StringOrList `json:"Condition,omitempty" yaml:"Condition,omitempty"`
}

// PolicyDocument is the JSON body IAM stores for managed, inline and trust
// policies.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

const PolicyVersion = "2012-10-17"

// ParsePolicyDocument decodes a policy document body. IAM also serves
// single-statement documents with Statement as an object; both forms are
// accepted.
func ParsePolicyDocument(body string) (*PolicyDocument, error) {
	var doc PolicyDocument
	if err := json.Unmarshal([]byte(body), &doc); err == nil && doc.Statement != nil {
		return &doc, nil
	}
	var alt struct {
		Version   string    `json:"Version"`
		Statement Statement `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(body), &alt); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return &PolicyDocument{Version: alt.Version, Statement: []Statement{alt.Statement}}, nil
}

// Marshal renders the document as the JSON IAM expects.
func (d *PolicyDocument) Marshal() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy document: %w", err)
	}
	return string(data), nil
}

// Equal reports semantic equality: statements compared as sets, with
// action/resource/condition fields compared as value sets so key reordering
// never produces a spurious update.
func (d *PolicyDocument) Equal(other *PolicyDocument) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Statement) != len(other.Statement) {
		return false
	}
	matched := make([]bool, len(other.Statement))
	for _, s := range d.Statement {
		found := false
		for i, o := range other.Statement {
			if !matched[i] && statementEqual(s, o) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func statementEqual(a, b Statement) bool {
	if a.Effect != b.Effect {
		return false
	}
	if !stringSetEqual(a.Action, b.Action) || !stringSetEqual(a.Resource, b.Resource) {
		return false
	}
	if len(a.Principal) != len(b.Principal) {
		return false
	}
	for kind, vals := range a.Principal {
		otherVals, ok := b.Principal[kind]
		if !ok || !stringSetEqual(vals, otherVals) {
			return false
		}
	}
	if len(a.Condition) != len(b.Condition) {
		return false
	}
	for op, keys := range a.Condition {
		otherKeys, ok := b.Condition[op]
		if !ok || len(keys) != len(otherKeys) {
			return false
		}
		for key, vals := range keys {
			otherVals, ok := otherKeys[key]
			if !ok || !stringSetEqual(vals, otherVals) {
				return false
			}
		}
	}
	return true
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// TrustPolicy builds the assume-role trust document for a delegation role in
// a trusting account, naming the auth account as principal.
func TrustPolicy(authAccountID string, requireMFA bool) *PolicyDocument {
	stmt := Statement{
		Effect:    "Allow",
		Principal: map[string]StringOrList{"AWS": {fmt.Sprintf("arn:aws:iam::%s:root", authAccountID)}},
		Action:    StringOrList{"sts:AssumeRole"},
	}
	if requireMFA {
		stmt.Condition = map[string]map[string]StringOrList{
			"Bool": {"aws:MultiFactorAuthPresent": {"true"}},
		}
	}
	return &PolicyDocument{Version: PolicyVersion, Statement: []Statement{stmt}}
}

// AssumeRoleStatementPolicy builds the inline group policy in the auth
// account allowing members to assume a delegation role in every trusting
// account.
func AssumeRoleStatementPolicy(roleName, path string, trustingAccounts []string) *PolicyDocument {
	resources := make(StringOrList, 0, len(trustingAccounts))
	for _, id := range trustingAccounts {
		resources = append(resources, fmt.Sprintf("arn:aws:iam::%s:role%s%s", id, path, roleName))
	}
	sort.Strings(resources)
	return &PolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{{
			Effect:   "Allow",
			Action:   StringOrList{"sts:AssumeRole"},
			Resource: resources,
		}},
	}
}

package models

import "fmt"

// ChangeKind classifies the difference between a desired entity and its
// observed counterpart.
type ChangeKind string

const (
	ChangeCreate  ChangeKind = "create"
	ChangeUpdate  ChangeKind = "update"
	ChangeDelete  ChangeKind = "delete"
	ChangeNoOp    ChangeKind = "no-op"
	ChangeBlocked ChangeKind = "blocked"
)

// ResourceType names the managed resource families.
type ResourceType string

const (
	ResourceUser      ResourceType = "user"
	ResourceGroup     ResourceType = "group"
	ResourceRole      ResourceType = "role"
	ResourcePolicy    ResourceType = "policy"
	ResourceAlias     ResourceType = "alias"
	ResourceLocalUser ResourceType = "local-user"
)

// Change is one entity-level diff. A Create/Update/Delete change carries the
// concrete operations that realize it; NoOp and Blocked carry none.
type Change struct {
	Resource  ResourceType
	Name      string
	AccountID string
	Kind      ChangeKind
	Reason    string
	Ops       []Operation
}

// OpKind is the concrete remote mutation an operation performs.
type OpKind string

const (
	OpCreateUser           OpKind = "CreateUser"
	OpDeleteUser           OpKind = "DeleteUser"
	OpCreateGroup          OpKind = "CreateGroup"
	OpDeleteGroup          OpKind = "DeleteGroup"
	OpAddUserToGroup       OpKind = "AddUserToGroup"
	OpRemoveUserFromGroup  OpKind = "RemoveUserFromGroup"
	OpCreatePolicy         OpKind = "CreatePolicy"
	OpUpdatePolicy         OpKind = "UpdatePolicy"
	OpDeletePolicy         OpKind = "DeletePolicy"
	OpAttachGroupPolicy    OpKind = "AttachGroupPolicy"
	OpDetachGroupPolicy    OpKind = "DetachGroupPolicy"
	OpCreateRole           OpKind = "CreateRole"
	OpUpdateRole           OpKind = "UpdateRole"
	OpDeleteRole           OpKind = "DeleteRole"
	OpAttachRolePolicy     OpKind = "AttachRolePolicy"
	OpDetachRolePolicy     OpKind = "DetachRolePolicy"
	OpPutGroupStatement    OpKind = "PutGroupStatement"
	OpDeleteGroupStatement OpKind = "DeleteGroupStatement"
	OpEnsureLoginProfile   OpKind = "EnsureLoginProfile"
	OpDeleteLoginProfile   OpKind = "DeleteLoginProfile"
	OpEnsureAccessKey      OpKind = "EnsureAccessKey"
	OpDeleteAccessKeys     OpKind = "DeleteAccessKeys"
	OpUploadSSHKey         OpKind = "UploadSSHKey"
	OpDeleteSSHKeys        OpKind = "DeleteSSHKeys"
	OpEnsureGitCredential  OpKind = "EnsureGitCredential"
	OpDeleteGitCredentials OpKind = "DeleteGitCredentials"
	OpSetAccountAlias      OpKind = "SetAccountAlias"
)

// Operation is one account-scoped remote mutation. Fields beyond Kind and
// AccountID are populated per kind.
type Operation struct {
	Kind      OpKind
	AccountID string

	User     string
	Group    string
	Role     string
	Policy   string
	Path     string
	Alias    string
	Document *PolicyDocument

	Description string
	Duration    int32
	PublicKey   string
}

// ID gives a stable identifier used for dependency edges and reporting.
func (o Operation) ID() string {
	subject := o.User
	if subject == "" {
		subject = o.Group
	}
	if o.Role != "" {
		subject = o.Role
	}
	if subject == "" {
		subject = o.Policy
	}
	if o.Kind == OpSetAccountAlias {
		subject = o.Alias
	}
	return fmt.Sprintf("%s/%s/%s", o.AccountID, o.Kind, subject)
}

// String renders the operation for plan output and logs.
func (o Operation) String() string {
	switch o.Kind {
	case OpAddUserToGroup, OpRemoveUserFromGroup:
		return fmt.Sprintf("%s %s user=%s group=%s", o.AccountID, o.Kind, o.User, o.Group)
	case OpAttachGroupPolicy, OpDetachGroupPolicy:
		return fmt.Sprintf("%s %s group=%s policy=%s", o.AccountID, o.Kind, o.Group, o.Policy)
	case OpAttachRolePolicy, OpDetachRolePolicy:
		return fmt.Sprintf("%s %s role=%s policy=%s", o.AccountID, o.Kind, o.Role, o.Policy)
	case OpPutGroupStatement, OpDeleteGroupStatement:
		return fmt.Sprintf("%s %s group=%s statement=%s", o.AccountID, o.Kind, o.Group, o.Policy)
	default:
		return fmt.Sprintf("%s %s %s", o.AccountID, o.Kind, o.subject())
	}
}

func (o Operation) subject() string {
	switch {
	case o.Role != "":
		return o.Role
	case o.Group != "":
		return o.Group
	case o.User != "":
		return o.User
	case o.Policy != "":
		return o.Policy
	case o.Alias != "":
		return o.Alias
	}
	return ""
}

// Plan is the ordered output of the dependency planner. Batches execute
// strictly in order; operations inside a batch are independent.
type Plan struct {
	Batches [][]Operation
}

// Empty reports whether the plan contains no operations.
func (p *Plan) Empty() bool {
	for _, b := range p.Batches {
		if len(b) > 0 {
			return false
		}
	}
	return true
}

// Size is the total operation count across batches.
func (p *Plan) Size() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b)
	}
	return n
}

// Package planner orders a changeset into execution batches that respect
// resource dependencies.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BerryBytes/awsorgctl/models"
)

// Plan flattens the changeset's operations and orders them with a layered
// topological sort. Each batch only depends on earlier batches; operations
// within a batch are independent. NoOp and Blocked changes contribute
// nothing; callers report them directly.
//
// A cycle means the differ emitted an ordering the data model forbids, so
// it surfaces as an InvariantViolation rather than a user error.
func Plan(changes []models.Change) (*models.Plan, error) {
	var ops []models.Operation
	for _, c := range changes {
		if c.Kind == models.ChangeNoOp || c.Kind == models.ChangeBlocked {
			continue
		}
		ops = append(ops, c.Ops...)
	}
	if len(ops) == 0 {
		return &models.Plan{}, nil
	}

	deps := buildEdges(ops)

	// Kahn's algorithm, layer by layer.
	indegree := make([]int, len(ops))
	for _, tos := range deps {
		for _, to := range tos {
			indegree[to]++
		}
	}

	var batches [][]models.Operation
	placed := 0
	ready := make([]int, 0, len(ops))
	for i := range ops {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		batch := make([]models.Operation, 0, len(ready))
		var next []int
		for _, i := range ready {
			batch = append(batch, ops[i])
			placed++
			for _, to := range deps[i] {
				indegree[to]--
				if indegree[to] == 0 {
					next = append(next, to)
				}
			}
		}
		sort.Slice(batch, func(a, b int) bool { return batch[a].ID() < batch[b].ID() })
		batches = append(batches, batch)
		ready = next
	}

	if placed != len(ops) {
		var stuck []string
		for i, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, ops[i].ID())
			}
		}
		sort.Strings(stuck)
		return nil, &models.InvariantViolation{
			Reason: fmt.Sprintf("dependency cycle among operations: %s", strings.Join(stuck, ", ")),
		}
	}

	return &models.Plan{Batches: batches}, nil
}

// buildEdges maps each operation index to the indices that must run after
// it. The edge rules are the fixed partial order of the data model:
// policies before attachments, users and groups before memberships,
// delegation roles before their trusted-group statement, and the reverse
// of each on teardown.
func buildEdges(ops []models.Operation) map[int][]int {
	type key struct {
		kind    models.OpKind
		account string
		subject string
	}
	index := map[key][]int{}
	at := func(kind models.OpKind, account, subject string) []int {
		return index[key{kind, account, subject}]
	}
	for i, op := range ops {
		index[key{op.Kind, op.AccountID, opSubject(op)}] = append(index[key{op.Kind, op.AccountID, opSubject(op)}], i)
	}

	// Cross-account role indexing for delegation edges.
	createRolesByName := map[string][]int{}
	deleteRolesByName := map[string][]int{}
	for i, op := range ops {
		switch op.Kind {
		case models.OpCreateRole:
			createRolesByName[op.Role] = append(createRolesByName[op.Role], i)
		case models.OpDeleteRole:
			deleteRolesByName[op.Role] = append(deleteRolesByName[op.Role], i)
		}
	}

	deps := map[int][]int{}
	addEdge := func(from, to int) {
		deps[from] = append(deps[from], to)
	}
	dependOn := func(i int, froms []int) {
		for _, from := range froms {
			addEdge(from, i)
		}
	}

	for i, op := range ops {
		switch op.Kind {
		case models.OpAddUserToGroup:
			dependOn(i, at(models.OpCreateUser, op.AccountID, op.User))
			dependOn(i, at(models.OpCreateGroup, op.AccountID, op.Group))

		case models.OpEnsureLoginProfile, models.OpEnsureAccessKey, models.OpUploadSSHKey, models.OpEnsureGitCredential:
			dependOn(i, at(models.OpCreateUser, op.AccountID, op.User))

		case models.OpAttachGroupPolicy:
			dependOn(i, at(models.OpCreateGroup, op.AccountID, op.Group))
			dependOn(i, at(models.OpCreatePolicy, op.AccountID, refName(op.Policy)))

		case models.OpAttachRolePolicy:
			dependOn(i, at(models.OpCreateRole, op.AccountID, op.Role))
			dependOn(i, at(models.OpCreatePolicy, op.AccountID, refName(op.Policy)))

		case models.OpPutGroupStatement:
			dependOn(i, at(models.OpCreateGroup, op.AccountID, op.Group))
			dependOn(i, createRolesByName[op.Role])

		case models.OpDeleteUser:
			for j, other := range ops {
				if other.AccountID != op.AccountID || other.User != op.User {
					continue
				}
				switch other.Kind {
				case models.OpRemoveUserFromGroup, models.OpDeleteLoginProfile,
					models.OpDeleteAccessKeys, models.OpDeleteSSHKeys, models.OpDeleteGitCredentials:
					addEdge(j, i)
				}
			}

		case models.OpDeleteGroup:
			for j, other := range ops {
				if other.AccountID != op.AccountID || other.Group != op.Group {
					continue
				}
				switch other.Kind {
				case models.OpRemoveUserFromGroup, models.OpDetachGroupPolicy, models.OpDeleteGroupStatement:
					addEdge(j, i)
				}
			}

		case models.OpDeleteRole:
			for _, j := range at(models.OpDetachRolePolicy, op.AccountID, op.Role) {
				addEdge(j, i)
			}
			// Teardown order: the trusted-group statement goes first so no
			// group statement ever references a deleted role.
			for j, other := range ops {
				if other.Kind == models.OpDeleteGroupStatement && other.Role == op.Role {
					addEdge(j, i)
				}
			}

		case models.OpDeletePolicy:
			for j, other := range ops {
				if other.AccountID != op.AccountID {
					continue
				}
				switch other.Kind {
				case models.OpDetachGroupPolicy, models.OpDetachRolePolicy:
					if refName(other.Policy) == op.Policy {
						addEdge(j, i)
					}
				}
			}
		}
	}

	return deps
}

// opSubject keys an operation for edge lookup: the one name another
// operation would reference it by.
func opSubject(op models.Operation) string {
	switch op.Kind {
	case models.OpCreateUser, models.OpDeleteUser:
		return op.User
	case models.OpCreateGroup, models.OpDeleteGroup:
		return op.Group
	case models.OpCreateRole, models.OpDeleteRole, models.OpDetachRolePolicy:
		return op.Role
	case models.OpCreatePolicy, models.OpDeletePolicy:
		return op.Policy
	default:
		return op.ID()
	}
}

// refName strips an ARN prefix off a policy reference.
func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

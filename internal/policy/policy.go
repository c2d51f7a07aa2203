// Package policy decides whether an actor may perform an action on a book.
//
// Rules are data, not code: each permission maps to a set of grants, a grant
// being an (action, condition) pair where the condition constrains the
// subject's lifecycle state and ownership. Permissions can extend other
// permissions; the extension graph is flattened once at package init, so
// evaluation never chases it. Adding a role or a state exception means
// editing the table, not the transition logic.
package policy

import (
	"bookstack/internal/entity"
)

type Action string

const (
	ActionCreate    Action = "create"
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionApprove   Action = "approve"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
)

// Subject is the shape of the book an action targets. For pre-creation
// checks it may be zero-valued apart from the fields the caller knows.
type Subject struct {
	State  entity.BookState
	UserID *string
}

// SubjectOf projects a book onto the attributes the grant table inspects.
func SubjectOf(book *entity.Book) Subject {
	return Subject{State: book.State, UserID: book.UserID}
}

// Condition is a conjunctive predicate over a Subject. Nil / false fields
// match anything.
type Condition struct {
	// State, when set, must equal the subject's state.
	State *entity.BookState
	// Owned, when true, requires the subject to belong to the acting user.
	Owned bool
}

func (c Condition) matches(actorID string, subject Subject) bool {
	if c.State != nil && subject.State != *c.State {
		return false
	}
	if c.Owned {
		if actorID == "" || subject.UserID == nil || *subject.UserID != actorID {
			return false
		}
	}
	return true
}

type Grant struct {
	Action    Action
	Condition Condition
}

func inState(s entity.BookState) *entity.BookState {
	return &s
}

// everyoneGrants apply to every actor, authenticated or not. Owned
// conditions never match for anonymous actors.
var everyoneGrants = []Grant{
	{ActionRead, Condition{State: inState(entity.StateVisible)}},
	{ActionRead, Condition{State: inState(entity.StateDraft), Owned: true}},
	{ActionUpdate, Condition{State: inState(entity.StateDraft), Owned: true}},
	{ActionDelete, Condition{State: inState(entity.StateDraft), Owned: true}},
}

// grantTable maps each permission to its grants. ADMIN has no entry because
// it is the superuser role: evaluation allows it every action outright.
var grantTable = map[entity.Permission][]Grant{
	entity.PermissionCreate: {
		{ActionCreate, Condition{}},
	},
	entity.PermissionApprove: {
		{ActionRead, Condition{State: inState(entity.StateUnapproved)}},
		{ActionApprove, Condition{State: inState(entity.StateUnapproved)}},
	},
	entity.PermissionArchive: {
		{ActionRead, Condition{State: inState(entity.StateArchived)}},
		{ActionArchive, Condition{State: inState(entity.StateVisible)}},
		{ActionUnarchive, Condition{State: inState(entity.StateArchived)}},
	},
	entity.PermissionDelete: {
		{ActionDelete, Condition{State: inState(entity.StateArchived)}},
	},
	entity.PermissionEdit: {
		{ActionRead, Condition{State: inState(entity.StateUnapproved)}},
		{ActionUpdate, Condition{State: inState(entity.StateUnapproved)}},
		{ActionUpdate, Condition{State: inState(entity.StateVisible)}},
	},
}

// extendTable declares which permissions inherit another permission's grants.
// The graph must be acyclic; resolution is transitive.
var extendTable = map[entity.Permission][]entity.Permission{
	entity.PermissionDelete: {entity.PermissionArchive},
}

// flattened holds the grant set per permission with extensions resolved.
var flattened map[entity.Permission][]Grant

func init() {
	flattened = make(map[entity.Permission][]Grant, len(grantTable))
	for permission := range grantTable {
		flattened[permission] = resolve(permission, map[entity.Permission]bool{})
	}
}

func resolve(permission entity.Permission, seen map[entity.Permission]bool) []Grant {
	if seen[permission] {
		panic("policy: cyclic permission extension involving " + string(permission))
	}
	seen[permission] = true

	grants := append([]Grant(nil), grantTable[permission]...)
	for _, base := range extendTable[permission] {
		grants = append(grants, resolve(base, seen)...)
	}

	delete(seen, permission)
	return grants
}

// Grants returns the flattened grant set for a permission.
func Grants(permission entity.Permission) []Grant {
	return flattened[permission]
}

// Evaluate reports whether the actor may perform the action on the subject.
// A nil actor is anonymous and only matches the everyone grants; an ADMIN
// actor is allowed everything. The result is pure: same inputs, same
// decision.
func Evaluate(actor *entity.User, action Action, subject Subject) bool {
	actorID := ""
	grants := append([]Grant(nil), everyoneGrants...)
	if actor != nil {
		if actor.IsAdmin() {
			return true
		}
		actorID = actor.ID
		for _, permission := range actor.Permissions {
			grants = append(grants, flattened[permission]...)
		}
	}

	for _, grant := range grants {
		if grant.Action != action {
			continue
		}
		if grant.Condition.matches(actorID, subject) {
			return true
		}
	}
	return false
}

// Conditions returns every condition under which the actor may perform the
// action, for reuse as a listing filter: a record is listable iff it matches
// at least one returned condition. An empty result means the action is never
// allowed for this actor.
func Conditions(actor *entity.User, action Action) []Condition {
	grants := append([]Grant(nil), everyoneGrants...)
	if actor != nil {
		// The superuser matches everything unconditionally.
		if actor.IsAdmin() {
			return []Condition{{}}
		}
		for _, permission := range actor.Permissions {
			grants = append(grants, flattened[permission]...)
		}
	}

	var conditions []Condition
	for _, grant := range grants {
		if grant.Action == action {
			conditions = append(conditions, grant.Condition)
		}
	}
	return conditions
}

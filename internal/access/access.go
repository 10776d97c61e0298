// Package access decides which operations a principal may perform on a todo.
// It performs no I/O; the same Scope feeds both Decide and the store filters.
package access

import (
	"fmt"

	"uptrack/internal/model"
)

// Operation is an action requested on a todo.
type Operation int

const (
	Read Operation = iota
	Create
	Edit
	Delete
	Comment
	Complete
)

func (op Operation) String() string {
	switch op {
	case Read:
		return "read"
	case Create:
		return "create"
	case Edit:
		return "edit"
	case Delete:
		return "delete"
	case Comment:
		return "comment"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// Reason explains a denial. Callers collapse denials on id-addressed
// operations into not-found so existence is not leaked.
type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotOwner        Reason = "not_owner"
	ReasonNotAuthorized   Reason = "not_authorized"
)

// Decision is the outcome of Decide.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny(" + string(d.Reason) + ")"
}

// Scope is the set of todos a principal may touch for an operation:
// todos owned by OwnerID, or assigned to AssigneeEmail. Empty parts are ignored;
// a scope with both parts empty matches nothing.
type Scope struct {
	OwnerID       string
	AssigneeEmail string
}

// Empty reports whether the scope can match no todo.
func (s Scope) Empty() bool {
	return s.OwnerID == "" && s.AssigneeEmail == ""
}

// Matches evaluates the scope against a loaded todo.
func (s Scope) Matches(todo *model.Todo) bool {
	if todo == nil {
		return false
	}
	if s.OwnerID != "" && s.OwnerID == todo.UserID {
		return true
	}
	return s.AssigneeEmail != "" && todo.IsAssignedTo(s.AssigneeEmail)
}

// ScopeFor returns the store predicate for op, or a denial reason when the
// principal cannot perform op on any todo.
func ScopeFor(p Principal, op Operation) (Scope, Reason, bool) {
	switch op {
	case Create:
		if a, ok := p.(Authenticated); ok && a.UserID != "" {
			return Scope{OwnerID: a.UserID}, "", true
		}
		return Scope{}, ReasonUnauthenticated, false
	case Edit, Delete:
		if a, ok := p.(Authenticated); ok && a.UserID != "" {
			return Scope{OwnerID: a.UserID}, "", true
		}
		return Scope{}, ReasonNotOwner, false
	case Read, Comment, Complete:
		switch p := p.(type) {
		case Authenticated:
			if p.UserID == "" {
				return Scope{}, ReasonUnauthenticated, false
			}
			scope := Scope{OwnerID: p.UserID}
			if p.Verified {
				scope.AssigneeEmail = model.NormalizeEmail(p.Email)
			}
			return scope, "", true
		case AnonymousSupervisor:
			email := model.NormalizeEmail(p.ClaimedEmail)
			if email == "" {
				return Scope{}, ReasonNotAuthorized, false
			}
			return Scope{AssigneeEmail: email}, "", true
		}
		return Scope{}, ReasonUnauthenticated, false
	}
	return Scope{}, ReasonNotAuthorized, false
}

// Decide evaluates p × todo × op.
func Decide(p Principal, todo *model.Todo, op Operation) Decision {
	scope, reason, ok := ScopeFor(p, op)
	if !ok {
		return deny(reason)
	}
	if op == Create {
		return allow()
	}
	if scope.Matches(todo) {
		return allow()
	}
	switch op {
	case Edit, Delete:
		return deny(ReasonNotOwner)
	}
	return deny(ReasonNotAuthorized)
}

package access

import "uptrack/internal/model"

// Principal is the identity attached to a request. It is either
// Authenticated or AnonymousSupervisor; callers switch on the concrete type.
type Principal interface {
	principal()
}

// Authenticated is a caller holding a valid session for an account.
// Email grants assignee access only once the account has proven it owns the
// address (Verified); until then the account sees its own todos only.
type Authenticated struct {
	UserID   string
	Email    string
	Verified bool
}

// AnonymousSupervisor is a caller without a session that asserts an email.
// The email is not verified; knowing it together with a todo id is the capability.
type AnonymousSupervisor struct {
	ClaimedEmail string
}

func (Authenticated) principal()       {}
func (AnonymousSupervisor) principal() {}

// Attribution is the string recorded as comment author or completedBy.
func Attribution(p Principal) string {
	switch p := p.(type) {
	case Authenticated:
		return model.NormalizeEmail(p.Email)
	case AnonymousSupervisor:
		return model.NormalizeEmail(p.ClaimedEmail)
	}
	return ""
}

// IsOwner reports whether p is the authenticated owner of todo.
func IsOwner(p Principal, todo *model.Todo) bool {
	a, ok := p.(Authenticated)
	return ok && todo != nil && a.UserID != "" && a.UserID == todo.UserID
}

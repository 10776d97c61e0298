package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"uptrack/internal/model"
)

const (
	ownerID = "64b7f0c2a1b2c3d4e5f60718"
	otherID = "64b7f0c2a1b2c3d4e5f60719"
)

func strPtr(s string) *string { return &s }

func assignedTodo(email string) *model.Todo {
	return &model.Todo{ID: "64b7f0c2a1b2c3d4e5f60720", UserID: ownerID, AssignedTo: strPtr(email)}
}

func TestDecide_DeleteAndEditOnlyForOwner(t *testing.T) {
	todo := assignedTodo("sup@x.com")

	principals := []struct {
		name  string
		p     Principal
		allow bool
	}{
		{"owner", Authenticated{UserID: ownerID, Email: "owner@x.com"}, true},
		{"authenticated assignee", Authenticated{UserID: otherID, Email: "sup@x.com", Verified: true}, false},
		{"stranger", Authenticated{UserID: otherID, Email: "nobody@x.com"}, false},
		{"anonymous assignee", AnonymousSupervisor{ClaimedEmail: "sup@x.com"}, false},
		{"anonymous claiming owner email", AnonymousSupervisor{ClaimedEmail: "owner@x.com"}, false},
	}

	for _, op := range []Operation{Delete, Edit} {
		for _, tc := range principals {
			t.Run(op.String()+"/"+tc.name, func(t *testing.T) {
				d := Decide(tc.p, todo, op)
				assert.Equal(t, tc.allow, d.Allowed)
				if !tc.allow {
					assert.Equal(t, ReasonNotOwner, d.Reason)
				}
			})
		}
	}
}

func TestDecide_AssigneeAccessIsCaseInsensitive(t *testing.T) {
	stored := []string{"sup@x.com", "SUP@X.COM", "Sup@X.com"}
	claimed := []string{"SUP@X.com", "sup@x.com", "  sup@X.COM "}

	for _, s := range stored {
		for _, c := range claimed {
			todo := assignedTodo(s)
			for _, op := range []Operation{Read, Comment, Complete} {
				assert.True(t, Decide(AnonymousSupervisor{ClaimedEmail: c}, todo, op).Allowed,
					"stored=%q claimed=%q op=%s", s, c, op)
				assert.True(t, Decide(Authenticated{UserID: otherID, Email: c, Verified: true}, todo, op).Allowed,
					"stored=%q authenticated=%q op=%s", s, c, op)
			}
		}
	}
}

func TestDecide_ReadDeniedForOtherEmail(t *testing.T) {
	todo := assignedTodo("boss@co.com")

	d := Decide(AnonymousSupervisor{ClaimedEmail: "other@co.com"}, todo, Read)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotAuthorized, d.Reason)

	d = Decide(Authenticated{UserID: otherID, Email: "other@co.com", Verified: true}, todo, Complete)
	assert.False(t, d.Allowed)
}

func TestDecide_UnverifiedAccountGetsNoAssigneeAccess(t *testing.T) {
	todo := assignedTodo("sup@x.com")
	unverified := Authenticated{UserID: otherID, Email: "sup@x.com"}

	for _, op := range []Operation{Read, Comment, Complete} {
		d := Decide(unverified, todo, op)
		assert.False(t, d.Allowed, op.String())
		assert.Equal(t, ReasonNotAuthorized, d.Reason)
	}
}

func TestDecide_UnassignedTodoOnlyVisibleToOwner(t *testing.T) {
	todo := &model.Todo{UserID: ownerID}

	assert.True(t, Decide(Authenticated{UserID: ownerID}, todo, Read).Allowed)
	assert.False(t, Decide(AnonymousSupervisor{ClaimedEmail: "x@y.z"}, todo, Read).Allowed)
	assert.False(t, Decide(AnonymousSupervisor{ClaimedEmail: ""}, todo, Read).Allowed)

	empty := &model.Todo{UserID: ownerID, AssignedTo: strPtr("")}
	assert.False(t, Decide(AnonymousSupervisor{ClaimedEmail: ""}, empty, Comment).Allowed)
}

func TestDecide_Create(t *testing.T) {
	assert.True(t, Decide(Authenticated{UserID: ownerID}, nil, Create).Allowed)

	d := Decide(AnonymousSupervisor{ClaimedEmail: "sup@x.com"}, nil, Create)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnauthenticated, d.Reason)
}

func TestScopeFor(t *testing.T) {
	scope, _, ok := ScopeFor(Authenticated{UserID: ownerID, Email: "Me@X.com", Verified: true}, Comment)
	assert.True(t, ok)
	assert.Equal(t, Scope{OwnerID: ownerID, AssigneeEmail: "me@x.com"}, scope)

	scope, _, ok = ScopeFor(Authenticated{UserID: ownerID, Email: "me@x.com"}, Read)
	assert.True(t, ok)
	assert.Equal(t, Scope{OwnerID: ownerID}, scope)

	scope, _, ok = ScopeFor(Authenticated{UserID: ownerID, Email: "me@x.com"}, Delete)
	assert.True(t, ok)
	assert.Equal(t, Scope{OwnerID: ownerID}, scope)

	_, reason, ok := ScopeFor(AnonymousSupervisor{ClaimedEmail: "sup@x.com"}, Edit)
	assert.False(t, ok)
	assert.Equal(t, ReasonNotOwner, reason)

	scope, _, ok = ScopeFor(AnonymousSupervisor{ClaimedEmail: " SUP@x.com"}, Read)
	assert.True(t, ok)
	assert.Equal(t, Scope{AssigneeEmail: "sup@x.com"}, scope)
	assert.False(t, scope.Empty())
	assert.True(t, Scope{}.Empty())
}

func TestAttribution(t *testing.T) {
	assert.Equal(t, "owner@x.com", Attribution(Authenticated{UserID: ownerID, Email: "Owner@X.com"}))
	assert.Equal(t, "boss@co.com", Attribution(AnonymousSupervisor{ClaimedEmail: "Boss@co.com "}))
}

func TestIsOwner(t *testing.T) {
	todo := assignedTodo("sup@x.com")
	assert.True(t, IsOwner(Authenticated{UserID: ownerID}, todo))
	assert.False(t, IsOwner(Authenticated{UserID: otherID}, todo))
	assert.False(t, IsOwner(AnonymousSupervisor{ClaimedEmail: "sup@x.com"}, todo))
	assert.False(t, IsOwner(Authenticated{UserID: ownerID}, nil))
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uptrack/internal/access"
	"uptrack/internal/events"
	"uptrack/internal/metrics"
	"uptrack/internal/model"
)

func TestTodoService_SupervisorCompletesAssignedTodo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "Boss@co.com"})
	require.NoError(t, err)
	require.NotNil(t, todo.AssignedTo)
	assert.Equal(t, "boss@co.com", *todo.AssignedTo)
	assert.Equal(t, model.PriorityMedium, todo.Priority)
	assert.False(t, todo.ShowSubtasks)
	assert.NotNil(t, todo.Comments)

	f.dispatcher.Wait()
	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "boss@co.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "https://app.test/supervisor/todos/"+todo.ID+"?email=boss%40co.com")

	supervisor := access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"}
	done, err := f.svc.Complete(ctx, supervisor, todo.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, "boss@co.com", *done.CompletedBy)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.UserID, "anonymous responses are redacted")

	f.dispatcher.Wait()
	sent = f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "owner@co.com", sent[1].To)
	assert.Equal(t, "Todo marked as complete", sent[1].Subject)

	assert.ElementsMatch(t, []events.Kind{events.KindCreated, events.KindCompleted}, f.publisher.kinds())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TodoOps.WithLabelValues("complete", metrics.OutcomeOK)))
}

func TestTodoService_WrongEmailLooksLikeMissingTodo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "boss@co.com"})
	require.NoError(t, err)

	_, errWrongEmail := f.svc.Get(ctx, access.AnonymousSupervisor{ClaimedEmail: "other@co.com"}, todo.ID)
	_, errMissing := f.svc.Get(ctx, access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"}, model.NewID())

	assert.ErrorIs(t, errWrongEmail, ErrNotFound)
	assert.ErrorIs(t, errMissing, ErrNotFound)
	assert.Equal(t, errMissing.Error(), errWrongEmail.Error())

	_, err = f.svc.Complete(ctx, access.AnonymousSupervisor{ClaimedEmail: "other@co.com"}, todo.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := f.svc.Get(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.False(t, stored.Completed)
}

func TestTodoService_CaseInsensitiveSupervisorAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "sup@x.com"})
	require.NoError(t, err)

	p := access.AnonymousSupervisor{ClaimedEmail: "SUP@X.com"}
	got, err := f.svc.Get(ctx, p, todo.ID)
	require.NoError(t, err)
	assert.Empty(t, got.UserID)
	assert.Nil(t, got.Supervisor)

	commented, err := f.svc.AddComment(ctx, p, todo.ID, "looks good")
	require.NoError(t, err)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, "sup@x.com", commented.Comments[0].Author)
}

func TestTodoService_CreateRejectsPastDueDateWithoutWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	yesterday := time.Now().Add(-24 * time.Hour)
	_, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Late", DueDate: &yesterday, AssignedTo: "boss@co.com"})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dueDate", ve.Field)

	todos, err := f.svc.List(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, todos)

	f.dispatcher.Wait()
	assert.Empty(t, f.notifier.sent())
}

func TestTodoService_CreateValidationFields(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		in    CreateTodoInput
		field string
	}{
		{"blank title", CreateTodoInput{Title: "   "}, "title"},
		{"bad priority", CreateTodoInput{Title: "x", Priority: "urgent"}, "priority"},
		{"blank subtodo", CreateTodoInput{Title: "x", Subtodos: []SubtodoInput{{Title: "ok"}, {Title: " "}}}, "subtodos.1.title"},
		{"bad supervisor", CreateTodoInput{Title: "x", Supervisor: "nope"}, "supervisor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.owner, tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestTodoService_CreateRequiresAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"}, CreateTodoInput{Title: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTodoService_CompleteTwiceOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "boss@co.com"})
	require.NoError(t, err)

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	f.svc.now = func() time.Time { return first }
	_, err = f.svc.Complete(ctx, access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"}, todo.ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return second }
	again, err := f.svc.Complete(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.True(t, again.Completed)
	assert.Equal(t, "owner@co.com", *again.CompletedBy)
	assert.True(t, second.Equal(*again.CompletedAt))
}

func TestTodoService_ShowSubtasksNotRederived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{
		Title:    "Plan trip",
		Subtodos: []SubtodoInput{{Title: "book flights"}, {Title: "hotel", Completed: true}},
	})
	require.NoError(t, err)
	assert.True(t, todo.ShowSubtasks)

	empty := []SubtodoInput{}
	updated, err := f.svc.Update(ctx, f.owner, todo.ID, UpdateTodoInput{Subtodos: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Subtodos)

	got, err := f.svc.Get(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.True(t, got.ShowSubtasks)
	assert.Empty(t, got.Subtodos)

	plain, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "No list"})
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, f.owner, plain.ID)
	require.NoError(t, err)
	assert.False(t, got.ShowSubtasks)
}

func TestTodoService_UpdateIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boss := f.addUser(t, "boss@co.com")

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "boss@co.com"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, boss, todo.ID, UpdateTodoInput{Title: strPtr("mine now")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Update(ctx, f.owner, todo.ID, UpdateTodoInput{Title: strPtr("  ")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)

	high := model.PriorityHigh
	updated, err := f.svc.Update(ctx, f.owner, todo.ID, UpdateTodoInput{Title: strPtr(" Final report "), Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, "Final report", updated.Title)
	assert.Equal(t, model.PriorityHigh, updated.Priority)
	assert.Equal(t, f.owner.UserID, updated.UserID)
	assert.Equal(t, "boss@co.com", *updated.AssignedTo)
}

func TestTodoService_ConcurrentOwnerAndNonOwnerUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	intruder := f.addUser(t, "intruder@co.com")

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Original"})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		var wg sync.WaitGroup
		var ownerErr, intruderErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, ownerErr = f.svc.Update(ctx, f.owner, todo.ID, UpdateTodoInput{Title: strPtr("Owner title")})
		}()
		go func() {
			defer wg.Done()
			_, intruderErr = f.svc.Update(ctx, intruder, todo.ID, UpdateTodoInput{Title: strPtr("Hijacked")})
		}()
		wg.Wait()

		require.NoError(t, ownerErr)
		require.ErrorIs(t, intruderErr, ErrNotFound)
	}

	got, err := f.svc.Get(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner title", got.Title)
	assert.Equal(t, f.owner.UserID, got.UserID)
}

func TestTodoService_CommentNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boss := f.addUser(t, "boss@co.com")

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report"})
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, f.owner, todo.ID, "note to self")
	require.NoError(t, err)
	f.dispatcher.Wait()
	assert.Empty(t, f.notifier.sent(), "owner is never notified about their own comment")

	_, err = f.svc.AddComment(ctx, boss, todo.ID, "not yours")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AddComment(ctx, f.owner, todo.ID, "   ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "text", ve.Field)

	assigned, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Review", AssignedTo: "boss@co.com"})
	require.NoError(t, err)
	f.dispatcher.Wait()

	withComment, err := f.svc.AddComment(ctx, boss, assigned.ID, "please add charts")
	require.NoError(t, err)
	assert.Equal(t, f.owner.UserID, withComment.UserID, "authenticated callers see the full record")
	require.Len(t, withComment.Comments, 1)
	assert.Equal(t, "boss@co.com", withComment.Comments[0].Author)

	f.dispatcher.Wait()
	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "owner@co.com", sent[1].To)
	assert.Equal(t, "New comment on your todo", sent[1].Subject)
	assert.Contains(t, sent[1].Text, "please add charts")
}

func TestTodoService_NotifierFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.failWith(errors.New("smtp: 421 service not available"))

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "boss@co.com"})
	require.NoError(t, err)

	commented, err := f.svc.AddComment(ctx, access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"}, todo.ID, "on it")
	require.NoError(t, err)
	require.Len(t, commented.Comments, 1)

	f.dispatcher.Wait()
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SideEffects.WithLabelValues("mail.assigned", metrics.OutcomeError))+
		testutil.ToFloat64(f.metrics.SideEffects.WithLabelValues("mail.commented", metrics.OutcomeError)))

	got, err := f.svc.Get(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, 1)
}

func TestTodoService_DeleteIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boss := f.addUser(t, "boss@co.com")

	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Ship report", AssignedTo: "boss@co.com"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, boss, todo.ID), ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"}, todo.ID), ErrNotFound)

	_, err = f.svc.Get(ctx, boss, todo.ID)
	require.NoError(t, err, "assignee can still read after failed delete")

	require.NoError(t, f.svc.Delete(ctx, f.owner, todo.ID))
	_, err = f.svc.Get(ctx, f.owner, todo.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.owner, todo.ID), ErrNotFound)

	f.dispatcher.Wait()
	assert.Contains(t, f.publisher.kinds(), events.KindDeleted)
}

func TestTodoService_ListOwnedAndAssigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boss := f.addUser(t, "Boss@co.com")

	_, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "mine"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "for boss", AssignedTo: "BOSS@co.com"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, boss, CreateTodoInput{Title: "boss own"})
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	bossList, err := f.svc.List(ctx, boss)
	require.NoError(t, err)
	assert.Len(t, bossList, 2)

	_, err = f.svc.List(ctx, access.AnonymousSupervisor{ClaimedEmail: "boss@co.com"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

// untouchableStore panics on any call, proving a path never reaches the store.
type untouchableStore struct{ TodoStore }

func TestTodoService_InvalidIDNeverReachesStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewTodoService(TodoServiceDeps{Todos: untouchableStore{}, Accounts: f.users})

	_, err := svc.Get(ctx, f.owner, "123")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = svc.Update(ctx, f.owner, "zzzzzzzzzzzzzzzzzzzzzzzz", UpdateTodoInput{})
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = svc.AddComment(ctx, access.AnonymousSupervisor{ClaimedEmail: "a@b.c"}, "", "hi")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = svc.Complete(ctx, access.AnonymousSupervisor{ClaimedEmail: "a@b.c"}, "not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, svc.Delete(ctx, f.owner, "1234"), ErrInvalidID)
}

func TestCreateTodoInput_DueDateFormats(t *testing.T) {
	var in CreateTodoInput
	require.NoError(t, json.Unmarshal([]byte(`{"title":"a","dueDate":"2099-01-01"}`), &in))
	require.NotNil(t, in.DueDate)
	assert.Equal(t, time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC), *in.DueDate)
	assert.Equal(t, "a", in.Title)

	in = CreateTodoInput{}
	require.NoError(t, json.Unmarshal([]byte(`{"title":"a","dueDate":"2099-01-01T10:30:00+02:00"}`), &in))
	require.NotNil(t, in.DueDate)
	assert.Equal(t, time.Date(2099, 1, 1, 8, 30, 0, 0, time.UTC), *in.DueDate)

	in = CreateTodoInput{}
	require.NoError(t, json.Unmarshal([]byte(`{"title":"a","dueDate":null}`), &in))
	assert.Nil(t, in.DueDate)

	err := json.Unmarshal([]byte(`{"title":"a","dueDate":"next week"}`), &in)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dueDate", ve.Field)

	var patch UpdateTodoInput
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":"2099-02-03","title":"b"}`), &patch))
	require.NotNil(t, patch.DueDate)
	require.NotNil(t, patch.Title)
	assert.Equal(t, 3, patch.DueDate.Day())
	assert.Equal(t, "b", *patch.Title)
}

func TestTodoService_OwnerCompletingOwnTodoSendsNoMail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	todo, err := f.svc.Create(ctx, f.owner, CreateTodoInput{Title: "Solo task"})
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	f.dispatcher.Wait()
	assert.Empty(t, f.notifier.sent())
	assert.Contains(t, f.publisher.kinds(), events.KindCompleted)
}

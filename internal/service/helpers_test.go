package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"uptrack/internal/access"
	"uptrack/internal/events"
	"uptrack/internal/metrics"
	"uptrack/internal/model"
	"uptrack/internal/notify"
	"uptrack/internal/repository"
	"uptrack/internal/testsupport"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingNotifier) sent() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.msgs...)
}

func (r *recordingNotifier) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	svc        *TodoService
	users      *repository.UserRepository
	todos      *repository.TodoRepository
	notifier   *recordingNotifier
	publisher  *recordingPublisher
	dispatcher *notify.Dispatcher
	metrics    *metrics.Metrics
	owner      access.Authenticated
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testsupport.NewDB(t)
	f := &fixture{
		users:     repository.NewUserRepository(db),
		todos:     repository.NewTodoRepository(db),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		metrics:   metrics.New(),
	}
	f.dispatcher = notify.NewDispatcher(time.Second, zerolog.Nop(), f.metrics)
	f.owner = f.addUser(t, "owner@co.com")
	f.svc = NewTodoService(TodoServiceDeps{
		Todos:       f.todos,
		Accounts:    f.users,
		Notifier:    f.notifier,
		Events:      f.publisher,
		Dispatcher:  f.dispatcher,
		Metrics:     f.metrics,
		FrontendURL: "https://app.test/",
		Log:         zerolog.Nop(),
	})
	return f
}

func (f *fixture) addUser(t *testing.T, email string) access.Authenticated {
	t.Helper()
	user := &model.User{ID: model.NewID(), Username: "user", Email: email, IsVerified: true}
	require.NoError(t, f.users.Create(context.Background(), user))
	return access.Authenticated{UserID: user.ID, Email: email, Verified: true}
}

func strPtr(s string) *string { return &s }

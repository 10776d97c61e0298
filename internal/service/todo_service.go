package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"uptrack/internal/access"
	"uptrack/internal/events"
	"uptrack/internal/metrics"
	"uptrack/internal/model"
	"uptrack/internal/notify"
	"uptrack/internal/repository"
)

// TodoStore persists todos. Every call that takes a filter applies its
// scope inside the same statement as the read or write.
type TodoStore interface {
	Insert(ctx context.Context, todo *model.Todo) error
	FindOne(ctx context.Context, filter repository.TodoFilter) (*model.Todo, error)
	FindMany(ctx context.Context, filter repository.TodoFilter) ([]model.Todo, error)
	UpdateOne(ctx context.Context, filter repository.TodoFilter, updates map[string]any) (*model.Todo, error)
	AppendComment(ctx context.Context, filter repository.TodoFilter, comment model.Comment) (*model.Todo, error)
	DeleteOne(ctx context.Context, filter repository.TodoFilter) (*model.Todo, error)
}

// AccountLookup resolves an owner's notification address. An empty email
// with a nil error means the account no longer exists.
type AccountLookup interface {
	EmailForUserID(ctx context.Context, userID string) (string, error)
}

type TodoServiceDeps struct {
	Todos       TodoStore
	Accounts    AccountLookup
	Notifier    notify.Notifier
	Events      events.Publisher
	Dispatcher  *notify.Dispatcher
	Metrics     *metrics.Metrics
	FrontendURL string
	Log         zerolog.Logger
}

// TodoService wraps todo lifecycle logic.
type TodoService struct {
	todos       TodoStore
	accounts    AccountLookup
	notifier    notify.Notifier
	events      events.Publisher
	dispatcher  *notify.Dispatcher
	metrics     *metrics.Metrics
	frontendURL string
	log         zerolog.Logger
	now         func() time.Time
}

func NewTodoService(d TodoServiceDeps) *TodoService {
	s := &TodoService{
		todos:       d.Todos,
		accounts:    d.Accounts,
		notifier:    d.Notifier,
		events:      d.Events,
		dispatcher:  d.Dispatcher,
		metrics:     d.Metrics,
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
		log:         d.Log.With().Str("component", "todos").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.notifier == nil {
		s.notifier = notify.NewNop(d.Log)
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.NewDispatcher(10*time.Second, d.Log, d.Metrics)
	}
	return s
}

func (s *TodoService) Create(ctx context.Context, p access.Principal, in CreateTodoInput) (todo *model.Todo, err error) {
	defer s.observe("create", &err)

	scope, reason, ok := access.ScopeFor(p, access.Create)
	if !ok {
		return nil, denial(reason)
	}

	now := s.now()
	if err := validateCreate(in, now); err != nil {
		return nil, err
	}

	todo = &model.Todo{
		ID:           model.NewID(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Priority:     in.Priority,
		Subtodos:     make(model.Subtodos, 0, len(in.Subtodos)),
		ShowSubtasks: len(in.Subtodos) > 0,
		UserID:       scope.OwnerID,
		Comments:     []model.Comment{},
	}
	if todo.Priority == "" {
		todo.Priority = model.PriorityMedium
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		todo.DueDate = &due
	}
	for _, st := range in.Subtodos {
		todo.Subtodos = append(todo.Subtodos, model.Subtodo{Title: strings.TrimSpace(st.Title), Completed: st.Completed})
	}
	if email := model.NormalizeEmail(in.AssignedTo); email != "" {
		todo.AssignedTo = &email
	}
	if in.Supervisor != "" {
		supervisor, _ := model.ParseID(in.Supervisor)
		todo.Supervisor = &supervisor
	}

	if err := s.todos.Insert(ctx, todo); err != nil {
		return nil, err
	}

	if todo.AssignedTo != nil {
		s.dispatcher.Notify("mail.assigned", s.notifier, assignmentMessage(s.frontendURL, todo))
	}
	s.publish(events.KindCreated, todo, access.Attribution(p), now)
	return todo, nil
}

// Get returns a todo visible to p. Anonymous callers receive a redacted copy.
func (s *TodoService) Get(ctx context.Context, p access.Principal, rawID string) (todo *model.Todo, err error) {
	defer s.observe("get", &err)

	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, ErrInvalidID
	}
	scope, reason, ok := access.ScopeFor(p, access.Read)
	if !ok {
		return nil, denial(reason)
	}

	todo, err = s.todos.FindOne(ctx, repository.TodoFilter{ID: id, Scope: scope})
	if err != nil {
		return nil, err
	}
	if todo == nil {
		return nil, ErrNotFound
	}
	return present(p, todo), nil
}

// List returns the todos p owns or is assigned to, newest first.
func (s *TodoService) List(ctx context.Context, p access.Principal) (todos []model.Todo, err error) {
	defer s.observe("list", &err)

	if _, ok := p.(access.Authenticated); !ok {
		return nil, ErrUnauthenticated
	}
	scope, reason, ok := access.ScopeFor(p, access.Read)
	if !ok {
		return nil, denial(reason)
	}
	return s.todos.FindMany(ctx, repository.TodoFilter{Scope: scope})
}

// Update patches fields of a todo owned by p.
func (s *TodoService) Update(ctx context.Context, p access.Principal, rawID string, patch UpdateTodoInput) (todo *model.Todo, err error) {
	defer s.observe("update", &err)

	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, ErrInvalidID
	}
	scope, reason, ok := access.ScopeFor(p, access.Edit)
	if !ok {
		return nil, denial(reason)
	}
	filter := repository.TodoFilter{ID: id, Scope: scope}

	current, err := s.todos.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if current == nil || !access.Decide(p, current, access.Edit).Allowed {
		return nil, ErrNotFound
	}

	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	updates := patchColumns(patch)
	if len(updates) == 0 {
		return current, nil
	}

	todo, err = s.todos.UpdateOne(ctx, filter, updates)
	if err != nil {
		return nil, err
	}
	if todo == nil {
		return nil, ErrNotFound
	}
	s.publish(events.KindUpdated, todo, access.Attribution(p), s.now())
	return todo, nil
}

func patchColumns(patch UpdateTodoInput) map[string]any {
	updates := map[string]any{}
	if patch.Title != nil {
		updates["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.DueDate != nil {
		updates["due_date"] = patch.DueDate.UTC()
	}
	if patch.Subtodos != nil {
		subtodos := make(model.Subtodos, 0, len(*patch.Subtodos))
		for _, st := range *patch.Subtodos {
			subtodos = append(subtodos, model.Subtodo{Title: strings.TrimSpace(st.Title), Completed: st.Completed})
		}
		updates["subtodos"] = subtodos
	}
	return updates
}

// AddComment appends a comment and alerts the owner when someone else wrote it.
func (s *TodoService) AddComment(ctx context.Context, p access.Principal, rawID, text string) (todo *model.Todo, err error) {
	defer s.observe("comment", &err)

	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, ErrInvalidID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "comment text is required")
	}
	scope, reason, ok := access.ScopeFor(p, access.Comment)
	if !ok {
		return nil, denial(reason)
	}

	now := s.now()
	author := access.Attribution(p)
	todo, err = s.todos.AppendComment(ctx, repository.TodoFilter{ID: id, Scope: scope}, model.Comment{
		Text:      text,
		Author:    author,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if todo == nil {
		return nil, ErrNotFound
	}

	if !access.IsOwner(p, todo) {
		s.notifyOwner("mail.commented", todo, commentMessage(s.frontendURL, todo, author, text))
	}
	s.publish(events.KindCommented, todo, author, now)
	return present(p, todo), nil
}

// Complete marks a todo done. Completing again overwrites completedBy and completedAt.
func (s *TodoService) Complete(ctx context.Context, p access.Principal, rawID string) (todo *model.Todo, err error) {
	defer s.observe("complete", &err)

	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, ErrInvalidID
	}
	scope, reason, ok := access.ScopeFor(p, access.Complete)
	if !ok {
		return nil, denial(reason)
	}

	now := s.now()
	by := access.Attribution(p)
	todo, err = s.todos.UpdateOne(ctx, repository.TodoFilter{ID: id, Scope: scope}, map[string]any{
		"completed":    true,
		"completed_by": by,
		"completed_at": now,
	})
	if err != nil {
		return nil, err
	}
	if todo == nil {
		return nil, ErrNotFound
	}

	if !access.IsOwner(p, todo) {
		s.notifyOwner("mail.completed", todo, completionMessage(todo, by, now))
	}
	s.publish(events.KindCompleted, todo, by, now)
	return present(p, todo), nil
}

// Delete removes a todo owned by p together with its comments.
func (s *TodoService) Delete(ctx context.Context, p access.Principal, rawID string) (err error) {
	defer s.observe("delete", &err)

	id, err := model.ParseID(rawID)
	if err != nil {
		return ErrInvalidID
	}
	scope, reason, ok := access.ScopeFor(p, access.Delete)
	if !ok {
		return denial(reason)
	}

	deleted, err := s.todos.DeleteOne(ctx, repository.TodoFilter{ID: id, Scope: scope})
	if err != nil {
		return err
	}
	if deleted == nil {
		return ErrNotFound
	}
	s.publish(events.KindDeleted, deleted, access.Attribution(p), s.now())
	return nil
}

// notifyOwner looks up the owner's address off the request path and sends msg.
func (s *TodoService) notifyOwner(kind string, todo *model.Todo, msg notify.Message) {
	ownerID := todo.UserID
	s.dispatcher.Go(kind, func(ctx context.Context) error {
		email, err := s.accounts.EmailForUserID(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("lookup owner: %w", err)
		}
		if email == "" {
			return fmt.Errorf("owner %s has no email: %w", ownerID, notify.ErrNoRecipient)
		}
		msg.To = email
		return s.notifier.Send(ctx, msg)
	})
}

func (s *TodoService) publish(kind events.Kind, todo *model.Todo, actor string, at time.Time) {
	e := events.Event{Kind: kind, TodoID: todo.ID, OwnerID: todo.UserID, Actor: actor, At: at}
	s.dispatcher.Go("event."+string(kind), func(ctx context.Context) error {
		return s.events.Publish(ctx, e)
	})
}

func (s *TodoService) observe(op string, err *error) {
	outcome := metrics.OutcomeOK
	switch {
	case *err == nil:
	case errors.Is(*err, ErrNotFound), errors.Is(*err, ErrUnauthenticated), errors.Is(*err, ErrInvalidID):
		outcome = metrics.OutcomeDenied
	default:
		var ve *ValidationError
		if errors.As(*err, &ve) {
			outcome = metrics.OutcomeDenied
			break
		}
		outcome = metrics.OutcomeError
		s.log.Error().Err(*err).Str("op", op).Msg("todo operation failed")
	}
	if s.metrics != nil {
		s.metrics.TodoOps.WithLabelValues(op, outcome).Inc()
	}
}

// denial maps an access reason onto the error returned to callers. Owner and
// assignee denials collapse into ErrNotFound.
func denial(reason access.Reason) error {
	if reason == access.ReasonUnauthenticated {
		return ErrUnauthenticated
	}
	return ErrNotFound
}

// present applies the redaction anonymous callers always get.
func present(p access.Principal, todo *model.Todo) *model.Todo {
	if _, ok := p.(access.AnonymousSupervisor); ok {
		redacted := todo.Redacted()
		return &redacted
	}
	return todo
}

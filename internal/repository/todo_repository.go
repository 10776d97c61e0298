package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"uptrack/internal/access"
	"uptrack/internal/model"
)

// TodoFilter selects todos. The access scope is always applied; an empty
// scope matches nothing, so a missing predicate can never widen a query.
type TodoFilter struct {
	ID        string
	Scope     access.Scope
	OpenOnly  bool
	DueBefore *time.Time
}

func (f TodoFilter) apply(db *gorm.DB) *gorm.DB {
	if f.ID != "" {
		db = db.Where("todos.id = ?", f.ID)
	}
	switch s := f.Scope; {
	case s.OwnerID != "" && s.AssigneeEmail != "":
		db = db.Where("(todos.user_id = ? OR todos.assigned_to = ?)", s.OwnerID, s.AssigneeEmail)
	case s.OwnerID != "":
		db = db.Where("todos.user_id = ?", s.OwnerID)
	case s.AssigneeEmail != "":
		db = db.Where("todos.assigned_to = ?", s.AssigneeEmail)
	default:
		db = db.Where("1 = 0")
	}
	if f.OpenOnly {
		db = db.Where("todos.completed = ?", false)
	}
	if f.DueBefore != nil {
		db = db.Where("todos.due_date IS NOT NULL AND todos.due_date < ?", *f.DueBefore)
	}
	return db
}

// TodoRepository stores todos and their comments.
type TodoRepository struct {
	db *gorm.DB
}

func NewTodoRepository(db *gorm.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func withComments(db *gorm.DB) *gorm.DB {
	return db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

func (r *TodoRepository) Insert(ctx context.Context, todo *model.Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// FindOne returns the matching todo, or nil when nothing matches.
func (r *TodoRepository) FindOne(ctx context.Context, filter TodoFilter) (*model.Todo, error) {
	return findOne(r.db.WithContext(ctx), filter)
}

func findOne(db *gorm.DB, filter TodoFilter) (*model.Todo, error) {
	var todo model.Todo
	err := filter.apply(withComments(db)).First(&todo).Error
	switch {
	case err == nil:
		return &todo, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find todo: %w", err)
	}
}

// FindMany lists matching todos, newest first.
func (r *TodoRepository) FindMany(ctx context.Context, filter TodoFilter) ([]model.Todo, error) {
	var todos []model.Todo
	if err := filter.apply(withComments(r.db.WithContext(ctx))).
		Order("todos.created_at DESC").
		Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// UpdateOne applies updates to the todo matched by filter in a single
// statement and returns the updated record, or nil when the filter matched nothing.
func (r *TodoRepository) UpdateOne(ctx context.Context, filter TodoFilter, updates map[string]any) (*model.Todo, error) {
	if filter.ID == "" {
		return nil, errors.New("update todo: id is required")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	var updated *model.Todo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := filter.apply(tx.Model(&model.Todo{})).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update todo: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		todo, err := findOne(tx, TodoFilter{ID: filter.ID, Scope: filter.Scope})
		updated = todo
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendComment adds a comment to the todo matched by filter. It returns nil
// without writing when the filter matches nothing.
func (r *TodoRepository) AppendComment(ctx context.Context, filter TodoFilter, comment model.Comment) (*model.Todo, error) {
	if filter.ID == "" {
		return nil, errors.New("append comment: id is required")
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	var updated *model.Todo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := filter.apply(tx.Model(&model.Todo{})).Update("updated_at", comment.CreatedAt)
		if res.Error != nil {
			return fmt.Errorf("touch todo: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		comment.ID = 0
		comment.TodoID = filter.ID
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		todo, err := findOne(tx, TodoFilter{ID: filter.ID, Scope: filter.Scope})
		updated = todo
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteOne removes the todo matched by filter together with its comments and
// returns the deleted record, or nil when nothing matched.
func (r *TodoRepository) DeleteOne(ctx context.Context, filter TodoFilter) (*model.Todo, error) {
	var deleted *model.Todo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		todo, err := findOne(tx, filter)
		if err != nil || todo == nil {
			return err
		}
		res := filter.apply(tx.Where("todos.id = ?", todo.ID)).Delete(&model.Todo{})
		if res.Error != nil {
			return fmt.Errorf("delete todo: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("todo_id = ?", todo.ID).Delete(&model.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		deleted = todo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

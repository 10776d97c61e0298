package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"uptrack/internal/model"
)

const todoProperties = `{
	"title": {"type": "string", "pattern": "\\S"},
	"description": {"type": "string"},
	"priority": {"enum": ["low", "medium", "high"]},
	"subtodos": {
		"type": "array",
		"items": {
			"type": "object",
			"required": ["title"],
			"properties": {
				"title": {"type": "string", "pattern": "\\S"},
				"completed": {"type": "boolean"}
			}
		}
	}
}`

var (
	createSchema = jsonschema.MustCompileString("todo-create.json",
		`{"type": "object", "required": ["title"], "properties": `+todoProperties+`}`)
	patchSchema = jsonschema.MustCompileString("todo-patch.json",
		`{"type": "object", "properties": `+todoProperties+`}`)
)

// SubtodoInput is one checklist entry in a payload.
type SubtodoInput struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// CreateTodoInput is the payload accepted by TodoService.Create.
type CreateTodoInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	DueDate     *time.Time     `json:"dueDate"`
	Subtodos    []SubtodoInput `json:"subtodos"`
	AssignedTo  string         `json:"assignedTo"`
	Supervisor  string         `json:"supervisor"`
}

// UpdateTodoInput is a patch; nil fields are left untouched.
type UpdateTodoInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *model.Priority `json:"priority"`
	DueDate     *time.Time      `json:"dueDate"`
	Subtodos    *[]SubtodoInput `json:"subtodos"`
}

// UnmarshalJSON accepts dueDate as an RFC 3339 timestamp or a bare date.
func (in *CreateTodoInput) UnmarshalJSON(data []byte) error {
	type plain CreateTodoInput
	aux := struct {
		*plain
		DueDate *string `json:"dueDate"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	due, err := parseDueDate(aux.DueDate)
	if err != nil {
		return err
	}
	in.DueDate = due
	return nil
}

func (in *UpdateTodoInput) UnmarshalJSON(data []byte) error {
	type plain UpdateTodoInput
	aux := struct {
		*plain
		DueDate *string `json:"dueDate"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	due, err := parseDueDate(aux.DueDate)
	if err != nil {
		return err
	}
	in.DueDate = due
	return nil
}

// parseDueDate reads "2006-01-02T15:04:05Z07:00" or "2006-01-02" (midnight UTC).
// Absent, null and empty values mean no due date.
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid("dueDate", "dueDate must be a date such as 2006-01-02 or an RFC 3339 timestamp")
}

func (in CreateTodoInput) document() map[string]any {
	doc := map[string]any{
		"title":       in.Title,
		"description": in.Description,
	}
	if in.Priority != "" {
		doc["priority"] = string(in.Priority)
	}
	if in.Subtodos != nil {
		doc["subtodos"] = subtodoDocs(in.Subtodos)
	}
	return doc
}

func (in UpdateTodoInput) document() map[string]any {
	doc := map[string]any{}
	if in.Title != nil {
		doc["title"] = *in.Title
	}
	if in.Description != nil {
		doc["description"] = *in.Description
	}
	if in.Priority != nil {
		doc["priority"] = string(*in.Priority)
	}
	if in.Subtodos != nil {
		doc["subtodos"] = subtodoDocs(*in.Subtodos)
	}
	return doc
}

func subtodoDocs(items []SubtodoInput) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{"title": item.Title, "completed": item.Completed})
	}
	return out
}

func validateCreate(in CreateTodoInput, now time.Time) error {
	if err := validateDocument(createSchema, in.document()); err != nil {
		return err
	}
	if in.DueDate != nil && !in.DueDate.After(now) {
		return invalid("dueDate", "dueDate must be in the future")
	}
	if in.Supervisor != "" {
		if _, err := model.ParseID(in.Supervisor); err != nil {
			return invalid("supervisor", "supervisor must be a valid id")
		}
	}
	return nil
}

func validatePatch(in UpdateTodoInput) error {
	return validateDocument(patchSchema, in.document())
}

func validateDocument(schema *jsonschema.Schema, doc map[string]any) error {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate todo: %w", err)
	}
	leaf := firstLeaf(ve)
	field := pointerToField(leaf.InstanceLocation)
	if field == "" && strings.Contains(leaf.Message, "title") {
		field = "title"
	}
	return invalid(field, describe(field, leaf.Message))
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// pointerToField turns "/subtodos/0/title" into "subtodos.0.title".
func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.Trim(ptr, "/")
	return strings.ReplaceAll(ptr, "/", ".")
}

func describe(field, fallback string) string {
	switch {
	case field == "title":
		return "title is required"
	case field == "priority":
		return "priority must be one of low, medium, high"
	case strings.HasPrefix(field, "subtodos.") && strings.HasSuffix(field, ".title"):
		return "subtodo title is required"
	case field == "subtodos":
		return "subtodos must be a list"
	}
	return fallback
}

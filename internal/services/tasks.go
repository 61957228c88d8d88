package services

import (
	"context"
	"strconv"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"

	"github.com/gofrs/uuid"
)

var taskUpdateFields = map[string]struct{}{
	"description": {},
	"completed":   {},
}

// sortColumns maps the accepted sortBy names onto task columns.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"created_at":  "created_at",
	"updatedAt":   "updated_at",
	"updated_at":  "updated_at",
	"description": "description",
	"completed":   "completed",
}

type TaskInput struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// ListParams carries the raw listing query string values.
type ListParams struct {
	Completed string
	SortBy    string
	Limit     string
	Skip      string
}

type TaskRegistry interface {
	Create(ctx context.Context, owner *models.User, input TaskInput) (*models.Task, error)
	Get(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, owner *models.User, id uuid.UUID, patch map[string]interface{}) (*models.Task, error)
	Delete(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, owner *models.User, params ListParams) ([]models.Task, error)
}

type TaskRegistryImpl struct {
	tasks repositories.TaskRepository
}

func NewTaskRegistry(tasks repositories.TaskRepository) *TaskRegistryImpl {
	return &TaskRegistryImpl{tasks: tasks}
}

func (s *TaskRegistryImpl) Create(ctx context.Context, owner *models.User, input TaskInput) (*models.Task, error) {
	description, err := normalizeDescription(input.Description)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		Description: description,
		Completed:   input.Completed,
		OwnerID:     owner.ID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskRegistryImpl) Get(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Task, error) {
	return s.tasks.FindOwned(ctx, owner.ID, id)
}

func (s *TaskRegistryImpl) Update(ctx context.Context, owner *models.User, id uuid.UUID, patch map[string]interface{}) (*models.Task, error) {
	if err := checkAllowed(patch, taskUpdateFields); err != nil {
		return nil, err
	}

	columns := make(map[string]interface{}, len(patch))

	if _, ok := patch["description"]; ok {
		raw, err := stringField(patch, "description")
		if err != nil {
			return nil, err
		}
		description, err := normalizeDescription(raw)
		if err != nil {
			return nil, err
		}
		columns["description"] = description
	}

	if _, ok := patch["completed"]; ok {
		completed, err := boolField(patch, "completed")
		if err != nil {
			return nil, err
		}
		columns["completed"] = completed
	}

	return s.tasks.UpdateOwned(ctx, owner.ID, id, columns)
}

func (s *TaskRegistryImpl) Delete(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Task, error) {
	return s.tasks.DeleteOwned(ctx, owner.ID, id)
}

func (s *TaskRegistryImpl) List(ctx context.Context, owner *models.User, params ListParams) ([]models.Task, error) {
	return s.tasks.ListOwned(ctx, owner.ID, ParseTaskQuery(params))
}

// ParseTaskQuery never fails: values it cannot use are dropped, so a bad
// limit means "no limit" and an unknown sort field means default order.
func ParseTaskQuery(params ListParams) repositories.TaskQuery {
	var query repositories.TaskQuery

	if params.Completed != "" {
		completed := params.Completed == "true"
		query.Completed = &completed
	}

	if params.SortBy != "" {
		field, direction, _ := strings.Cut(params.SortBy, ":")
		if column, ok := sortColumns[field]; ok {
			query.SortColumn = column
			query.SortDesc = direction == "desc"
		}
	}

	query.Limit = nonNegativeInt(params.Limit)
	query.Skip = nonNegativeInt(params.Skip)

	return query
}

func nonNegativeInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

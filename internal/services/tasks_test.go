package services_test

import (
	"testing"
	"time"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"
	"task-tracker/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type TaskRegistryTestSuite struct {
	ServiceTestSuite
}

func (suite *TaskRegistryTestSuite) TestCreate_OwnerIsCaller() {
	owner, _ := suite.register("Owner", "owner@example.com")

	task, err := suite.registry.Create(suite.ctx, owner, services.TaskInput{Description: "  Write report  "})
	suite.Require().NoError(err)

	suite.Equal("Write report", task.Description)
	suite.False(task.Completed)
	suite.Equal(owner.ID, task.OwnerID)
}

func (suite *TaskRegistryTestSuite) TestCreate_RequiresDescription() {
	owner, _ := suite.register("Owner", "owner@example.com")

	_, err := suite.registry.Create(suite.ctx, owner, services.TaskInput{Description: "   "})
	suite.ErrorIs(err, models.ErrValidation)
}

func (suite *TaskRegistryTestSuite) TestForeignTasksAreNotFound() {
	owner, _ := suite.register("Owner", "owner@example.com")
	intruder, _ := suite.register("Intruder", "intruder@example.com")
	task := suite.createTask(owner, "private", false)

	_, err := suite.registry.Get(suite.ctx, intruder, task.ID)
	suite.ErrorIs(err, models.ErrNotFound)

	_, err = suite.registry.Update(suite.ctx, intruder, task.ID, map[string]interface{}{"completed": true})
	suite.ErrorIs(err, models.ErrNotFound)

	_, err = suite.registry.Delete(suite.ctx, intruder, task.ID)
	suite.ErrorIs(err, models.ErrNotFound)

	_, err = suite.registry.Get(suite.ctx, owner, uuid.Must(uuid.NewV4()))
	suite.ErrorIs(err, models.ErrNotFound)

	stored, err := suite.registry.Get(suite.ctx, owner, task.ID)
	suite.Require().NoError(err)
	suite.False(stored.Completed)
}

func (suite *TaskRegistryTestSuite) TestUpdate_AllowList() {
	owner, _ := suite.register("Owner", "owner@example.com")
	other, _ := suite.register("Other", "other@example.com")
	task := suite.createTask(owner, "draft", false)

	_, err := suite.registry.Update(suite.ctx, owner, task.ID, map[string]interface{}{
		"completed": true,
		"owner":     other.ID.String(),
	})
	suite.ErrorIs(err, models.ErrInvalidUpdates)

	stored, err := suite.registry.Get(suite.ctx, owner, task.ID)
	suite.Require().NoError(err)
	suite.False(stored.Completed)
	suite.Equal(owner.ID, stored.OwnerID)
}

func (suite *TaskRegistryTestSuite) TestUpdate_ValidatesValues() {
	owner, _ := suite.register("Owner", "owner@example.com")
	task := suite.createTask(owner, "draft", false)

	for _, patch := range []map[string]interface{}{
		{"description": ""},
		{"description": 7},
		{"completed": "yes"},
	} {
		_, err := suite.registry.Update(suite.ctx, owner, task.ID, patch)
		suite.ErrorIs(err, models.ErrValidation, "patch %v", patch)
	}

	updated, err := suite.registry.Update(suite.ctx, owner, task.ID, map[string]interface{}{
		"description": "final",
		"completed":   true,
	})
	suite.Require().NoError(err)
	suite.Equal("final", updated.Description)
	suite.True(updated.Completed)
}

func (suite *TaskRegistryTestSuite) TestDelete_ReturnsTask() {
	owner, _ := suite.register("Owner", "owner@example.com")
	task := suite.createTask(owner, "short lived", false)

	deleted, err := suite.registry.Delete(suite.ctx, owner, task.ID)
	suite.Require().NoError(err)
	suite.Equal(task.ID, deleted.ID)

	_, err = suite.registry.Delete(suite.ctx, owner, task.ID)
	suite.ErrorIs(err, models.ErrNotFound)
}

func (suite *TaskRegistryTestSuite) TestList_CompletedFilterIsOwnerScoped() {
	owner, _ := suite.register("Owner", "owner@example.com")
	other, _ := suite.register("Other", "other@example.com")
	suite.createTask(owner, "done", true)
	suite.createTask(owner, "open", false)
	suite.createTask(other, "foreign done", true)

	tasks, err := suite.registry.List(suite.ctx, owner, services.ListParams{Completed: "true"})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Equal("done", tasks[0].Description)

	tasks, err = suite.registry.List(suite.ctx, owner, services.ListParams{Completed: "false"})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Equal("open", tasks[0].Description)

	tasks, err = suite.registry.List(suite.ctx, owner, services.ListParams{})
	suite.Require().NoError(err)
	suite.Len(tasks, 2)
}

func (suite *TaskRegistryTestSuite) TestList_Pagination() {
	owner, _ := suite.register("Owner", "owner@example.com")

	var created []*models.Task
	for _, description := range []string{"task 1", "task 2", "task 3", "task 4", "task 5"} {
		created = append(created, suite.createTask(owner, description, false))
		time.Sleep(2 * time.Millisecond)
	}

	page, err := suite.registry.List(suite.ctx, owner, services.ListParams{SortBy: "createdAt:asc", Limit: "2", Skip: "2"})
	suite.Require().NoError(err)
	suite.Require().Len(page, 2)
	suite.Equal(created[2].ID, page[0].ID)
	suite.Equal(created[3].ID, page[1].ID)

	newest, err := suite.registry.List(suite.ctx, owner, services.ListParams{SortBy: "createdAt:desc", Limit: "1"})
	suite.Require().NoError(err)
	suite.Require().Len(newest, 1)
	suite.Equal(created[4].ID, newest[0].ID)
}

func TestTaskRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(TaskRegistryTestSuite))
}

func TestParseTaskQuery(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name     string
		params   services.ListParams
		expected repositories.TaskQuery
	}{
		{"empty", services.ListParams{}, repositories.TaskQuery{}},
		{"completed true", services.ListParams{Completed: "true"}, repositories.TaskQuery{Completed: &yes}},
		{"completed anything else", services.ListParams{Completed: "nope"}, repositories.TaskQuery{Completed: &no}},
		{"sort desc", services.ListParams{SortBy: "createdAt:desc"}, repositories.TaskQuery{SortColumn: "created_at", SortDesc: true}},
		{"sort snake case", services.ListParams{SortBy: "updated_at:asc"}, repositories.TaskQuery{SortColumn: "updated_at"}},
		{"sort without direction", services.ListParams{SortBy: "description"}, repositories.TaskQuery{SortColumn: "description"}},
		{"sort odd direction", services.ListParams{SortBy: "completed:sideways"}, repositories.TaskQuery{SortColumn: "completed"}},
		{"unknown sort field", services.ListParams{SortBy: "owner_id:desc"}, repositories.TaskQuery{}},
		{"limit and skip", services.ListParams{Limit: "10", Skip: "20"}, repositories.TaskQuery{Limit: 10, Skip: 20}},
		{"bad numbers", services.ListParams{Limit: "ten", Skip: "-4"}, repositories.TaskQuery{}},
		{"zero limit", services.ListParams{Limit: "0"}, repositories.TaskQuery{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, services.ParseTaskQuery(tt.params))
		})
	}
}

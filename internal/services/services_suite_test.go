package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"task-tracker/internal/database"
	"task-tracker/internal/models"
	"task-tracker/internal/repositories"
	"task-tracker/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

type recordingPurges struct {
	mu     sync.Mutex
	owners []uuid.UUID
}

func (r *recordingPurges) SchedulePurge(_ context.Context, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, ownerID)
	return nil
}

// ServiceTestSuite wires the real services over an in-memory sqlite store.
type ServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	pool   *database.DatabasePool
	users  *repositories.GormUserRepository
	tasks  *repositories.GormTaskRepository
	purges *recordingPurges
	logger *slog.Logger

	credentials *services.BcryptCredentialStore
	tokens      *services.TokenManagerImpl
	auth        *services.AuthenticatorImpl
	directory   *services.UserDirectoryImpl
	registry    *services.TaskRegistryImpl
	avatars     *services.AvatarPipelineImpl
}

func (suite *ServiceTestSuite) SetupTest() {
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	suite.Require().NoError(err)
	suite.Require().NoError(pool.Migrate(context.Background()))

	suite.ctx = context.Background()
	suite.pool = pool
	suite.users = repositories.NewUserRepository(pool.DB)
	suite.tasks = repositories.NewTaskRepository(pool.DB)
	suite.purges = &recordingPurges{}
	suite.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	suite.credentials = services.NewCredentialStore(bcrypt.MinCost)
	suite.tokens = services.NewTokenManager(suite.users, services.TokenConfig{Secret: "test-secret", Issuer: "taskify-backend"})
	suite.auth = services.NewAuthenticator(suite.tokens, suite.users, suite.logger)
	suite.directory = services.NewUserDirectory(suite.users, suite.credentials, suite.tokens, suite.purges, suite.logger)
	suite.registry = services.NewTaskRegistry(suite.tasks)
	suite.avatars = services.NewAvatarPipeline(suite.users, services.AvatarConfig{})
}

func (suite *ServiceTestSuite) TearDownTest() {
	suite.pool.Close()
}

func (suite *ServiceTestSuite) register(name, email string) (*models.User, string) {
	user, token, err := suite.directory.Register(suite.ctx, services.RegisterInput{
		Name:     name,
		Email:    email,
		Password: "red12345!",
		Age:      30,
	})
	suite.Require().NoError(err)
	return user, token
}

func (suite *ServiceTestSuite) createTask(owner *models.User, description string, completed bool) *models.Task {
	task, err := suite.registry.Create(suite.ctx, owner, services.TaskInput{Description: description, Completed: completed})
	suite.Require().NoError(err)
	return task
}

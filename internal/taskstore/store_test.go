package taskstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/taskflow/taskflow-cli/internal/api"
	"github.com/taskflow/taskflow-cli/internal/apierrors"
	"github.com/taskflow/taskflow-cli/internal/credentials"
	"github.com/taskflow/taskflow-cli/internal/devserver"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/models"
	"github.com/taskflow/taskflow-cli/internal/notify"
	"github.com/taskflow/taskflow-cli/internal/session"
	"go.uber.org/zap"
)

// TaskStoreTestSuite runs the store end to end against the dev server.
type TaskStoreTestSuite struct {
	suite.Suite
	ctx      context.Context
	session  *session.Store
	store    *Store
	notifier *notify.Recorder
}

// SetupTest runs before each test: fresh server, registered user,
// empty store.
func (suite *TaskStoreTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.ctx = context.Background()

	server, err := devserver.New(filepath.Join(suite.T().TempDir(), "dev.db"), "test-secret", zap.NewNop())
	suite.Require().NoError(err)

	srv := httptest.NewServer(server.Router())
	suite.T().Cleanup(srv.Close)

	creds := credentials.NewStore(filepath.Join(suite.T().TempDir(), "token"))
	suite.notifier = &notify.Recorder{}

	client := api.NewClient(srv.URL+"/api", creds)
	suite.session = session.NewStore(client, creds, zap.NewNop(), notify.Discard{})
	suite.store = NewStore(client, suite.session, zap.NewNop(), suite.notifier)

	suite.session.Subscribe(func(state session.State) {
		if state == session.StateAnonymous {
			suite.store.Clear()
		}
	})

	suite.session.Restore(suite.ctx)
	suite.Require().NoError(suite.session.Register(suite.ctx, session.RegisterInput{
		Username: "ann",
		Email:    "a@b.com",
		Password: "secret1",
	}))
}

func (suite *TaskStoreTestSuite) createTask(title string) models.Task {
	task, err := suite.store.Create(suite.ctx, CreateTaskInput{
		Title:       title,
		Description: "Test Description",
	})
	suite.Require().NoError(err)
	suite.Require().NotZero(task.ID)
	return task
}

func (suite *TaskStoreTestSuite) TestFetchAll_ReplacesCollection() {
	suite.createTask("First")
	suite.createTask("Second")

	suite.Require().NoError(suite.store.FetchAll(suite.ctx))
	tasks := suite.store.Tasks()
	suite.Len(tasks, 2)
	for _, task := range tasks {
		suite.True(task.Status.Valid())
		suite.NotNil(task.Comments)
	}
	suite.False(suite.store.Loading())
	suite.Empty(suite.store.LastError())
}

func (suite *TaskStoreTestSuite) TestFetchAll_Unauthenticated() {
	suite.session.Logout()

	suite.Require().NoError(suite.store.FetchAll(suite.ctx))
	suite.Empty(suite.store.Tasks())
	suite.False(suite.store.Loading())
}

func (suite *TaskStoreTestSuite) TestCreate_AppearsExactlyOnce() {
	created := suite.createTask("Unique task")

	count := 0
	for _, task := range suite.store.Tasks() {
		if task.ID == created.ID {
			count++
			suite.Equal("Unique task", task.Title)
			suite.Equal(models.TaskStatusTodo, task.Status)
		}
	}
	suite.Equal(1, count)
}

func (suite *TaskStoreTestSuite) TestGetByID_AfterFetch() {
	created := suite.createTask("Lookup me")

	task, ok := suite.store.GetByID(created.ID)
	suite.Require().True(ok)
	suite.Equal(created.ID, task.ID)
	suite.Equal("Lookup me", task.Title)
	suite.Equal("Test Description", task.Description)

	_, ok = suite.store.GetByID(99999)
	suite.False(ok, "lookup never fetches implicitly")
}

func (suite *TaskStoreTestSuite) TestUpdate_ReplacesInPlace() {
	first := suite.createTask("First")
	second := suite.createTask("Second")
	suite.createTask("Third")

	_, err := suite.store.Update(suite.ctx, UpdateTaskInput{
		ID:          second.ID,
		Title:       "Second, revised",
		Description: "new text",
		Status:      models.TaskStatusInProgress,
	})
	suite.Require().NoError(err)

	tasks := suite.store.Tasks()
	suite.Require().Len(tasks, 3)
	suite.Equal(first.ID, tasks[0].ID, "array position preserved")
	suite.Equal(second.ID, tasks[1].ID)
	suite.Equal("Second, revised", tasks[1].Title)
	suite.Equal(models.TaskStatusInProgress, tasks[1].Status)
}

func (suite *TaskStoreTestSuite) TestSetStatus_PatchesOnlyStatus() {
	created := suite.createTask("Movable")

	suite.Require().NoError(suite.store.SetStatus(suite.ctx, created.ID, models.TaskStatusDone))

	task, ok := suite.store.GetByID(created.ID)
	suite.Require().True(ok)
	suite.Equal(models.TaskStatusDone, task.Status)
	suite.Equal("Movable", task.Title, "other fields untouched")
	suite.Equal("Test Description", task.Description)
}

func (suite *TaskStoreTestSuite) TestRemove() {
	created := suite.createTask("Doomed")

	suite.Require().NoError(suite.store.Remove(suite.ctx, created.ID))

	_, ok := suite.store.GetByID(created.ID)
	suite.False(ok)
}

func (suite *TaskStoreTestSuite) TestCartToggle() {
	created := suite.createTask("Groceries")
	suite.Require().NoError(suite.store.SetStatus(suite.ctx, created.ID, models.TaskStatusInProgress))

	suite.Require().NoError(suite.store.AddToCart(suite.ctx, created.ID))
	task, ok := suite.store.GetByID(created.ID)
	suite.Require().True(ok)
	suite.Equal(models.TaskStatusCart, task.Status, "cart membership overwrites workflow status")
	suite.Len(suite.store.CartTasks(), 1)

	// The server decides the restored status; the prior IN_PROGRESS is
	// gone.
	suite.Require().NoError(suite.store.RemoveFromCart(suite.ctx, created.ID))
	task, _ = suite.store.GetByID(created.ID)
	suite.Equal(models.TaskStatusTodo, task.Status)
	suite.Empty(suite.store.CartTasks())
}

func (suite *TaskStoreTestSuite) TestOfferToggle() {
	created := suite.createTask("Delegate me")

	suite.Require().NoError(suite.store.Offer(suite.ctx, created.ID))
	suite.Len(suite.store.OfferedTasks(), 1)

	suite.Require().NoError(suite.store.Unoffer(suite.ctx, created.ID))
	suite.Empty(suite.store.OfferedTasks())
	task, _ := suite.store.GetByID(created.ID)
	suite.Equal(models.TaskStatusTodo, task.Status)
}

func (suite *TaskStoreTestSuite) TestAddComment_Appended() {
	created := suite.createTask("Discussable")

	first, err := suite.store.AddComment(suite.ctx, AddCommentInput{TaskID: created.ID, Content: "first!"})
	suite.Require().NoError(err)
	suite.Equal("first!", first.Content)
	suite.Equal("ann", first.Username)

	second, err := suite.store.AddComment(suite.ctx, AddCommentInput{TaskID: created.ID, Content: "second"})
	suite.Require().NoError(err)

	task, ok := suite.store.GetByID(created.ID)
	suite.Require().True(ok)
	suite.Require().Len(task.Comments, 2)
	suite.Equal(first.ID, task.Comments[0].ID, "new comments append after prior ones")
	suite.Equal(second.ID, task.Comments[1].ID)
}

func (suite *TaskStoreTestSuite) TestUpdateComment_ReplacedByID() {
	created := suite.createTask("Discussable")
	comment, err := suite.store.AddComment(suite.ctx, AddCommentInput{TaskID: created.ID, Content: "draft"})
	suite.Require().NoError(err)

	updated, err := suite.store.UpdateComment(suite.ctx, comment.ID, "final")
	suite.Require().NoError(err)
	suite.Equal("final", updated.Content)

	task, _ := suite.store.GetByID(created.ID)
	suite.Require().Len(task.Comments, 1)
	suite.Equal("final", task.Comments[0].Content)
}

func (suite *TaskStoreTestSuite) TestDeleteComment_FilteredOut() {
	created := suite.createTask("Discussable")
	comment, err := suite.store.AddComment(suite.ctx, AddCommentInput{TaskID: created.ID, Content: "oops"})
	suite.Require().NoError(err)
	keep, err := suite.store.AddComment(suite.ctx, AddCommentInput{TaskID: created.ID, Content: "keep"})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.store.DeleteComment(suite.ctx, comment.ID))

	task, _ := suite.store.GetByID(created.ID)
	suite.Require().Len(task.Comments, 1)
	suite.Equal(keep.ID, task.Comments[0].ID)
}

func (suite *TaskStoreTestSuite) TestClearOnLogout() {
	suite.createTask("Session-bound")
	suite.Require().NotEmpty(suite.store.Tasks())

	suite.session.Logout()

	suite.Empty(suite.store.Tasks(), "no tasks survive a session switch")
}

// TestConcurrentMutations documents the accepted nondeterminism of
// racing mutations: whichever response resolves last wins, but the
// collection stays consistent (no crash, no duplicate entity).
func (suite *TaskStoreTestSuite) TestConcurrentMutations() {
	created := suite.createTask("Contended")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = suite.store.AddToCart(suite.ctx, created.ID)
	}()
	go func() {
		defer wg.Done()
		_ = suite.store.SetStatus(suite.ctx, created.ID, models.TaskStatusDone)
	}()
	wg.Wait()

	count := 0
	for _, task := range suite.store.Tasks() {
		if task.ID == created.ID {
			count++
			suite.True(task.Status.Valid())
		}
	}
	suite.Equal(1, count, "racing mutations must not duplicate the entity")
}

func (suite *TaskStoreTestSuite) TestNotifications() {
	created := suite.createTask("Noisy")
	suite.Contains(suite.notifier.Successes, "Task created successfully")

	suite.Require().NoError(suite.store.AddToCart(suite.ctx, created.ID))
	suite.Contains(suite.notifier.Successes, "Task added to cart")
}

func TestTaskStoreTestSuite(t *testing.T) {
	suite.Run(t, new(TaskStoreTestSuite))
}

// TestUpdateFailure_LeavesCollectionUnchanged exercises the failure
// contract against a server that rejects the update.
func TestUpdateFailure_LeavesCollectionUnchanged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/tasks", func(c *gin.Context) {
		c.JSON(http.StatusOK, []dto.TaskDTO{
			{ID: 7, Title: "Stable", Description: "unchanged", Status: models.TaskStatusTodo, UserID: 1},
		})
	})
	r.PUT("/api/tasks/7", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "boom"})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	creds := credentials.NewStore(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, creds.Save("tok"))
	client := api.NewClient(srv.URL+"/api", creds)
	store := NewStore(client, alwaysAuthenticated{}, zap.NewNop(), notify.Discard{})

	require.NoError(t, store.FetchAll(context.Background()))
	before, ok := store.GetByID(7)
	require.True(t, ok)

	_, err := store.Update(context.Background(), UpdateTaskInput{
		ID:     7,
		Title:  "Mutated",
		Status: models.TaskStatusDone,
	})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)

	after, ok := store.GetByID(7)
	require.True(t, ok)
	assert.Equal(t, before, after, "failed update must not touch the in-memory task")
}

// TestFetchFailure_KeepsPriorCollection exercises the fetch failure
// contract: the error indicator is set, the previous tasks survive,
// and the failure is announced.
func TestFetchFailure_KeepsPriorCollection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := true
	r := gin.New()
	r.GET("/api/tasks", func(c *gin.Context) {
		if !healthy {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "boom"})
			return
		}
		c.JSON(http.StatusOK, []dto.TaskDTO{
			{ID: 7, Title: "Stable", Status: models.TaskStatusTodo, UserID: 1},
		})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	creds := credentials.NewStore(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, creds.Save("tok"))
	client := api.NewClient(srv.URL+"/api", creds)
	recorder := &notify.Recorder{}
	store := NewStore(client, alwaysAuthenticated{}, zap.NewNop(), recorder)

	require.NoError(t, store.FetchAll(context.Background()))
	require.Len(t, store.Tasks(), 1)

	healthy = false
	err := store.FetchAll(context.Background())
	require.Error(t, err)

	assert.Equal(t, "Failed to fetch tasks. Please try again later.", store.LastError())
	assert.False(t, store.Loading())
	assert.Contains(t, recorder.Errors, "Failed to fetch tasks")

	// The stale collection stays visible until a fetch succeeds.
	task, ok := store.GetByID(7)
	require.True(t, ok)
	assert.Equal(t, "Stable", task.Title)

	healthy = true
	require.NoError(t, store.FetchAll(context.Background()))
	assert.Empty(t, store.LastError())
}

type alwaysAuthenticated struct{}

func (alwaysAuthenticated) IsAuthenticated() bool { return true }

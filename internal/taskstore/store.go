package taskstore

import (
	"context"
	"sync"
	"time"

	"github.com/taskflow/taskflow-cli/internal/api"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/models"
	"github.com/taskflow/taskflow-cli/internal/notify"
	"go.uber.org/zap"
)

// Session gates whether the store performs any fetch.
type Session interface {
	IsAuthenticated() bool
}

// Store is the single in-memory source of truth for tasks and their
// nested comments, for the current session only. All remote calls go
// through the API client; the store performs no business-rule
// validation beyond shape. Mutating operations that fail leave the
// collection unchanged and return the error; the store never retries.
//
// Operations are not globally serialized: if two mutations race, the
// response that resolves last wins for any overlapping region. This
// mirrors the mutate-then-refetch consistency model and is accepted.
type Store struct {
	mu       sync.RWMutex
	client   *api.Client
	session  Session
	logger   *zap.Logger
	notifier notify.Notifier

	tasks   []models.Task
	loading bool
	lastErr string
	subs    []func()
}

// NewStore creates an empty task store.
func NewStore(client *api.Client, session Session, logger *zap.Logger, notifier notify.Notifier) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Store{
		client:   client,
		session:  session,
		logger:   logger,
		notifier: notifier,
	}
}

// Subscribe registers a callback invoked after every change to the
// store's observable state. Callbacks run outside the lock.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notifySubs() {
	s.mu.RLock()
	subs := append([]func()(nil), s.subs...)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Tasks returns a snapshot of the current collection.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Task(nil), s.tasks...)
}

// Loading reports whether a full fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the error indicator set by the last failed fetch,
// empty when the last fetch succeeded.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Clear wipes the collection. Called when the session ends so that no
// tasks belonging to a different user session survive.
func (s *Store) Clear() {
	s.mu.Lock()
	s.tasks = nil
	s.lastErr = ""
	s.loading = false
	s.mu.Unlock()
	s.notifySubs()
}

// FetchAll retrieves the full task list and replaces the entire
// in-memory collection, last fetch wins. It is a no-op when the
// session is not authenticated. On failure the prior collection is
// kept and the error indicator is set.
func (s *Store) FetchAll(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
	s.notifySubs()

	tasks, err := s.client.ListTasks(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = "Failed to fetch tasks. Please try again later."
	} else {
		s.tasks = tasks
	}
	s.mu.Unlock()
	s.notifySubs()

	if err != nil {
		s.logger.Warn("failed to fetch tasks", zap.Error(err))
		s.notifier.Error("Failed to fetch tasks")
		return err
	}
	return nil
}

// GetByID looks the task up in the in-memory collection. It never
// fetches.
func (s *Store) GetByID(id uint64) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// GetByStatus filters the in-memory collection by status.
func (s *Store) GetByStatus(status models.TaskStatus) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// CartTasks returns the tasks currently staged in the cart.
func (s *Store) CartTasks() []models.Task {
	return s.GetByStatus(models.TaskStatusCart)
}

// OfferedTasks returns the tasks currently marked as offered.
func (s *Store) OfferedTasks() []models.Task {
	return s.GetByStatus(models.TaskStatusOffered)
}

// CreateTaskInput is the draft for a new task. New tasks always start
// in TODO.
type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    string
}

// Create submits a new task and re-synchronizes the whole collection,
// so server-side derived fields are picked up. Returns the created
// task.
func (s *Store) Create(ctx context.Context, input CreateTaskInput) (models.Task, error) {
	req := dto.TaskRequest{
		Title:       input.Title,
		Description: input.Description,
		Status:      models.TaskStatusTodo,
		Priority:    input.Priority,
	}
	if input.DueDate != nil {
		req.DueDate = dto.NewAPITime(*input.DueDate)
	}

	created, err := s.client.CreateTask(ctx, req)
	if err != nil {
		s.logger.Warn("failed to create task", zap.Error(err))
		s.notifier.Error("Failed to create task")
		return models.Task{}, err
	}

	if err := s.FetchAll(ctx); err != nil {
		s.logger.Warn("re-sync after create failed", zap.Error(err))
	}
	s.notifier.Success("Task created successfully")
	return created, nil
}

// UpdateTaskInput is a full replacement of a task's editable fields.
type UpdateTaskInput struct {
	ID          uint64
	Title       string
	Description string
	Status      models.TaskStatus
	DueDate     *time.Time
	Priority    string
}

// Update replaces the task on the server, then replaces the matching
// entity in place by ID, preserving its position. No full re-fetch.
func (s *Store) Update(ctx context.Context, input UpdateTaskInput) (models.Task, error) {
	req := dto.TaskRequest{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
	}
	if input.DueDate != nil {
		req.DueDate = dto.NewAPITime(*input.DueDate)
	}

	updated, err := s.client.UpdateTask(ctx, input.ID, req)
	if err != nil {
		s.logger.Warn("failed to update task", zap.Uint64("task_id", input.ID), zap.Error(err))
		s.notifier.Error("Failed to update task")
		return models.Task{}, err
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == input.ID {
			s.tasks[i] = updated
			break
		}
	}
	s.mu.Unlock()
	s.notifySubs()

	s.notifier.Success("Task updated successfully")
	return updated, nil
}

// Remove deletes the task remotely, then filters it out of the
// collection by ID.
func (s *Store) Remove(ctx context.Context, id uint64) error {
	if err := s.client.DeleteTask(ctx, id); err != nil {
		s.logger.Warn("failed to delete task", zap.Uint64("task_id", id), zap.Error(err))
		s.notifier.Error("Failed to delete task")
		return err
	}

	s.mu.Lock()
	filtered := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			filtered = append(filtered, t)
		}
	}
	s.tasks = filtered
	s.mu.Unlock()
	s.notifySubs()

	s.notifier.Success("Task deleted successfully")
	return nil
}

// SetStatus submits a status-only update, then patches only the
// status field of the matching in-memory entity. Used by the
// dashboard's drag-and-drop moves.
func (s *Store) SetStatus(ctx context.Context, id uint64, status models.TaskStatus) error {
	if _, err := s.client.UpdateTaskStatus(ctx, id, status); err != nil {
		s.logger.Warn("failed to update task status",
			zap.Uint64("task_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		s.notifier.Error("Failed to update task status")
		return err
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = status
			break
		}
	}
	s.mu.Unlock()
	s.notifySubs()
	return nil
}

// AddToCart overwrites the task's status with CART and re-fetches.
func (s *Store) AddToCart(ctx context.Context, id uint64) error {
	return s.membershipToggle(ctx, id, s.client.AddToCart,
		"Task added to cart", "Failed to add task to cart")
}

// RemoveFromCart takes the task out of the cart and re-fetches: the
// workflow status it returns to is determined by the server.
func (s *Store) RemoveFromCart(ctx context.Context, id uint64) error {
	return s.membershipToggle(ctx, id, s.client.RemoveFromCart,
		"Task removed from cart", "Failed to remove task from cart")
}

// Offer overwrites the task's status with OFFERED and re-fetches.
func (s *Store) Offer(ctx context.Context, id uint64) error {
	return s.membershipToggle(ctx, id, s.client.Offer,
		"Task offered successfully", "Failed to offer task")
}

// Unoffer takes the task out of the offered set and re-fetches.
func (s *Store) Unoffer(ctx context.Context, id uint64) error {
	return s.membershipToggle(ctx, id, s.client.Unoffer,
		"Task unoffered successfully", "Failed to unoffer task")
}

func (s *Store) membershipToggle(ctx context.Context, id uint64, call func(context.Context, uint64) error, okMsg, failMsg string) error {
	if err := call(ctx, id); err != nil {
		s.logger.Warn("membership toggle failed", zap.Uint64("task_id", id), zap.Error(err))
		s.notifier.Error(failMsg)
		return err
	}

	if err := s.FetchAll(ctx); err != nil {
		s.logger.Warn("re-sync after membership toggle failed", zap.Error(err))
	}
	s.notifier.Success(okMsg)
	return nil
}

// AddCommentInput is the draft for a new comment.
type AddCommentInput struct {
	TaskID  uint64
	Content string
}

// AddComment posts the comment, then appends it to the owning task's
// comment sequence. No task re-fetch.
func (s *Store) AddComment(ctx context.Context, input AddCommentInput) (models.Comment, error) {
	created, err := s.client.CreateComment(ctx, dto.CreateCommentRequest{
		Content: input.Content,
		TaskID:  input.TaskID,
	})
	if err != nil {
		s.logger.Warn("failed to add comment", zap.Uint64("task_id", input.TaskID), zap.Error(err))
		s.notifier.Error("Failed to add comment")
		return models.Comment{}, err
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == input.TaskID {
			comments := append([]models.Comment(nil), s.tasks[i].Comments...)
			s.tasks[i].Comments = append(comments, created)
			break
		}
	}
	s.mu.Unlock()
	s.notifySubs()

	s.notifier.Success("Comment added successfully")
	return created, nil
}

// UpdateComment replaces the comment remotely, then replaces it by ID
// inside whichever task owns it.
func (s *Store) UpdateComment(ctx context.Context, id uint64, content string) (models.Comment, error) {
	updated, err := s.client.UpdateComment(ctx, id, dto.UpdateCommentRequest{Content: content})
	if err != nil {
		s.logger.Warn("failed to update comment", zap.Uint64("comment_id", id), zap.Error(err))
		s.notifier.Error("Failed to update comment")
		return models.Comment{}, err
	}

	s.mu.Lock()
	for i := range s.tasks {
		for j := range s.tasks[i].Comments {
			if s.tasks[i].Comments[j].ID == id {
				comments := append([]models.Comment(nil), s.tasks[i].Comments...)
				comments[j] = updated
				s.tasks[i].Comments = comments
			}
		}
	}
	s.mu.Unlock()
	s.notifySubs()

	s.notifier.Success("Comment updated successfully")
	return updated, nil
}

// DeleteComment deletes the comment remotely, then filters it out of
// its task's comment sequence.
func (s *Store) DeleteComment(ctx context.Context, id uint64) error {
	if err := s.client.DeleteComment(ctx, id); err != nil {
		s.logger.Warn("failed to delete comment", zap.Uint64("comment_id", id), zap.Error(err))
		s.notifier.Error("Failed to delete comment")
		return err
	}

	s.mu.Lock()
	for i := range s.tasks {
		var kept []models.Comment
		removed := false
		for _, c := range s.tasks[i].Comments {
			if c.ID == id {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		if removed {
			if kept == nil {
				kept = []models.Comment{}
			}
			s.tasks[i].Comments = kept
		}
	}
	s.mu.Unlock()
	s.notifySubs()

	s.notifier.Success("Comment deleted successfully")
	return nil
}

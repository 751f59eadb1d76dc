package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-cli/internal/apierrors"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/models"
	"go.uber.org/zap"
)

// TokenSource provides the persisted bearer credential. Clear is
// called when the server rejects the credential.
type TokenSource interface {
	Token() (string, bool)
	Clear() error
}

// Client wraps all outbound calls to the TaskFlow API. It attaches
// the bearer credential to every request except login/signup,
// normalizes response shapes into domain models, and invalidates the
// credential on authentication rejection. It performs no retries and
// no caching.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	logger         *zap.Logger
	onAuthRejected func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHTTPClientTimeout sets the transport timeout.
func WithHTTPClientTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAuthRejectedHook registers a callback invoked after any
// response signals an invalid or expired credential. The credential
// is already cleared by the time the hook runs; the hook is the place
// to force navigation back to the login entry point.
func WithAuthRejectedHook(fn func()) Option {
	return func(c *Client) {
		c.onAuthRejected = fn
	}
}

// NewClient creates a client for the API rooted at baseURL
// (including the /api prefix).
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// skipAuth marks the two endpoints that exchange credentials for a
// token and therefore cannot carry one.
const (
	withAuth = false
	noAuth   = true
)

func (c *Client) do(ctx context.Context, method, path string, body, out any, skipAuth bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if !skipAuth {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &apierrors.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apierrors.TransportError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Global invalidation: any rejected credential logs the
		// session out, regardless of which operation triggered it.
		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear credential", zap.Error(clearErr))
		}
		if c.onAuthRejected != nil {
			c.onAuthRejected()
		}
		return fmt.Errorf("%s %s: %w", method, path, apierrors.ErrUnauthenticated)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, apierrors.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return c.decodeError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError maps an error payload to an APIError. The server sends
// either a {code, message} object or a bare string.
func (c *Client) decodeError(statusCode int, data []byte) error {
	apiErr := &apierrors.APIError{StatusCode: statusCode}
	if len(data) > 0 {
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	return apiErr
}

// Auth endpoints

// Login exchanges credentials for a session token and user.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp, noAuth)
	return resp, err
}

// Register creates an account and exchanges it for a session token
// and user.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup", req, &resp, noAuth)
	return resp, err
}

// Me validates the persisted token and returns the current user.
func (c *Client) Me(ctx context.Context) (dto.AuthResponse, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp, withAuth)
	return resp, err
}

// Task endpoints

// ListTasks retrieves the full task list for the session.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var dtos []dto.TaskDTO
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &dtos, withAuth); err != nil {
		return nil, err
	}
	return dto.ToTaskList(dtos), nil
}

// GetTask fetches a single task by ID.
func (c *Client) GetTask(ctx context.Context, id uint64) (models.Task, error) {
	var d dto.TaskDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", id), nil, &d, withAuth); err != nil {
		return models.Task{}, err
	}
	return dto.ToTask(d), nil
}

// CreateTask submits a new task.
func (c *Client) CreateTask(ctx context.Context, req dto.TaskRequest) (models.Task, error) {
	var d dto.TaskDTO
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &d, withAuth); err != nil {
		return models.Task{}, err
	}
	return dto.ToTask(d), nil
}

// UpdateTask submits a full replacement of a task's editable fields.
func (c *Client) UpdateTask(ctx context.Context, id uint64, req dto.TaskRequest) (models.Task, error) {
	var d dto.TaskDTO
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d", id), req, &d, withAuth); err != nil {
		return models.Task{}, err
	}
	return dto.ToTask(d), nil
}

// DeleteTask deletes a task by ID.
func (c *Client) DeleteTask(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil, withAuth)
}

// UpdateTaskStatus submits a status-only update.
func (c *Client) UpdateTaskStatus(ctx context.Context, id uint64, status models.TaskStatus) (models.Task, error) {
	var d dto.TaskDTO
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/status", id), dto.StatusRequest{Status: status}, &d, withAuth)
	if err != nil {
		return models.Task{}, err
	}
	return dto.ToTask(d), nil
}

// ListUserTasks retrieves the tasks owned by the current user.
func (c *Client) ListUserTasks(ctx context.Context) ([]models.Task, error) {
	return c.listTasksAt(ctx, "/tasks/user")
}

// ListCartTasks retrieves the server-side view of the cart.
func (c *Client) ListCartTasks(ctx context.Context) ([]models.Task, error) {
	return c.listTasksAt(ctx, "/tasks/cart")
}

// ListOfferedTasks retrieves the server-side view of offered tasks.
func (c *Client) ListOfferedTasks(ctx context.Context) ([]models.Task, error) {
	return c.listTasksAt(ctx, "/tasks/offered")
}

func (c *Client) listTasksAt(ctx context.Context, path string) ([]models.Task, error) {
	var dtos []dto.TaskDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos, withAuth); err != nil {
		return nil, err
	}
	return dto.ToTaskList(dtos), nil
}

// AddToCart overwrites the task's status with CART.
func (c *Client) AddToCart(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d/cart/add", id), nil, nil, withAuth)
}

// RemoveFromCart takes the task out of the cart. The workflow status
// it returns to is decided by the server.
func (c *Client) RemoveFromCart(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d/cart/remove", id), nil, nil, withAuth)
}

// Offer overwrites the task's status with OFFERED.
func (c *Client) Offer(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d/offered/add", id), nil, nil, withAuth)
}

// Unoffer takes the task out of the offered set.
func (c *Client) Unoffer(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d/offered/remove", id), nil, nil, withAuth)
}

// Comment endpoints

// ListTaskComments retrieves the comments of one task.
func (c *Client) ListTaskComments(ctx context.Context, taskID uint64) ([]models.Comment, error) {
	var dtos []dto.CommentDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/comments/task/%d", taskID), nil, &dtos, withAuth); err != nil {
		return nil, err
	}
	comments := make([]models.Comment, len(dtos))
	for i, d := range dtos {
		comments[i] = dto.ToComment(d)
	}
	return comments, nil
}

// CreateComment posts a comment on a task.
func (c *Client) CreateComment(ctx context.Context, req dto.CreateCommentRequest) (models.Comment, error) {
	var d dto.CommentDTO
	if err := c.do(ctx, http.MethodPost, "/comments", req, &d, withAuth); err != nil {
		return models.Comment{}, err
	}
	return dto.ToComment(d), nil
}

// UpdateComment replaces a comment's content.
func (c *Client) UpdateComment(ctx context.Context, id uint64, req dto.UpdateCommentRequest) (models.Comment, error) {
	var d dto.CommentDTO
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/comments/%d", id), req, &d, withAuth); err != nil {
		return models.Comment{}, err
	}
	return dto.ToComment(d), nil
}

// DeleteComment deletes a comment by ID.
func (c *Client) DeleteComment(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", id), nil, nil, withAuth)
}

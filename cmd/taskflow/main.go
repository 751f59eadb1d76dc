package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/taskflow/taskflow-cli/internal/api"
	"github.com/taskflow/taskflow-cli/internal/config"
	"github.com/taskflow/taskflow-cli/internal/credentials"
	"github.com/taskflow/taskflow-cli/internal/models"
	"github.com/taskflow/taskflow-cli/internal/notify"
	"github.com/taskflow/taskflow-cli/internal/session"
	"github.com/taskflow/taskflow-cli/internal/taskstore"
	"go.uber.org/zap"
)

const usage = `Usage: taskflow <command> [options]

Auth:
  register   --username --email --password   Create an account and log in
  login      --email --password              Log in
  logout                                     Log out
  whoami                                     Show the current user

Tasks:
  list       [--status STATUS]               List tasks (board view by default)
  show       <id>                            Show one task with its comments
  create     --title [--desc --due --priority]
  update     <id> [--title --desc --status --due --priority]
  rm         <id>                            Delete a task
  move       <id> <TODO|IN_PROGRESS|DONE>    Change workflow status
  cart       <add|remove> <id>               Toggle cart membership
  offer      <id>                            Offer a task
  unoffer    <id>                            Withdraw an offered task

Comments:
  comment    add <taskId> <content>
  comment    edit <id> <content>
  comment    rm <id>
`

// app wires the stores together for one CLI invocation.
type app struct {
	session *session.Store
	tasks   *taskstore.Store
}

func newApp(logger *zap.Logger) (*app, error) {
	cfg := config.Load()

	tokenPath := cfg.TokenFile
	if tokenPath == "" {
		var err error
		tokenPath, err = credentials.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve token path: %w", err)
		}
	}
	creds := credentials.NewStore(tokenPath)

	return buildApp(cfg, creds, logger, &notify.Writer{Out: os.Stderr})
}

func buildApp(cfg *config.Config, creds *credentials.Store, logger *zap.Logger, notifier notify.Notifier) (*app, error) {
	var sessionStore *session.Store
	client := api.NewClient(cfg.APIBaseURL, creds,
		api.WithLogger(logger),
		api.WithHTTPClientTimeout(cfg.HTTPTimeout),
		api.WithAuthRejectedHook(func() {
			// The CLI's redirect-to-login analog. Quiet unless a live
			// session was invalidated: a failed login attempt or a
			// startup restore also lands here, and neither is an
			// expired session from the user's point of view.
			if sessionStore == nil || !sessionStore.IsAuthenticated() {
				return
			}
			sessionStore.InvalidateSession()
			notifier.Error("Session expired, please run `taskflow login`")
		}),
	)

	sessionStore = session.NewStore(client, creds, logger, notifier)
	taskStore := taskstore.NewStore(client, sessionStore, logger, notifier)

	// Switching sessions must clear the collection.
	sessionStore.Subscribe(func(state session.State) {
		if state == session.StateAnonymous {
			taskStore.Clear()
		}
	})

	return &app{session: sessionStore, tasks: taskStore}, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if os.Getenv("TASKFLOW_DEBUG") != "" {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
	}

	a, err := newApp(logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx := context.Background()
	a.session.Restore(ctx)

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "taskflow: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.session.Logout()
		return nil
	case "whoami":
		return a.whoami()
	case "list":
		return a.list(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "rm":
		return a.remove(ctx, args)
	case "move":
		return a.move(ctx, args)
	case "cart":
		return a.cart(ctx, args)
	case "offer":
		return a.offer(ctx, args, true)
	case "unoffer":
		return a.offer(ctx, args, false)
	case "comment":
		return a.comment(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) requireAuth() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("not logged in, run `taskflow login`")
	}
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		return fmt.Errorf("register requires --username, --email and --password")
	}
	if len(*username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(*password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	if err := a.session.Register(ctx, session.RegisterInput{
		Username: *username,
		Email:    *email,
		Password: *password,
	}); err != nil {
		return err
	}

	user, _ := a.session.CurrentUser()
	fmt.Printf("Registered and logged in as %s <%s>\n", user.Username, user.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	if *email == "" || *password == "" {
		return fmt.Errorf("login requires --email and --password")
	}

	if err := a.session.Login(ctx, session.LoginInput{
		Email:    *email,
		Password: *password,
	}); err != nil {
		return err
	}

	user, _ := a.session.CurrentUser()
	fmt.Printf("Logged in as %s <%s>\n", user.Username, user.Email)
	return nil
}

func (a *app) whoami() error {
	user, ok := a.session.CurrentUser()
	if !ok {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("%s <%s> (id %d)\n", user.Username, user.Email, user.ID)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status")
	fs.Parse(args)

	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}

	if *status != "" {
		s := models.TaskStatus(strings.ToUpper(*status))
		if !s.Valid() {
			return fmt.Errorf("invalid status %q", *status)
		}
		printTasks(a.tasks.GetByStatus(s))
		return nil
	}

	// Board view: workflow columns, then the two membership sets.
	for _, s := range []models.TaskStatus{
		models.TaskStatusTodo,
		models.TaskStatusInProgress,
		models.TaskStatusDone,
		models.TaskStatusCart,
		models.TaskStatusOffered,
	} {
		tasks := a.tasks.GetByStatus(s)
		if len(tasks) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", s)
		printTasks(tasks)
	}
	return nil
}

func printTasks(tasks []models.Task) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "  %d\t%s\tdue %s\t%d comment(s)\n", t.ID, t.Title, due, len(t.Comments))
	}
	w.Flush()
}

func (a *app) show(ctx context.Context, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}

	task, ok := a.tasks.GetByID(id)
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}

	fmt.Printf("#%d %s [%s]\n", task.ID, task.Title, task.Status)
	if task.Description != "" {
		fmt.Println(task.Description)
	}
	if task.DueDate != nil {
		fmt.Printf("Due: %s\n", task.DueDate.Format("2006-01-02"))
	}
	if task.Priority != "" {
		fmt.Printf("Priority: %s\n", task.Priority)
	}
	if len(task.Comments) > 0 {
		fmt.Printf("\nComments:\n")
		for _, c := range task.Comments {
			fmt.Printf("  [%d] %s: %s\n", c.ID, c.Username, c.Content)
		}
	}
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	title := fs.String("title", "", "Task title")
	desc := fs.String("desc", "", "Task description")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	priority := fs.String("priority", "", "Priority")
	fs.Parse(args)

	if *title == "" {
		return fmt.Errorf("create requires --title")
	}
	if err := a.requireAuth(); err != nil {
		return err
	}

	input := taskstore.CreateTaskInput{
		Title:       *title,
		Description: *desc,
		Priority:    *priority,
	}
	if *due != "" {
		d, err := time.Parse("2006-01-02", *due)
		if err != nil {
			return fmt.Errorf("invalid due date %q", *due)
		}
		input.DueDate = &d
	}

	task, err := a.tasks.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("Created task %d\n", task.ID)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("update", flag.ExitOnError)
	title := fs.String("title", "", "New title")
	desc := fs.String("desc", "", "New description")
	status := fs.String("status", "", "New status")
	due := fs.String("due", "", "New due date (YYYY-MM-DD), empty clears it")
	priority := fs.String("priority", "", "New priority")
	fs.Parse(args[1:])

	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}

	task, ok := a.tasks.GetByID(id)
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}

	// Update is a full replacement; unset flags keep current values.
	input := taskstore.UpdateTaskInput{
		ID:          id,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		DueDate:     task.DueDate,
		Priority:    task.Priority,
	}
	if *title != "" {
		input.Title = *title
	}
	if *desc != "" {
		input.Description = *desc
	}
	if *status != "" {
		s := models.TaskStatus(strings.ToUpper(*status))
		if !s.Valid() {
			return fmt.Errorf("invalid status %q", *status)
		}
		input.Status = s
	}
	if *due != "" {
		d, err := time.Parse("2006-01-02", *due)
		if err != nil {
			return fmt.Errorf("invalid due date %q", *due)
		}
		input.DueDate = &d
	}
	if *priority != "" {
		input.Priority = *priority
	}

	if _, err := a.tasks.Update(ctx, input); err != nil {
		return err
	}
	fmt.Printf("Updated task %d\n", id)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	return a.tasks.Remove(ctx, id)
}

func (a *app) move(ctx context.Context, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("move requires a target status")
	}
	status := models.TaskStatus(strings.ToUpper(args[1]))
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", args[1])
	}

	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}
	if err := a.tasks.SetStatus(ctx, id, status); err != nil {
		return err
	}
	fmt.Printf("Task %d moved to %s\n", id, status)
	return nil
}

func (a *app) cart(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("cart requires <add|remove> <id>")
	}
	id, err := argID(args, 1)
	if err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "add":
		return a.tasks.AddToCart(ctx, id)
	case "remove":
		return a.tasks.RemoveFromCart(ctx, id)
	default:
		return fmt.Errorf("cart requires <add|remove> <id>")
	}
}

func (a *app) offer(ctx context.Context, args []string, offer bool) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}
	if offer {
		return a.tasks.Offer(ctx, id)
	}
	return a.tasks.Unoffer(ctx, id)
}

func (a *app) comment(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("comment requires <add|edit|rm>")
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "add":
		if len(args) < 3 {
			return fmt.Errorf("comment add requires <taskId> <content>")
		}
		taskID, err := argID(args, 1)
		if err != nil {
			return err
		}
		_, err = a.tasks.AddComment(ctx, taskstore.AddCommentInput{
			TaskID:  taskID,
			Content: strings.Join(args[2:], " "),
		})
		return err
	case "edit":
		if len(args) < 3 {
			return fmt.Errorf("comment edit requires <id> <content>")
		}
		id, err := argID(args, 1)
		if err != nil {
			return err
		}
		_, err = a.tasks.UpdateComment(ctx, id, strings.Join(args[2:], " "))
		return err
	case "rm":
		id, err := argID(args, 1)
		if err != nil {
			return err
		}
		return a.tasks.DeleteComment(ctx, id)
	default:
		return fmt.Errorf("unknown comment subcommand %q", args[0])
	}
}

func argID(args []string, pos int) (uint64, error) {
	if len(args) <= pos {
		return 0, fmt.Errorf("missing id argument")
	}
	id, err := strconv.ParseUint(args[pos], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[pos])
	}
	return id, nil
}

package notify

import (
	"fmt"
	"io"
	"sync"
)

// Notifier receives transient user-facing notifications emitted by
// the stores after operations succeed or fail. The presentation layer
// decides how to display them.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Writer sends notifications to an io.Writer, one per line.
type Writer struct {
	Out io.Writer
}

func (w *Writer) Success(message string) {
	fmt.Fprintln(w.Out, message)
}

func (w *Writer) Error(message string) {
	fmt.Fprintln(w.Out, "error: "+message)
}

// Discard drops all notifications.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}

// Recorder captures notifications for tests.
type Recorder struct {
	mu        sync.Mutex
	Successes []string
	Errors    []string
}

func (r *Recorder) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Successes = append(r.Successes, message)
}

func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, message)
}

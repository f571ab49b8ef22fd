// Package notify is the fire-and-forget user notification boundary.
// The UI layer supplies its own implementation; the core never consumes a
// return value from a notification.
package notify

import (
	"log"
	"os"
)

// Kind is the notification severity.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notifier delivers one-line notifications to the user.
type Notifier interface {
	Notify(kind Kind, text string)
}

// LogNotifier writes notifications to a logger. It is the default sink for
// CLI sessions and tests.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a logger-backed notifier.
// If logger is nil, a default logger writing to stderr is used.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(kind Kind, text string) {
	n.logger.Printf("%s: %s", kind, text)
}

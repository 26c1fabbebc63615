package grid

import "log/slog"

// Notifier delivers transient user-visible messages (toasts).
type Notifier interface {
	Error(message string)
	Success(message string)
}

// LogNotifier writes notifications to a structured logger. It is the
// default when no Notifier is supplied.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Error logs message at warn level.
func (n LogNotifier) Error(message string) {
	n.logger().Warn("notification", "kind", "error", "message", message)
}

// Success logs message at info level.
func (n LogNotifier) Success(message string) {
	n.logger().Info("notification", "kind", "success", "message", message)
}

// notificationText is the toast shown for a failed refetch.
func notificationText(err *APIError) string {
	if err.Message == "" {
		return "An error occurred"
	}
	return err.Message
}

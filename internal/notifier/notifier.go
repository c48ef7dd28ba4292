// Package notifier
package notifier

// Notifier interface for sending notifications (e.g., Telegram, email).
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
	RetryWithNotification(action func() error, description string) error
}

// Noop discards every notification. Used when no Telegram credentials are
// configured and in backtests.
type Noop struct{}

func (Noop) Send(string) error          { return nil }
func (Noop) SendWithRetry(string) error { return nil }

func (Noop) RetryWithNotification(action func() error, _ string) error {
	return action()
}

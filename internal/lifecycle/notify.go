package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/ordersync/internal/model"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Level   Level     `json:"level"`
	OrderID string    `json:"orderId,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// Printer emits a receipt for a served order.
type Printer interface {
	PrintReceipt(ctx context.Context, o model.Order) error
}

// SessionClearer ends a customer's active session.
type SessionClearer interface {
	ClearSession(customerID string)
}

// IDGenerator produces order and item ids.
type IDGenerator interface {
	Generate() string
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// PrinterFunc adapts a function to Printer.
type PrinterFunc func(context.Context, model.Order) error

// PrintReceipt calls f(ctx, o).
func (f PrinterFunc) PrintReceipt(ctx context.Context, o model.Order) error { return f(ctx, o) }

// SessionClearerFunc adapts a function to SessionClearer.
type SessionClearerFunc func(string)

// ClearSession calls f(customerID).
func (f SessionClearerFunc) ClearSession(customerID string) { f(customerID) }

type nopPrinter struct{}

func (nopPrinter) PrintReceipt(context.Context, model.Order) error { return nil }

type nopSessions struct{}

func (nopSessions) ClearSession(string) {}

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n at a level matching its severity.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"order_id", n.OrderID}
	if n.Code != "" {
		attrs = append(attrs, "code", n.Code)
	}
	switch n.Level {
	case LevelError:
		logger.Error(n.Message, attrs...)
	case LevelWarning:
		logger.Warn(n.Message, attrs...)
	default:
		logger.Info(n.Message, attrs...)
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

// Notify appends n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Drain returns the recorded notifications and clears the log.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notes
	r.notes = nil
	return out
}

// StatusMessage returns the notification text for an order reaching s.
func StatusMessage(orderID string, s model.Status) string {
	switch s {
	case model.StatusPending:
		return fmt.Sprintf("Order %s has been placed", orderID)
	case model.StatusConfirmed:
		return fmt.Sprintf("Order %s has been confirmed", orderID)
	case model.StatusPreparing:
		return fmt.Sprintf("Order %s is being prepared", orderID)
	case model.StatusReady:
		return fmt.Sprintf("Order %s is ready to be served", orderID)
	case model.StatusServed:
		return fmt.Sprintf("Order %s has been served", orderID)
	case model.StatusCompleted:
		return fmt.Sprintf("Order %s is completed", orderID)
	default:
		return fmt.Sprintf("Order %s is now %s", orderID, s)
	}
}

// noteFor turns a rejection into the notification shown to the user.
func noteFor(err *Error) Notification {
	level := LevelError
	switch err.Code {
	case ErrCodeBusy, ErrCodeDuplicate:
		level = LevelWarning
	}
	return Notification{Level: level, OrderID: err.OrderID, Code: err.Code, Message: err.Message}
}

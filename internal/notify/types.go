package notify

import (
	"context"
	"errors"
	"time"
)

// Message statuses as stored in the outbox.
const (
	StatusQueued    = "queued"
	StatusRendering = "rendering"
	StatusSending   = "sending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

var (
	ErrNotFound  = errors.New("notify: message not found")
	ErrQueueFull = errors.New("notify: queue full")
)

// Message is one outbound email in the outbox.
type Message struct {
	ID        string
	To        string
	Subject   string
	Template  string
	Data      map[string]string
	Body      string // filled in by the render stage
	Status    string
	Attempts  int
	LastError string
	QueuedOn  time.Time
	SentOn    time.Time
}

// Store persists outbox messages across restarts.
type Store interface {
	Enqueue(ctx context.Context, m *Message) error
	// Pending returns queued messages oldest first, for requeueing at startup.
	Pending(ctx context.Context, limit int) ([]*Message, error)
	MarkStatus(ctx context.Context, id, status, lastError string) error
	MarkDelivered(ctx context.Context, id string) error
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

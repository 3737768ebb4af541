package store

import (
	"context"
	"sync"
	"time"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueMessage is a message accepted by a MemoryQueue.
type QueueMessage struct {
	ID          string
	Body        string
	ContentType string
	Timestamp   time.Time
}

// MemoryQueue is an in-process queue. Consumers read with Drain.
type MemoryQueue struct {
	name string

	mu   sync.Mutex
	msgs []QueueMessage
}

var _ core.QueueSender = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue(name string) *MemoryQueue {
	return &MemoryQueue{name: name}
}

func (q *MemoryQueue) Send(ctx context.Context, body, contentType string) (string, error) {
	ids, err := q.SendBatch(ctx, []core.QueueMessageInput{{Body: body, ContentType: contentType}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (q *MemoryQueue) SendBatch(ctx context.Context, messages []core.QueueMessageInput) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	ids := make([]string, len(messages))
	q.mu.Lock()
	for i, m := range messages {
		ids[i] = uuid.NewString()
		q.msgs = append(q.msgs, QueueMessage{ID: ids[i], Body: m.Body, ContentType: m.ContentType, Timestamp: now})
	}
	q.mu.Unlock()
	core.Logger().Debug("queued messages", zap.String("queue", q.name), zap.Int("count", len(messages)))
	return ids, nil
}

// Len returns the number of undelivered messages.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Drain removes and returns every queued message in send order.
func (q *MemoryQueue) Drain() []QueueMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.msgs
	q.msgs = nil
	return out
}

package worker

import (
	"context"

	"github.com/cryguy/worker-go/sys"
)

// Queue is a queue producer binding.
type Queue struct {
	inner sys.Value
}

func (*Queue) TypeName() string      { return "WorkerQueue" }
func (q *Queue) attach(v sys.Value) { q.inner = v }

// Queue content types.
const (
	ContentTypeJSON  = "json"
	ContentTypeText  = "text"
	ContentTypeBytes = "bytes"
	ContentTypeV8    = "v8"
)

// QueueMessage is one entry of a batch. An empty ContentType means json.
type QueueMessage struct {
	Body        any
	ContentType string
}

// Send enqueues body serialized as JSON.
func (q *Queue) Send(ctx context.Context, body any) error {
	return q.send(ctx, "Queue.Send", body, ContentTypeJSON)
}

// SendText enqueues a text message.
func (q *Queue) SendText(ctx context.Context, body string) error {
	return q.send(ctx, "Queue.SendText", body, ContentTypeText)
}

// SendBytes enqueues a binary message.
func (q *Queue) SendBytes(ctx context.Context, body []byte) error {
	return q.send(ctx, "Queue.SendBytes", body, ContentTypeBytes)
}

func (q *Queue) send(ctx context.Context, op string, body any, contentType string) error {
	if _, err := callAwait(ctx, q.inner, "send", body, map[string]any{"contentType": contentType}); err != nil {
		return hostError(op, err, "queue send failed")
	}
	return nil
}

// SendBatch enqueues every message in one call.
func (q *Queue) SendBatch(ctx context.Context, msgs []QueueMessage) error {
	batch := make([]any, 0, len(msgs))
	for _, m := range msgs {
		ct := m.ContentType
		if ct == "" {
			ct = ContentTypeJSON
		}
		batch = append(batch, map[string]any{"body": m.Body, "contentType": ct})
	}
	if _, err := callAwait(ctx, q.inner, "sendBatch", batch); err != nil {
		return hostError("Queue.SendBatch", err, "queue send failed")
	}
	return nil
}

package store

import (
	"context"
	"testing"

	"github.com/cryguy/worker-go/internal/core"
)

func TestMemoryQueue_SendAndDrain(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("jobs")
	id, err := q.Send(ctx, `{"n":1}`, "json")
	if err != nil || id == "" {
		t.Fatalf("Send = %q, %v", id, err)
	}
	ids, err := q.SendBatch(ctx, []core.QueueMessageInput{
		{Body: "a", ContentType: "text"},
		{Body: "b", ContentType: "text"},
	})
	if err != nil || len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("SendBatch = %v, %v", ids, err)
	}
	if q.Len() != 3 {
		t.Errorf("Len = %d", q.Len())
	}
	msgs := q.Drain()
	if len(msgs) != 3 || msgs[0].ID != id || msgs[1].Body != "a" || msgs[2].ContentType != "text" {
		t.Errorf("drained %+v", msgs)
	}
	if q.Len() != 0 || len(q.Drain()) != 0 {
		t.Error("queue not empty after Drain")
	}
}

func TestMemoryQueue_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewMemoryQueue("jobs")
	if _, err := q.Send(ctx, "x", "text"); err == nil {
		t.Error("expected context error")
	}
	if q.Len() != 0 {
		t.Error("message queued despite cancellation")
	}
}

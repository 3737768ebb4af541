package webapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cryguy/worker-go/internal/core"
)

const queuesJS = `
(function(g) {
	function encode(body, type) {
		switch (type) {
		case 'text': return String(body);
		case 'bytes':
			var u = __bytesOf(body);
			if (!u) throw new TypeError('Queue contentType "bytes" requires an ArrayBuffer or view');
			return __b64enc(u);
		case 'json': case 'v8':
			var s = JSON.stringify(body);
			if (s === undefined) throw new TypeError('Queue message body is not serializable');
			return s;
		default:
			throw new TypeError('Unknown queue content type: ' + type);
		}
	}

	class WorkerQueue {
		constructor(name) { this._name = name; }
		send(body, opts) {
			var name = this._name;
			return __asPromise(function() {
				var type = (opts && opts.contentType) || 'json';
				__queue_send(name, encode(body, type), type);
			});
		}
		sendBatch(messages) {
			var name = this._name;
			return __asPromise(function() {
				var batch = Array.from(messages, function(m) {
					var type = m.contentType || 'json';
					return { body: encode(m.body, type), contentType: type };
				});
				__queue_send_batch(name, JSON.stringify(batch));
			});
		}
	}

	g.WorkerQueue = WorkerQueue;
})(globalThis);
`

// maxQueueBatch is the most messages one sendBatch may carry.
const maxQueueBatch = 100

func (b *Bridge) setupQueues() error {
	ctx := context.Background()
	sender := func(name string) (core.QueueSender, error) {
		q, ok := b.bindings.Queues[name]
		if !ok {
			return nil, fmt.Errorf("queue binding %q not found", name)
		}
		return q, nil
	}
	if err := b.rt.RegisterFunc("__queue_send", func(name, body, contentType string) (string, error) {
		q, err := sender(name)
		if err != nil {
			return "", err
		}
		return q.Send(ctx, body, contentType)
	}); err != nil {
		return fmt.Errorf("registering __queue_send: %w", err)
	}
	if err := b.rt.RegisterFunc("__queue_send_batch", func(name, batchJSON string) (string, error) {
		q, err := sender(name)
		if err != nil {
			return "", err
		}
		var msgs []core.QueueMessageInput
		if err := json.Unmarshal([]byte(batchJSON), &msgs); err != nil {
			return "", fmt.Errorf("decoding batch: %w", err)
		}
		if len(msgs) > maxQueueBatch {
			return "", fmt.Errorf("sendBatch accepts at most %d messages, got %d", maxQueueBatch, len(msgs))
		}
		ids, err := q.SendBatch(ctx, msgs)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}); err != nil {
		return fmt.Errorf("registering __queue_send_batch: %w", err)
	}
	return b.rt.Eval(queuesJS)
}

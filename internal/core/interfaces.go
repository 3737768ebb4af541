package core

import "context"

// KVStore backs a single KV namespace.
type KVStore interface {
	Get(ctx context.Context, key string) (*string, error)
	GetWithMetadata(ctx context.Context, key string) (*KVValueWithMetadata, error)
	Put(ctx context.Context, key, value string, metadata *string, ttl *int) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, limit int, cursor string) (*KVListResult, error)
}

// QueueSender backs queue message production for a single queue.
type QueueSender interface {
	Send(ctx context.Context, body, contentType string) (string, error)
	SendBatch(ctx context.Context, messages []QueueMessageInput) ([]string, error)
}

// D1Store backs a single D1 database binding.
type D1Store interface {
	Exec(sql string, bindings []any) (*D1ExecResult, error)
	Close() error
}

// Package store provides Go-side backends for KV and queue bindings.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvRecord is one stored value. Namespaces share a table.
type kvRecord struct {
	Namespace string  `gorm:"primaryKey;column:namespace"`
	Key       string  `gorm:"primaryKey;column:kv_key"`
	Value     string  `gorm:"column:kv_value;not null"`
	Metadata  *string `gorm:"column:metadata"`
	ExpiresAt *int64  `gorm:"column:expires_at;index"`
}

func (kvRecord) TableName() string { return "kv_entries" }

// KVDB is a SQLite database holding any number of KV namespaces.
type KVDB struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenKV opens (and migrates) the KV database at path. An empty path
// opens a private in-memory database.
func OpenKV(path string) (*KVDB, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening KV database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening KV database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating KV database: %w", err)
	}
	return &KVDB{db: db, now: time.Now}, nil
}

// Close closes the database.
func (d *KVDB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Namespace returns the store for one KV namespace.
func (d *KVDB) Namespace(name string) *KVNamespace {
	return &KVNamespace{d: d, name: name}
}

// Sweep deletes every expired entry and reports how many were removed.
func (d *KVDB) Sweep(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", d.now().Unix()).
		Delete(&kvRecord{})
	return res.RowsAffected, res.Error
}

// KVNamespace implements core.KVStore over a KVDB.
type KVNamespace struct {
	d    *KVDB
	name string
}

var _ core.KVStore = (*KVNamespace)(nil)

// live scopes a query to this namespace's unexpired entries.
func (n *KVNamespace) live(ctx context.Context) *gorm.DB {
	return n.d.db.WithContext(ctx).
		Where("namespace = ?", n.name).
		Where("expires_at IS NULL OR expires_at > ?", n.d.now().Unix())
}

func (n *KVNamespace) find(ctx context.Context, key string) (*kvRecord, error) {
	var rec kvRecord
	err := n.live(ctx).Where("kv_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("KV get: %w", err)
	}
	return &rec, nil
}

func (n *KVNamespace) Get(ctx context.Context, key string) (*string, error) {
	rec, err := n.find(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.Value, nil
}

func (n *KVNamespace) GetWithMetadata(ctx context.Context, key string) (*core.KVValueWithMetadata, error) {
	rec, err := n.find(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	return &core.KVValueWithMetadata{Value: rec.Value, Metadata: rec.Metadata}, nil
}

// Put stores value. A non-nil ttl is the lifetime in seconds.
func (n *KVNamespace) Put(ctx context.Context, key, value string, metadata *string, ttl *int) error {
	rec := kvRecord{Namespace: n.name, Key: key, Value: value, Metadata: metadata}
	if ttl != nil {
		exp := n.d.now().Unix() + int64(*ttl)
		rec.ExpiresAt = &exp
	}
	err := n.d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kv_value", "metadata", "expires_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("KV put: %w", err)
	}
	return nil
}

func (n *KVNamespace) Delete(ctx context.Context, key string) error {
	err := n.d.db.WithContext(ctx).
		Where("namespace = ? AND kv_key = ?", n.name, key).
		Delete(&kvRecord{}).Error
	if err != nil {
		return fmt.Errorf("KV delete: %w", err)
	}
	return nil
}

// List returns keys with prefix in key order. The cursor is an opaque
// offset into that order.
func (n *KVNamespace) List(ctx context.Context, prefix string, limit int, cursor string) (*core.KVListResult, error) {
	if limit <= 0 || limit > core.MaxKVListLimit {
		limit = core.MaxKVListLimit
	}
	offset := core.DecodeCursor(cursor)
	q := n.live(ctx)
	if prefix != "" {
		q = q.Where("substr(kv_key, 1, ?) = ?", len(prefix), prefix)
	}
	var recs []kvRecord
	if err := q.Order("kv_key").Offset(offset).Limit(limit + 1).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("KV list: %w", err)
	}
	res := &core.KVListResult{Keys: []core.KVKey{}, ListComplete: len(recs) <= limit}
	if !res.ListComplete {
		recs = recs[:limit]
		res.Cursor = core.EncodeCursor(offset + limit)
	}
	for _, r := range recs {
		res.Keys = append(res.Keys, core.KVKey{Name: r.Key, Expiration: r.ExpiresAt, Metadata: r.Metadata})
	}
	return res, nil
}

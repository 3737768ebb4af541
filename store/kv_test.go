package store

import (
	"context"
	"testing"
	"time"
)

func openTestKV(t *testing.T) *KVDB {
	t.Helper()
	db, err := OpenKV("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestKV_PutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	ns := openTestKV(t).Namespace("CACHE")
	if v, err := ns.Get(ctx, "missing"); err != nil || v != nil {
		t.Fatalf("missing key = %v, %v", v, err)
	}
	if err := ns.Put(ctx, "k", "one", nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := ns.Put(ctx, "k", "two", ptr(`{"v":2}`), nil); err != nil {
		t.Fatal(err)
	}
	got, err := ns.GetWithMetadata(ctx, "k")
	if err != nil || got == nil {
		t.Fatalf("GetWithMetadata = %v, %v", got, err)
	}
	if got.Value != "two" || got.Metadata == nil || *got.Metadata != `{"v":2}` {
		t.Errorf("got %q / %v", got.Value, got.Metadata)
	}
	if err := ns.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if v, _ := ns.Get(ctx, "k"); v != nil {
		t.Errorf("deleted key still present: %q", *v)
	}
}

func TestKV_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestKV(t)
	a, b := db.Namespace("A"), db.Namespace("B")
	if err := a.Put(ctx, "k", "from a", nil, nil); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Get(ctx, "k"); v != nil {
		t.Errorf("namespace B sees %q", *v)
	}
}

func TestKV_Expiry(t *testing.T) {
	ctx := context.Background()
	db := openTestKV(t)
	now := time.Unix(1_700_000_000, 0)
	db.now = func() time.Time { return now }
	ns := db.Namespace("TTL")
	if err := ns.Put(ctx, "short", "v", nil, ptr(60)); err != nil {
		t.Fatal(err)
	}
	if err := ns.Put(ctx, "forever", "v", nil, nil); err != nil {
		t.Fatal(err)
	}
	if v, _ := ns.Get(ctx, "short"); v == nil {
		t.Fatal("entry expired early")
	}
	now = now.Add(61 * time.Second)
	if v, _ := ns.Get(ctx, "short"); v != nil {
		t.Error("expired entry still readable")
	}
	n, err := db.Sweep(ctx)
	if err != nil || n != 1 {
		t.Errorf("Sweep = %d, %v", n, err)
	}
	if v, _ := ns.Get(ctx, "forever"); v == nil {
		t.Error("entry without TTL was swept")
	}
}

func TestKV_ListPaging(t *testing.T) {
	ctx := context.Background()
	ns := openTestKV(t).Namespace("LIST")
	for _, k := range []string{"user:3", "user:1", "other", "user:2", "user_4"} {
		if err := ns.Put(ctx, k, "v", nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	page, err := ns.List(ctx, "user:", 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if page.ListComplete || len(page.Keys) != 2 || page.Keys[0].Name != "user:1" || page.Keys[1].Name != "user:2" {
		t.Fatalf("first page = %+v", page)
	}
	page, err = ns.List(ctx, "user:", 2, page.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if !page.ListComplete || len(page.Keys) != 1 || page.Keys[0].Name != "user:3" || page.Cursor != "" {
		t.Errorf("second page = %+v", page)
	}

	all, err := ns.List(ctx, "", 0, "")
	if err != nil || len(all.Keys) != 5 || !all.ListComplete {
		t.Errorf("unprefixed list = %+v, %v", all, err)
	}
}

func TestKV_ListPrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	ns := openTestKV(t).Namespace("LIKE")
	for _, k := range []string{"a%b", "axb", "a_c"} {
		if err := ns.Put(ctx, k, "v", nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	res, err := ns.List(ctx, "a%", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Keys) != 1 || res.Keys[0].Name != "a%b" {
		t.Errorf("keys = %+v", res.Keys)
	}
}

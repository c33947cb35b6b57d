package wizsync

import "testing"

func TestCaches_SyncedAtNilBeforeFirstSync(t *testing.T) {
	caches := NewCaches()
	sa := caches.SyncedAt()
	if sa.Balances != nil || sa.Customers != nil || sa.Contacts != nil {
		t.Fatalf("expected all nil synced-at before first sync, got %+v", sa)
	}
	snap := caches.Balances.Snapshot()
	if len(snap.Rows) != 0 {
		t.Fatalf("expected empty snapshot, got %d rows", len(snap.Rows))
	}
	if _, ok := snap.ByExternalId("anything"); ok {
		t.Fatal("empty snapshot must not resolve lookups")
	}
}

func TestReportCache_ReplacePublishesBothIndexes(t *testing.T) {
	cache := newReportCache[*AccountRow]()
	cache.Replace([]*AccountRow{
		{ExternalId: "501", AccountKey: "K501"},
		{ExternalId: "502", AccountKey: "K502"},
	})

	snap := cache.Snapshot()
	if snap.SyncedAt() == nil {
		t.Fatal("expected synced-at to be set after replace")
	}
	if r, ok := snap.ByExternalId("502"); !ok || r.AccountKey != "K502" {
		t.Fatalf("external-id lookup failed: %v %v", r, ok)
	}
	if r, ok := snap.ByAccountKey("K501"); !ok || r.ExternalId != "501" {
		t.Fatalf("account-key lookup failed: %v %v", r, ok)
	}
}

func TestReportCache_FirstRowWinsOnDuplicateKeys(t *testing.T) {
	cache := newReportCache[*AccountRow]()
	cache.Replace([]*AccountRow{
		{ExternalId: "501", AccountName: "first"},
		{ExternalId: "501", AccountName: "second"},
	})

	snap := cache.Snapshot()
	if len(snap.Rows) != 2 {
		t.Fatalf("duplicate rows stay in Rows, got %d", len(snap.Rows))
	}
	r, ok := snap.ByExternalId("501")
	if !ok || r.AccountName != "first" {
		t.Fatalf("expected first duplicate to win, got %+v", r)
	}
}

func TestReportCache_ReplaceIsFullSwap(t *testing.T) {
	cache := newReportCache[*ContactRow]()
	cache.Replace([]*ContactRow{{ExternalId: "old"}})
	before := cache.Snapshot()

	cache.Replace([]*ContactRow{{ExternalId: "new"}})
	after := cache.Snapshot()

	if _, ok := after.ByExternalId("old"); ok {
		t.Fatal("stale row survived a replace")
	}
	if _, ok := after.ByExternalId("new"); !ok {
		t.Fatal("new row missing after replace")
	}
	// The snapshot handed out earlier is immutable.
	if _, ok := before.ByExternalId("old"); !ok {
		t.Fatal("previously taken snapshot was mutated by replace")
	}
}

func TestReportCache_EmptyKeysNotIndexed(t *testing.T) {
	cache := newReportCache[*AccountRow]()
	cache.Replace([]*AccountRow{{ExternalId: "row-abc", AccountKey: ""}})
	snap := cache.Snapshot()
	if _, ok := snap.ByAccountKey(""); ok {
		t.Fatal("empty account key must not be indexed")
	}
}

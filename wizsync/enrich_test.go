package wizsync

import (
	"testing"

	"bitbucket.org/nextfollow/followup_backend/models"
)

func snapshotOf(rows ...*ContactRow) *Snapshot[*ContactRow] {
	c := newReportCache[*ContactRow]()
	c.Replace(rows)
	return c.Snapshot()
}

func TestEnrichRow_CuratedContactsOutrankBulkExport(t *testing.T) {
	row := &AccountRow{ExternalId: "501", AccountKey: "K501", AccountName: "stale name"}
	customers := snapshotOf(&ContactRow{
		AccountKey:  "K501",
		AccountName: "bulk name",
		ContactName: "bulk contact",
		Email:       "bulk@example.com",
		Phone:       "03-111-1111",
	})
	contacts := snapshotOf(&ContactRow{
		AccountKey:  "K501",
		AccountName: "curated name",
		ContactName: "curated contact",
	})

	e := enrichRow(row, customers, contacts)
	if e.AccountName != "curated name" {
		t.Fatalf("expected curated name to win, got %q", e.AccountName)
	}
	if e.ContactName != "curated contact" {
		t.Fatalf("expected curated contact to win, got %q", e.ContactName)
	}
	// Fields the curated row does not carry fall back to the bulk export.
	if e.Email != "bulk@example.com" {
		t.Fatalf("expected bulk email fallback, got %q", e.Email)
	}
	if e.Phone != "03-111-1111" {
		t.Fatalf("expected bulk phone fallback, got %q", e.Phone)
	}
}

func TestEnrichRow_PrimaryNameIsLastResort(t *testing.T) {
	row := &AccountRow{ExternalId: "9", AccountName: "primary name"}
	empty := snapshotOf()

	e := enrichRow(row, empty, empty)
	if e.AccountName != "primary name" {
		t.Fatalf("expected primary row name, got %q", e.AccountName)
	}
	if e.ContactName != "" || e.Email != "" {
		t.Fatalf("expected no contact data, got %+v", e)
	}
}

func TestEnrichRow_AccountKeyLookupBeforeExternalId(t *testing.T) {
	row := &AccountRow{ExternalId: "501", AccountKey: "K501"}
	contacts := snapshotOf(
		&ContactRow{ExternalId: "501", ContactName: "matched by id"},
		&ContactRow{AccountKey: "K501", ContactName: "matched by key"},
	)

	e := enrichRow(row, snapshotOf(), contacts)
	if e.ContactName != "matched by key" {
		t.Fatalf("expected account-key match to win, got %q", e.ContactName)
	}
}

func TestPickBestRow_Precedence(t *testing.T) {
	rows := []*AccountRow{
		{ExternalId: "100", AccountKey: "K100"},
		{ExternalId: "200", AccountKey: "K200"},
	}

	customer := &models.Customer{ExternalId: "200", AccountKey: "K100"}
	if got := pickBestRow(rows, customer); got.ExternalId != "200" {
		t.Fatalf("external-id match must win, got %q", got.ExternalId)
	}

	customer = &models.Customer{ExternalId: "999", AccountKey: "K200"}
	if got := pickBestRow(rows, customer); got.ExternalId != "200" {
		t.Fatalf("account-key match must win, got %q", got.ExternalId)
	}

	customer = &models.Customer{ExternalId: "999", AccountKey: "K999"}
	if got := pickBestRow(rows, customer); got.ExternalId != "100" {
		t.Fatalf("expected first-row fallback, got %q", got.ExternalId)
	}

	if got := pickBestRow(nil, customer); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

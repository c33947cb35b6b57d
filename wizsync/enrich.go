package wizsync

import "bitbucket.org/nextfollow/followup_backend/models"

// enrichRow merges one primary row with both contact caches. Report B (the
// curated contacts list) outranks report A (the bulk export), and A
// outranks the primary row's own name field, which is often stale. Lookup
// prefers the account key and falls back to the external id. Cached rows
// are never mutated.
func enrichRow(row *AccountRow, customers *Snapshot[*ContactRow], contacts *Snapshot[*ContactRow]) Enrichment {
	b := findContact(contacts, row)
	a := findContact(customers, row)

	e := Enrichment{AccountName: row.AccountName}
	apply := func(c *ContactRow) {
		if c == nil {
			return
		}
		if c.AccountName != "" {
			e.AccountName = c.AccountName
		}
		if c.ContactName != "" {
			e.ContactName = c.ContactName
		}
		if c.Email != "" {
			e.Email = c.Email
		}
		if c.Phone != "" {
			e.Phone = c.Phone
		}
		if c.MobilePhone != "" {
			e.MobilePhone = c.MobilePhone
		}
	}
	// Weakest source first so stronger sources overwrite.
	apply(a)
	apply(b)
	return e
}

func findContact(snap *Snapshot[*ContactRow], row *AccountRow) *ContactRow {
	if row.AccountKey != "" {
		if c, ok := snap.ByAccountKey(row.AccountKey); ok {
			return c
		}
	}
	if c, ok := snap.ByExternalId(row.ExternalId); ok {
		return c
	}
	return nil
}

// pickBestRow selects the upstream row that belongs to a known local
// customer: exact external-id match first, then account-key match, then the
// first row as a last-resort default (identity fields upstream are not
// always reliable, but a single plausible record usually is the record).
// Returns nil only for an empty input.
func pickBestRow(rows []*AccountRow, customer *models.Customer) *AccountRow {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.ExternalId != "" && r.ExternalId == customer.ExternalId {
			return r
		}
	}
	if customer.AccountKey != "" {
		for _, r := range rows {
			if r.AccountKey == customer.AccountKey {
				return r
			}
		}
	}
	return rows[0]
}

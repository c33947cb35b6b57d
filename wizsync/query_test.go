package wizsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/nextfollow/followup_backend/models"
	"github.com/shopspring/decimal"
)

// stubResolver replaces the models layer so query logic runs without a DB.
type stubResolver struct {
	customers map[string]*models.Customer
	handling  map[int]*models.LatestHandling
	eligible  []int

	customersCalls   [][]string
	eligibilityCalls int
}

func (s *stubResolver) CustomersByExternalIds(_ context.Context, externalIds []string) (map[string]*models.Customer, error) {
	s.customersCalls = append(s.customersCalls, externalIds)
	out := make(map[string]*models.Customer)
	for _, id := range externalIds {
		if c, ok := s.customers[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *stubResolver) LatestHandlingByCustomerIds(_ context.Context, customerIds []int) (map[int]*models.LatestHandling, error) {
	out := make(map[int]*models.LatestHandling)
	for _, id := range customerIds {
		if h, ok := s.handling[id]; ok {
			out[id] = h
		}
	}
	return out, nil
}

func (s *stubResolver) EligibleCustomerIds(_ context.Context, _ *int, _ *int) ([]int, error) {
	s.eligibilityCalls++
	return s.eligible, nil
}

func testCaches(n int) *Caches {
	caches := NewCaches()
	rows := make([]*AccountRow, 0, n)
	for i := 1; i <= n; i++ {
		balance := decimal.NewFromInt(int64(i * 100))
		if i%2 == 0 {
			balance = decimal.Zero
		}
		rows = append(rows, &AccountRow{
			ExternalId:     fmt.Sprintf("%d", i),
			AccountKey:     fmt.Sprintf("K%d", i),
			AccountName:    fmt.Sprintf("Account %d", i),
			AccountBalance: balance,
		})
	}
	caches.Balances.Replace(rows)
	caches.Customers.Replace(nil)
	caches.Contacts.Replace(nil)
	return caches
}

func TestRunQuery_PagesConcatenateToFullSet(t *testing.T) {
	caches := testCaches(7)
	resolver := &stubResolver{}
	ctx := context.Background()

	var seen []string
	nextId := 1
	for page := 1; page <= 3; page++ {
		res, err := runQuery(ctx, caches, resolver, QueryParams{Page: page, Limit: 3})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if res.Total != 7 || res.TotalPages != 3 {
			t.Fatalf("page %d: total=%d totalPages=%d", page, res.Total, res.TotalPages)
		}
		for _, r := range res.Rows {
			if r.Id != nextId {
				t.Fatalf("expected positional id %d, got %d", nextId, r.Id)
			}
			nextId++
			seen = append(seen, r.ExternalId)
		}
	}
	if len(seen) != 7 {
		t.Fatalf("concatenated pages hold %d rows, want 7", len(seen))
	}
	for i, id := range seen {
		if id != fmt.Sprintf("%d", i+1) {
			t.Fatalf("row %d out of order: %q", i, id)
		}
	}
	if resolver.eligibilityCalls != 0 {
		t.Fatalf("page-first path must not resolve eligibility, called %d times", resolver.eligibilityCalls)
	}
	// Metadata is resolved per page, never for the whole set.
	for _, call := range resolver.customersCalls {
		if len(call) > 3 {
			t.Fatalf("page-first path resolved %d ids, limit is 3", len(call))
		}
	}
}

func TestRunQuery_BalanceModesPartition(t *testing.T) {
	caches := testCaches(10)
	resolver := &stubResolver{}
	ctx := context.Background()

	zero, err := runQuery(ctx, caches, resolver, QueryParams{BalanceMode: BalanceModeZero, Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	nonZero, err := runQuery(ctx, caches, resolver, QueryParams{BalanceMode: BalanceModeNonZero, Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	all, err := runQuery(ctx, caches, resolver, QueryParams{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}

	if zero.Total+nonZero.Total != all.Total {
		t.Fatalf("partition broken: %d + %d != %d", zero.Total, nonZero.Total, all.Total)
	}
	for _, r := range zero.Rows {
		if !r.AccountBalance.IsZero() {
			t.Fatalf("non-zero balance %s in zero partition", r.AccountBalance.String())
		}
	}
	for _, r := range nonZero.Rows {
		if r.AccountBalance.IsZero() {
			t.Fatal("zero balance in non-zero partition")
		}
	}
}

func TestRunQuery_RejectsUnknownBalanceMode(t *testing.T) {
	_, err := runQuery(context.Background(), testCaches(1), &stubResolver{}, QueryParams{BalanceMode: "negative"})
	if !errors.Is(err, ErrInvalidQueryParam) {
		t.Fatalf("expected ErrInvalidQueryParam, got %v", err)
	}
}

func TestRunQuery_SearchMatchesTextAndPhoneDigits(t *testing.T) {
	caches := NewCaches()
	caches.Balances.Replace([]*AccountRow{
		{ExternalId: "1", AccountKey: "K1", AccountName: "Acme Industries"},
		{ExternalId: "2", AccountKey: "K2", AccountName: "Other"},
		{ExternalId: "3", AccountKey: "K3", AccountName: "Third"},
	})
	caches.Customers.Replace(nil)
	caches.Contacts.Replace([]*ContactRow{
		{AccountKey: "K2", MobilePhone: "050-123-4567"},
		{AccountKey: "K3", MobilePhone: "050-123-4568"},
	})
	resolver := &stubResolver{}
	ctx := context.Background()

	res, err := runQuery(ctx, caches, resolver, QueryParams{Search: "aCmE"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Rows[0].ExternalId != "1" {
		t.Fatalf("case-insensitive name search failed: %+v", res)
	}

	res, err = runQuery(ctx, caches, resolver, QueryParams{Search: "0501234567"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Rows[0].ExternalId != "2" {
		t.Fatalf("digits-only phone search failed: total=%d", res.Total)
	}

	res, err = runQuery(ctx, caches, resolver, QueryParams{Search: "no-such-customer"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 {
		t.Fatalf("expected no matches, got %d", res.Total)
	}
	if res.TotalPages != 1 {
		t.Fatalf("totalPages must never drop below 1, got %d", res.TotalPages)
	}
}

func TestRunQuery_EmptyEligibleSetShortCircuits(t *testing.T) {
	caches := testCaches(5)
	resolver := &stubResolver{eligible: nil}
	managerId := 42

	res, err := runQuery(context.Background(), caches, resolver, QueryParams{ManagedBy: &managerId})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 || len(res.Rows) != 0 {
		t.Fatalf("expected empty result, got total=%d rows=%d", res.Total, len(res.Rows))
	}
	if res.Page != 1 || res.TotalPages != 1 {
		t.Fatalf("expected page=1 totalPages=1, got %d/%d", res.Page, res.TotalPages)
	}
	if len(resolver.customersCalls) != 0 {
		t.Fatal("short-circuit must not resolve customers")
	}
}

func TestRunQuery_EligibilityFiltersToMatchedCustomers(t *testing.T) {
	caches := testCaches(5)
	resolver := &stubResolver{
		customers: map[string]*models.Customer{
			"2": {ID: 20, ExternalId: "2"},
			"4": {ID: 40, ExternalId: "4"},
		},
		handling: map[int]*models.LatestHandling{
			20: {CustomerId: 20, ManagerName: "Dana"},
		},
		eligible: []int{20},
	}
	managerId := 7

	res, err := runQuery(context.Background(), caches, resolver, QueryParams{ManagedBy: &managerId})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Fatalf("expected 1 eligible row, got %d", res.Total)
	}
	row := res.Rows[0]
	if row.ExternalId != "2" {
		t.Fatalf("wrong row selected: %q", row.ExternalId)
	}
	if row.CustomerId == nil || *row.CustomerId != 20 {
		t.Fatalf("expected joined customer id 20, got %v", row.CustomerId)
	}
	if row.Handling == nil || row.Handling.ManagerName != "Dana" {
		t.Fatalf("expected handling metadata, got %+v", row.Handling)
	}
	if resolver.eligibilityCalls != 1 {
		t.Fatalf("eligibility resolved %d times, want 1", resolver.eligibilityCalls)
	}
}

package wizsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitbucket.org/nextfollow/followup_backend/models"
)

func testClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Paths: ReportPaths{
			Balances:  "/reports/balances",
			Customers: "/reports/customers",
			Contacts:  "/reports/contacts",
			Ledger:    "/reports/ledger",
			Detail:    "/reports/account-detail",
		},
	})
}

func newTestSyncer(client *Client) (*Syncer, *Caches) {
	caches := NewCaches()
	s := NewSyncer(client, caches)
	s.upsertCustomers = func(context.Context, []models.CustomerUpsert) error { return nil }
	return s, caches
}

func TestSyncAll_ContactFailureIsWarningOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reports/balances":
			w.Write([]byte(`{"data":{"rows":[
				{"AccountCardNum":501,"AccountKey":"K501","AccountName":"Acme","Balance":"1,250.00"},
				{"AccountCardNum":502,"AccountKey":"K502","Balance":"0"}
			]}}`))
		case "/reports/customers":
			w.Write([]byte(`{"rows":[{"AccountCardNum":501,"ContactName":"Dana","Phone":"03-555-1234"}]}`))
		case "/reports/contacts":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s, caches := newTestSyncer(testClient(srv.URL))
	summary, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("contact failure must not fail the sync: %v", err)
	}

	if summary.BalanceRows != 2 {
		t.Fatalf("expected 2 balance rows, got %d", summary.BalanceRows)
	}
	if summary.CustomerRows != 1 {
		t.Fatalf("expected 1 customer row, got %d", summary.CustomerRows)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "contacts report") {
		t.Fatalf("expected one contacts warning, got %v", summary.Warnings)
	}

	if _, ok := caches.Balances.Snapshot().ByExternalId("501"); !ok {
		t.Fatal("balance cache not populated")
	}
	if _, ok := caches.Customers.Snapshot().ByExternalId("501"); !ok {
		t.Fatal("customers cache not populated")
	}
	// The failed report's cache stays in its previous (never synced) state.
	if caches.SyncedAt().Contacts != nil {
		t.Fatal("contacts cache must remain unsynced after its report failed")
	}
	if caches.SyncedAt().Balances == nil {
		t.Fatal("balances synced-at missing")
	}
}

func TestSyncAll_PrimaryFailureFailsSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, caches := newTestSyncer(testClient(srv.URL))
	_, err := s.SyncAll(context.Background())
	if err == nil {
		t.Fatal("expected error when the balances report fails")
	}
	var statusErr *UpstreamStatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("expected upstream status error 502, got %v", err)
	}
	if caches.SyncedAt().Balances != nil {
		t.Fatal("failed sync must not mark the balance cache synced")
	}
}

func TestSyncAll_UpsertFailureIsWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows":[{"AccountKey":"K1","Balance":"10"}]}`))
	}))
	defer srv.Close()

	s, caches := newTestSyncer(testClient(srv.URL))
	s.upsertCustomers = func(context.Context, []models.CustomerUpsert) error {
		return errors.New("db down")
	}

	summary, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("upsert failure must not fail the sync: %v", err)
	}
	if summary.Upserted != 0 {
		t.Fatalf("expected 0 upserted, got %d", summary.Upserted)
	}
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "customer upsert") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an upsert warning, got %v", summary.Warnings)
	}
	if _, ok := caches.Balances.Snapshot().ByAccountKey("K1"); !ok {
		t.Fatal("cache must be published before the upsert runs")
	}
}

func TestPostReport_ClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
		Paths:   ReportPaths{Balances: "/reports/balances"},
	})
	_, err := client.postReport(context.Background(), "/reports/balances", nil)
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestPostReport_UnconfiguredBaseURL(t *testing.T) {
	client := NewClient(ClientConfig{})
	_, err := client.postReport(context.Background(), "/reports/balances", nil)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

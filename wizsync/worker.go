package wizsync

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"bitbucket.org/nextfollow/followup_backend/models"
	"bitbucket.org/nextfollow/followup_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Syncer fetches, maps and publishes all upstream report caches. One
// logical sync at a time; handlers serialize triggers with a best-effort
// redis lock, and cache replacement is atomic regardless.
type Syncer struct {
	client *Client
	caches *Caches

	// upsertCustomers is swappable for tests; defaults to the models layer.
	upsertCustomers func(ctx context.Context, rows []models.CustomerUpsert) error
}

func NewSyncer(client *Client, caches *Caches) *Syncer {
	return &Syncer{
		client:          client,
		caches:          caches,
		upsertCustomers: models.UpsertCustomersFromReport,
	}
}

type SyncSummary struct {
	BalanceRows   int       `json:"balance_rows"`
	CustomerRows  int       `json:"customer_rows"`
	ContactRows   int       `json:"contact_rows"`
	Upserted      int       `json:"upserted"`
	Warnings      []string  `json:"warnings"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    int64     `json:"duration_ms"`
	CorrelationId string    `json:"correlation_id"`
}

// SyncAll refreshes the three report caches. The primary balance report is
// load-bearing for every query, so its failure fails the whole sync. Each
// contact report fails soft: the error becomes a warning and the previous
// cache state (possibly empty) stays published.
func (s *Syncer) SyncAll(ctx context.Context) (*SyncSummary, error) {
	logger := config.GetLogger()
	started := time.Now()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}

	summary := &SyncSummary{
		Warnings:      []string{},
		StartedAt:     started,
		CorrelationId: cid,
	}

	payload, err := s.client.postReport(ctx, s.client.cfg.Paths.Balances, nil)
	if err != nil {
		config.LogError(logger, "wizsync", "SyncAll", "balances report", map[string]any{"correlation_id": cid}, err)
		return nil, err
	}
	accountRows := make([]*AccountRow, 0)
	for _, raw := range extractRows(payload, balancesRowShape) {
		accountRows = append(accountRows, mapAccountRow(raw))
	}
	s.caches.Balances.Replace(accountRows)
	summary.BalanceRows = len(accountRows)

	upserts := make([]models.CustomerUpsert, 0, len(accountRows))
	for _, r := range accountRows {
		upserts = append(upserts, models.CustomerUpsert{
			ExternalId: r.ExternalId,
			AccountKey: r.AccountKey,
			Name:       r.AccountName,
		})
	}
	if err := s.upsertCustomers(ctx, upserts); err != nil {
		// The cache is already published; a failed upsert degrades the
		// local join but must not fail the sync.
		config.LogError(logger, "wizsync", "SyncAll", "customer upsert", map[string]any{"correlation_id": cid}, err)
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("customer upsert: %v", err))
	} else {
		summary.Upserted = len(upserts)
	}

	if n, err := s.syncContacts(ctx, s.client.cfg.Paths.Customers, customersRowShape, mapCustomersRow, s.caches.Customers); err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("customers report: %v", err))
	} else {
		summary.CustomerRows = n
	}

	if n, err := s.syncContacts(ctx, s.client.cfg.Paths.Contacts, contactsRowShape, mapContactsRow, s.caches.Contacts); err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("contacts report: %v", err))
	} else {
		summary.ContactRows = n
	}

	summary.DurationMs = time.Since(started).Milliseconds()
	logger.WithFields(logrus.Fields{
		"module":         "wizsync",
		"correlation_id": cid,
		"balance_rows":   summary.BalanceRows,
		"customer_rows":  summary.CustomerRows,
		"contact_rows":   summary.ContactRows,
		"warnings":       len(summary.Warnings),
		"duration_ms":    summary.DurationMs,
	}).Info("report sync finished")

	return summary, nil
}

func (s *Syncer) syncContacts(ctx context.Context, path string, shape rowPredicate, mapRow func(map[string]any) *ContactRow, cache *reportCache[*ContactRow]) (int, error) {
	payload, err := s.client.postReport(ctx, path, nil)
	if err != nil {
		config.LogError(config.GetLogger(), "wizsync", "syncContacts", path, nil, err)
		return 0, err
	}

	rows := make([]*ContactRow, 0)
	for _, raw := range extractRows(payload, shape) {
		if c := mapRow(raw); c != nil {
			rows = append(rows, c)
		}
	}
	cache.Replace(rows)
	return len(rows), nil
}

// RunPeriodicSync triggers SyncAll on a fixed interval until ctx is
// cancelled. Interval 0 disables it. Errors are logged, never fatal.
func (s *Syncer) RunPeriodicSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncAll(ctx); err != nil {
				config.LogError(config.GetLogger(), "wizsync", "RunPeriodicSync", "scheduled sync", nil, err)
			}
		}
	}
}

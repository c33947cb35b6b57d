package wizsync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"bitbucket.org/nextfollow/followup_backend/models"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// QueryHandler serves the main customer query: search, balance-mode and
// manager/group filters over the cached primary rows, paginated.
func QueryHandler(caches *Caches) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := queryParamsFromRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := runQuery(c.Request.Context(), caches, dbResolver{}, params)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"rows":          result.Rows,
			"total":         result.Total,
			"page":          result.Page,
			"limit":         result.Limit,
			"totalPages":    result.TotalPages,
			"cacheSyncedAt": caches.SyncedAt(),
		})
	}
}

// DetailHandler returns one local customer together with its matched
// upstream row. On a cache miss the basic detail report is fetched on
// demand for just that account.
func DetailHandler(client *Client, caches *Caches) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			respondError(c, fmt.Errorf("%w: id must be an integer", ErrInvalidQueryParam))
			return
		}

		customer, err := models.GetCustomer(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		allowed, err := models.CustomerAccessibleBy(ctx, customer)
		if err != nil {
			respondError(c, err)
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		balances := caches.Balances.Snapshot()
		row, ok := balances.ByExternalId(customer.ExternalId)
		if !ok && customer.AccountKey != "" {
			row, ok = balances.ByAccountKey(customer.AccountKey)
		}
		if !ok {
			row, err = fetchDetailRow(c, client, customer)
			if err != nil {
				respondError(c, err)
				return
			}
		}

		handling, err := models.LatestNoteForCustomer(ctx, customer.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		var account *EnrichedRow
		if row != nil {
			enr := enrichRow(row, caches.Customers.Snapshot(), caches.Contacts.Snapshot())
			account = buildRow(
				matchedRow{row: row, enr: enr},
				1,
				map[string]*models.Customer{row.ExternalId: customer},
				map[int]*models.LatestHandling{customer.ID: handling},
			)
		}

		c.JSON(http.StatusOK, gin.H{
			"customer":      customer,
			"account":       account,
			"handling":      handling,
			"cacheSyncedAt": caches.SyncedAt(),
		})
	}
}

func fetchDetailRow(c *gin.Context, client *Client, customer *models.Customer) (*AccountRow, error) {
	payload, err := client.FetchDetail(c.Request.Context(), customer.ExternalId)
	if err != nil {
		return nil, err
	}
	rows := make([]*AccountRow, 0)
	for _, raw := range extractRows(payload, detailRowShape) {
		rows = append(rows, mapDetailRow(raw))
	}
	// Empty extraction means "no data for this account", not an error.
	return pickBestRow(rows, customer), nil
}

// LedgerHandler serves the per-account transaction ledger. Ledger data is
// customer-scoped, so it lives in a short TTL cache instead of the global
// report caches.
func LedgerHandler(client *Client, ledgerCache *gocache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			respondError(c, fmt.Errorf("%w: id must be an integer", ErrInvalidQueryParam))
			return
		}

		customer, err := models.GetCustomer(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		allowed, err := models.CustomerAccessibleBy(ctx, customer)
		if err != nil {
			respondError(c, err)
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		account := customer.AccountKey
		if account == "" {
			account = customer.ExternalId
		}
		cacheKey := "ledger:" + account

		if cached, found := ledgerCache.Get(cacheKey); found {
			c.JSON(http.StatusOK, gin.H{"rows": cached, "cached": true})
			return
		}

		payload, err := client.FetchLedger(ctx, account)
		if err != nil {
			respondError(c, err)
			return
		}
		rows := make([]*LedgerRow, 0)
		for _, raw := range extractRows(payload, ledgerRowShape) {
			rows = append(rows, mapLedgerRow(raw))
		}
		ledgerCache.Set(cacheKey, rows, gocache.DefaultExpiration)

		c.JSON(http.StatusOK, gin.H{"rows": rows, "cached": false})
	}
}

// SyncHandler triggers a full report sync. A best-effort redis lock keeps
// concurrent manual triggers from stampeding the upstream; correctness does
// not depend on it (cache replacement is atomic either way).
func SyncHandler(syncer *Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(ctx, "wizsync:sync", 10*time.Minute, nil)
			if err == redislock.ErrNotObtained {
				c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
				return
			}
			if err == nil {
				defer lock.Release(ctx)
			}
		}

		summary, err := syncer.SyncAll(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func queryParamsFromRequest(c *gin.Context) (QueryParams, error) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return QueryParams{}, err
	}
	limit, err := intQuery(c, "limit", defaultQueryLimit)
	if err != nil {
		return QueryParams{}, err
	}
	managedBy, err := optionalIntQuery(c, "managed_by")
	if err != nil {
		return QueryParams{}, err
	}
	groupId, err := optionalIntQuery(c, "group_id")
	if err != nil {
		return QueryParams{}, err
	}

	return QueryParams{
		Search:      c.Query("search"),
		BalanceMode: strings.TrimSpace(c.Query("balance_mode")),
		ManagedBy:   managedBy,
		GroupId:     groupId,
		Page:        page,
		Limit:       limit,
	}, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidQueryParam, name)
	}
	return n, nil
}

func optionalIntQuery(c *gin.Context, name string) (*int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidQueryParam, name)
	}
	return &n, nil
}

func respondError(c *gin.Context, err error) {
	var statusErr *UpstreamStatusError
	switch {
	case errors.Is(err, ErrInvalidQueryParam):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &statusErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "wizsync", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

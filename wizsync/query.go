package wizsync

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/nextfollow/followup_backend/models"
	"bitbucket.org/nextfollow/followup_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	BalanceModeNonZero = "balance_non_zero"
	BalanceModeZero    = "balance_zero"

	defaultQueryLimit = 50
)

type QueryParams struct {
	Search      string
	BalanceMode string
	ManagedBy   *int
	GroupId     *int
	Page        int
	Limit       int
}

// EnrichedRow is one query result: a cached primary row joined at read time
// with the local customer id, the latest-note handling metadata and the
// merged contact view. Never persisted; Id is positional within the result
// set (offset + index + 1), not a stable identifier.
type EnrichedRow struct {
	Id                int                    `json:"id"`
	CustomerId        *int                   `json:"customer_id"`
	ExternalId        string                 `json:"external_id"`
	AccountCardNumber int64                  `json:"account_card_number,omitempty"`
	AccountKey        string                 `json:"account_key,omitempty"`
	AccountName       string                 `json:"account_name,omitempty"`
	ContactName       string                 `json:"contact_name,omitempty"`
	Email             string                 `json:"email,omitempty"`
	Phone             string                 `json:"phone,omitempty"`
	MobilePhone       string                 `json:"mobile_phone,omitempty"`
	AccountBalance    decimal.Decimal        `json:"account_balance"`
	DeferredChecks    decimal.Decimal        `json:"deferred_checks"`
	OpenDeliveryNotes decimal.Decimal        `json:"open_delivery_notes_balance"`
	TotalObligo       decimal.Decimal        `json:"total_obligo"`
	TotalCredit       decimal.Decimal        `json:"total_credit"`
	CreditLimit       decimal.Decimal        `json:"credit_limit"`
	CreditDeviation   decimal.Decimal        `json:"credit_deviation"`
	ObligoLimit       decimal.Decimal        `json:"obligo_limit"`
	ObligoDeviation   decimal.Decimal        `json:"obligo_deviation"`
	Handling          *models.LatestHandling `json:"handling,omitempty"`
}

type QueryResult struct {
	Rows       []*EnrichedRow `json:"rows"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

// metadataResolver abstracts the local-database lookups the query engine
// needs, so tests can run against a stub instead of a live DB. All lookups
// are batched by id set, never issued per row.
type metadataResolver interface {
	CustomersByExternalIds(ctx context.Context, externalIds []string) (map[string]*models.Customer, error)
	LatestHandlingByCustomerIds(ctx context.Context, customerIds []int) (map[int]*models.LatestHandling, error)
	EligibleCustomerIds(ctx context.Context, managedBy *int, groupId *int) ([]int, error)
}

type dbResolver struct{}

func (dbResolver) CustomersByExternalIds(ctx context.Context, externalIds []string) (map[string]*models.Customer, error) {
	return models.CustomersByExternalIds(ctx, externalIds)
}

func (dbResolver) LatestHandlingByCustomerIds(ctx context.Context, customerIds []int) (map[int]*models.LatestHandling, error) {
	return models.LatestNotesByCustomerIds(ctx, customerIds)
}

func (dbResolver) EligibleCustomerIds(ctx context.Context, managedBy *int, groupId *int) ([]int, error) {
	return models.EligibleCustomerIds(ctx, managedBy, groupId)
}

type matchedRow struct {
	row *AccountRow
	enr Enrichment
}

// runQuery applies search, balance-mode and (optionally) manager/group
// eligibility filtering to the cached primary rows, then paginates.
//
// Pagination strategy branches on whether DB-side filters are active:
// without them the filtered rows are paginated first and local metadata is
// resolved only for the visible page; with them, metadata must be resolved
// for the whole filtered set before eligibility can be applied, and
// pagination runs over the eligible rows. Do not unify the two paths:
// one direction paginates before filtering (wrong results), the other joins
// for every query (wrong performance).
func runQuery(ctx context.Context, caches *Caches, resolver metadataResolver, params QueryParams) (*QueryResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = defaultQueryLimit
	}
	switch params.BalanceMode {
	case "", BalanceModeNonZero, BalanceModeZero:
	default:
		return nil, fmt.Errorf("%w: unknown balance mode %q", ErrInvalidQueryParam, params.BalanceMode)
	}

	// One snapshot per cache for the whole query, so every lookup sees a
	// single sync generation even if a sync lands mid-query.
	balances := caches.Balances.Snapshot()
	customers := caches.Customers.Snapshot()
	contacts := caches.Contacts.Snapshot()

	needle := strings.ToLower(strings.TrimSpace(params.Search))
	digits := utils.DigitsOnly(params.Search)

	var filtered []matchedRow
	for _, row := range balances.Rows {
		enr := enrichRow(row, customers, contacts)
		if !matchesSearch(row, enr, needle, digits) {
			continue
		}
		if !matchesBalanceMode(row, params.BalanceMode) {
			continue
		}
		filtered = append(filtered, matchedRow{row: row, enr: enr})
	}

	if params.ManagedBy != nil || params.GroupId != nil {
		return queryWithEligibility(ctx, resolver, filtered, params)
	}
	return queryPageFirst(ctx, resolver, filtered, params)
}

// queryPageFirst paginates before touching the database: local customer
// ids and handling metadata are resolved for the page's rows only.
func queryPageFirst(ctx context.Context, resolver metadataResolver, filtered []matchedRow, params QueryParams) (*QueryResult, error) {
	total := len(filtered)
	offset := (params.Page - 1) * params.Limit
	page := pageSlice(filtered, offset, params.Limit)

	externalIds := make([]string, 0, len(page))
	for _, m := range page {
		externalIds = append(externalIds, m.row.ExternalId)
	}
	customerByExtId, err := resolver.CustomersByExternalIds(ctx, externalIds)
	if err != nil {
		return nil, err
	}
	handlingByCustId, err := resolveHandling(ctx, resolver, customerByExtId)
	if err != nil {
		return nil, err
	}

	rows := make([]*EnrichedRow, 0, len(page))
	for i, m := range page {
		rows = append(rows, buildRow(m, offset+i+1, customerByExtId, handlingByCustId))
	}
	return newResult(rows, total, params), nil
}

// queryWithEligibility resolves metadata for the whole filtered set first
// (eligibility depends on it), filters to eligible customers, then
// paginates. An empty eligible-id set short-circuits to an empty page 1
// without further joins.
func queryWithEligibility(ctx context.Context, resolver metadataResolver, filtered []matchedRow, params QueryParams) (*QueryResult, error) {
	eligibleIds, err := resolver.EligibleCustomerIds(ctx, params.ManagedBy, params.GroupId)
	if err != nil {
		return nil, err
	}
	if len(eligibleIds) == 0 {
		return &QueryResult{
			Rows:       []*EnrichedRow{},
			Total:      0,
			Page:       1,
			Limit:      params.Limit,
			TotalPages: 1,
		}, nil
	}
	eligible := make(map[int]bool, len(eligibleIds))
	for _, id := range eligibleIds {
		eligible[id] = true
	}

	externalIds := make([]string, 0, len(filtered))
	for _, m := range filtered {
		externalIds = append(externalIds, m.row.ExternalId)
	}
	customerByExtId, err := resolver.CustomersByExternalIds(ctx, externalIds)
	if err != nil {
		return nil, err
	}

	eligibleRows := make([]matchedRow, 0, len(filtered))
	for _, m := range filtered {
		customer, ok := customerByExtId[m.row.ExternalId]
		if ok && eligible[customer.ID] {
			eligibleRows = append(eligibleRows, m)
		}
	}

	handlingByCustId, err := resolveHandling(ctx, resolver, customerByExtId)
	if err != nil {
		return nil, err
	}

	total := len(eligibleRows)
	offset := (params.Page - 1) * params.Limit
	page := pageSlice(eligibleRows, offset, params.Limit)

	rows := make([]*EnrichedRow, 0, len(page))
	for i, m := range page {
		rows = append(rows, buildRow(m, offset+i+1, customerByExtId, handlingByCustId))
	}
	return newResult(rows, total, params), nil
}

func resolveHandling(ctx context.Context, resolver metadataResolver, customerByExtId map[string]*models.Customer) (map[int]*models.LatestHandling, error) {
	if len(customerByExtId) == 0 {
		return map[int]*models.LatestHandling{}, nil
	}
	customerIds := make([]int, 0, len(customerByExtId))
	for _, c := range customerByExtId {
		customerIds = append(customerIds, c.ID)
	}
	return resolver.LatestHandlingByCustomerIds(ctx, customerIds)
}

func matchesSearch(row *AccountRow, enr Enrichment, needle string, digits string) bool {
	if needle == "" {
		return true
	}

	textFields := []string{
		row.ExternalId,
		row.AccountKey,
		row.AccountName,
		enr.AccountName,
		enr.ContactName,
		enr.Email,
	}
	for _, f := range textFields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}

	if digits != "" {
		for _, f := range []string{enr.Phone, enr.MobilePhone} {
			if f != "" && strings.Contains(utils.DigitsOnly(f), digits) {
				return true
			}
		}
	}
	return false
}

func matchesBalanceMode(row *AccountRow, mode string) bool {
	switch mode {
	case BalanceModeNonZero:
		return !row.AccountBalance.IsZero()
	case BalanceModeZero:
		return row.AccountBalance.IsZero()
	default:
		return true
	}
}

func pageSlice(rows []matchedRow, offset int, limit int) []matchedRow {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func buildRow(m matchedRow, id int, customerByExtId map[string]*models.Customer, handlingByCustId map[int]*models.LatestHandling) *EnrichedRow {
	r := &EnrichedRow{
		Id:                id,
		ExternalId:        m.row.ExternalId,
		AccountCardNumber: m.row.AccountCardNumber,
		AccountKey:        m.row.AccountKey,
		AccountName:       m.enr.AccountName,
		ContactName:       m.enr.ContactName,
		Email:             m.enr.Email,
		Phone:             m.enr.Phone,
		MobilePhone:       m.enr.MobilePhone,
		AccountBalance:    m.row.AccountBalance,
		DeferredChecks:    m.row.DeferredChecks,
		OpenDeliveryNotes: m.row.OpenDeliveryNotes,
		TotalObligo:       m.row.TotalObligo,
		TotalCredit:       m.row.TotalCredit,
		CreditLimit:       m.row.CreditLimit,
		CreditDeviation:   m.row.CreditDeviation,
		ObligoLimit:       m.row.ObligoLimit,
		ObligoDeviation:   m.row.ObligoDeviation,
	}
	if customer, ok := customerByExtId[m.row.ExternalId]; ok {
		id := customer.ID
		r.CustomerId = &id
		r.Handling = handlingByCustId[customer.ID]
	}
	return r
}

func newResult(rows []*EnrichedRow, total int, params QueryParams) *QueryResult {
	totalPages := (total + params.Limit - 1) / params.Limit
	if totalPages < 1 {
		totalPages = 1
	}
	return &QueryResult{
		Rows:       rows,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}
}

package wizsync

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReportKind identifies one of the upstream report endpoints.
type ReportKind string

const (
	ReportBalances  ReportKind = "balances"  // primary account/balance report
	ReportCustomers ReportKind = "customers" // contact-info report A (bulk export)
	ReportContacts  ReportKind = "contacts"  // contact-info report B (curated)
	ReportLedger    ReportKind = "ledger"    // per-account transaction ledger
)

// AccountRow is the canonical record mapped from one primary report row.
// ExternalId is never empty and is the join key into the local customers
// table. Money fields default to zero when the upstream value is missing or
// unparsable.
type AccountRow struct {
	ExternalId        string          `json:"external_id"`
	AccountCardNumber int64           `json:"account_card_number,omitempty"`
	AccountKey        string          `json:"account_key,omitempty"`
	AccountName       string          `json:"account_name,omitempty"`
	AccountBalance    decimal.Decimal `json:"account_balance"`
	DeferredChecks    decimal.Decimal `json:"deferred_checks"`
	OpenDeliveryNotes decimal.Decimal `json:"open_delivery_notes_balance"`
	TotalObligo       decimal.Decimal `json:"total_obligo"`
	TotalCredit       decimal.Decimal `json:"total_credit"`
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	CreditDeviation   decimal.Decimal `json:"credit_deviation"`
	ObligoLimit       decimal.Decimal `json:"obligo_limit"`
	ObligoDeviation   decimal.Decimal `json:"obligo_deviation"`

	// Raw keeps the serialized original row for audit and fallback.
	Raw json.RawMessage `json:"raw_payload,omitempty"`
}

// ContactRow is a row of either contact-info report. Rows carrying neither
// external id nor account key are dropped by the mappers (not indexable).
type ContactRow struct {
	ExternalId  string `json:"external_id,omitempty"`
	AccountKey  string `json:"account_key,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	MobilePhone string `json:"mobile_phone,omitempty"`
}

// LedgerRow is one movement from the per-account ledger report. Values are
// passed through loosely (amounts may arrive as formatted strings); no
// coercion beyond the mapper defaults is imposed.
type LedgerRow struct {
	Title              string `json:"title,omitempty"`
	Movement           string `json:"movement,omitempty"`
	Batch              string `json:"batch,omitempty"`
	EntryType          string `json:"entry_type,omitempty"`
	AccountKey         string `json:"account_key,omitempty"`
	AccountName        string `json:"account_name,omitempty"`
	CounterAccount     string `json:"counter_account,omitempty"`
	CounterAccountName string `json:"counter_account_name,omitempty"`
	Date               string `json:"date,omitempty"`
	ValueDate          string `json:"value_date,omitempty"`
	DueDate            string `json:"due_date,omitempty"`
	Reference          string `json:"reference,omitempty"`
	Reference2         string `json:"reference_2,omitempty"`
	Details            string `json:"details,omitempty"`
	Debit              string `json:"debit,omitempty"`
	Credit             string `json:"credit,omitempty"`
	Balance            string `json:"balance,omitempty"`
	InventoryId        string `json:"inventory_id,omitempty"`
}

// Enrichment is the per-row merged contact view built by the joiner from
// the two contact caches plus the primary row's own (weaker) name field.
type Enrichment struct {
	AccountName string `json:"account_name,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	MobilePhone string `json:"mobile_phone,omitempty"`
}

// CacheSyncedAt reports each cache's last successful sync time (null until
// the first sync lands).
type CacheSyncedAt struct {
	Balances  *time.Time `json:"balances"`
	Customers *time.Time `json:"customers"`
	Contacts  *time.Time `json:"contacts"`
}

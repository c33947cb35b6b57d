package wizsync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Upstream column labels arrive either as UTF-8 Hebrew or as the same
// cp1255 bytes misread as cp1252 (the garbled variants below), depending on
// which export path produced the report. Some endpoints additionally emit
// an English alias. Each canonical field therefore resolves against an
// ordered list of acceptable spellings, first present wins.
var (
	keysAccountCardNumber = []string{"מס' כרטיס חשבון", "îñ' ëøèéñ çùáåï", "AccountCardNum"}
	keysAccountKey        = []string{"מפתח חשבון", "îôúç çùáåï", "חשבון", "çùáåï", "AccountKey"}
	keysAccountName       = []string{"שם חשבון", "ùí çùáåï", "AccountName"}
	keysAccountBalance    = []string{"יתרת חשבון", "éúøú çùáåï", "Balance"}
	keysDeferredChecks    = []string{"שיקים דחויים", "ùé÷éí ãçåééí"}
	keysOpenDeliveryNotes = []string{"יתרת תעודות משלוח", "éúøú úòåãåú îùìåç"}
	keysTotalObligo       = []string{"סה\"כ אובליגו", "ñä\"ë àåáìéâå"}
	keysTotalCredit       = []string{"סה\"כ זכות", "ñä\"ë æëåú"}
	keysCreditLimit       = []string{"תקרת אשראי", "ú÷øú àùøàé"}
	keysCreditDeviation   = []string{"חריגה מאשראי", "çøéâä îàùøàé"}
	keysObligoLimit       = []string{"תקרת אובליגו", "ú÷øú àåáìéâå"}
	keysObligoDeviation   = []string{"חריגה מאובליגו", "çøéâä îàåáìéâå"}

	keysContactName  = []string{"איש קשר", "àéù ÷ùø", "ContactName"}
	keysCustomerName = []string{"שם לקוח", "ùí ì÷åç", "CustName"}
	keysEmail        = []string{"דוא\"ל", "ãåà\"ì", "E-Mail", "Email"}
	keysPhone        = []string{"טלפון", "èìôåï", "טלפון 1", "èìôåï 1", "Phone"}
	keysMobile       = []string{"טלפון נייד", "èìôåï ðééã", "נייד", "ðééã", "Mobile"}

	keysLedgerTitle          = []string{"כותרת", "ëåúøú"}
	keysLedgerMovement       = []string{"תנועה", "úðåòä"}
	keysLedgerBatch          = []string{"מנה", "îðä"}
	keysLedgerEntryType      = []string{"סוג תנועה", "ñåâ úðåòä"}
	keysLedgerCounterAcct    = []string{"חשבון נגדי", "çùáåï ðâãé"}
	keysLedgerCounterName    = []string{"שם חשבון נגדי", "ùí çùáåï ðâãé"}
	keysLedgerDate           = []string{"תאריך", "úàøéê"}
	keysLedgerValueDate      = []string{"תאריך ערך", "úàøéê òøê"}
	keysLedgerDueDate        = []string{"תאריך 3", "úàøéê 3"}
	keysLedgerReference      = []string{"אסמכתא", "àñîëúà"}
	keysLedgerReference2     = []string{"אסמכתא 2", "àñîëúà 2"}
	keysLedgerDetails        = []string{"פרטים", "ôøèéí"}
	keysLedgerDebit          = []string{"חובה", "çåáä"}
	keysLedgerCredit         = []string{"זכות", "æëåú"}
	keysLedgerBalance        = []string{"יתרה", "éúøä"}
	keysLedgerInventoryId    = []string{"מזהה מלאי", "îæää îìàé"}
)

func lookupField(row map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func fieldString(row map[string]any, keys []string) string {
	v, ok := lookupField(row, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// fieldDecimal parses a money-like value. Upstream numeric formatting is
// untrusted: thousands separators are stripped, and anything unparsable
// degrades to zero instead of failing the row.
func fieldDecimal(row map[string]any, keys []string) decimal.Decimal {
	v, ok := lookupField(row, keys)
	if !ok {
		return decimal.Zero
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// fieldPositiveInt returns the value as a positive integer, or 0 when the
// value is absent, non-numeric, zero or negative.
func fieldPositiveInt(row map[string]any, keys []string) int64 {
	d := fieldDecimal(row, keys)
	if !d.IsInteger() {
		d = d.Truncate(0)
	}
	n := d.IntPart()
	if n <= 0 {
		return 0
	}
	return n
}

// Shape predicates used by the extractor to recognize data rows of each
// report among decoy arrays.

func balancesRowShape(row map[string]any) bool {
	if _, ok := lookupField(row, keysAccountCardNumber); ok {
		return true
	}
	if _, ok := lookupField(row, keysAccountKey); ok {
		return true
	}
	_, ok := lookupField(row, keysAccountBalance)
	return ok
}

func customersRowShape(row map[string]any) bool {
	if _, ok := lookupField(row, keysAccountKey); ok {
		return true
	}
	_, ok := lookupField(row, keysAccountCardNumber)
	return ok
}

func contactsRowShape(row map[string]any) bool {
	if _, ok := lookupField(row, keysAccountKey); ok {
		return true
	}
	_, ok := lookupField(row, keysCustomerName)
	return ok
}

func ledgerRowShape(row map[string]any) bool {
	if _, ok := lookupField(row, keysLedgerMovement); ok {
		return true
	}
	_, ok := lookupField(row, keysLedgerBatch)
	return ok
}

func detailRowShape(row map[string]any) bool {
	return balancesRowShape(row)
}

// mapAccountRow maps one raw primary-report row to its canonical record.
// external_id precedence: positive account-card-number, stringified; then
// non-empty account key; then a content hash of the raw row, so distinct
// rows never collide unless byte-identical.
func mapAccountRow(row map[string]any) *AccountRow {
	r := &AccountRow{
		AccountCardNumber: fieldPositiveInt(row, keysAccountCardNumber),
		AccountKey:        fieldString(row, keysAccountKey),
		AccountName:       fieldString(row, keysAccountName),
		AccountBalance:    fieldDecimal(row, keysAccountBalance),
		DeferredChecks:    fieldDecimal(row, keysDeferredChecks),
		OpenDeliveryNotes: fieldDecimal(row, keysOpenDeliveryNotes),
		TotalObligo:       fieldDecimal(row, keysTotalObligo),
		TotalCredit:       fieldDecimal(row, keysTotalCredit),
		CreditLimit:       fieldDecimal(row, keysCreditLimit),
		CreditDeviation:   fieldDecimal(row, keysCreditDeviation),
		ObligoLimit:       fieldDecimal(row, keysObligoLimit),
		ObligoDeviation:   fieldDecimal(row, keysObligoDeviation),
	}

	switch {
	case r.AccountCardNumber > 0:
		r.ExternalId = strconv.FormatInt(r.AccountCardNumber, 10)
	case r.AccountKey != "":
		r.ExternalId = r.AccountKey
	default:
		r.ExternalId = hashRowId(row)
	}

	if raw, err := json.Marshal(row); err == nil {
		r.Raw = raw
	}
	return r
}

// mapDetailRow maps a basic detail report row. The detail report is a
// single-account variant of the primary layout; it shares the canonical
// record and the identity derivation.
func mapDetailRow(row map[string]any) *AccountRow {
	return mapAccountRow(row)
}

// mapCustomersRow maps a row of contact-info report A (the bulk customers
// export). Returns nil for rows indexable by neither identity key.
func mapCustomersRow(row map[string]any) *ContactRow {
	c := &ContactRow{
		AccountKey:  fieldString(row, keysAccountKey),
		AccountName: fieldString(row, keysAccountName),
		ContactName: fieldString(row, keysContactName),
		Email:       fieldString(row, keysEmail),
		Phone:       fieldString(row, keysPhone),
		MobilePhone: fieldString(row, keysMobile),
	}
	if n := fieldPositiveInt(row, keysAccountCardNumber); n > 0 {
		c.ExternalId = strconv.FormatInt(n, 10)
	}
	if c.ExternalId == "" && c.AccountKey == "" {
		return nil
	}
	return c
}

// mapContactsRow maps a row of contact-info report B (the curated contacts
// list, the most authoritative contact source). Same drop rule as A.
func mapContactsRow(row map[string]any) *ContactRow {
	c := &ContactRow{
		AccountKey:  fieldString(row, keysAccountKey),
		AccountName: fieldString(row, keysCustomerName),
		ContactName: fieldString(row, keysContactName),
		Email:       fieldString(row, keysEmail),
		Phone:       fieldString(row, keysPhone),
		MobilePhone: fieldString(row, keysMobile),
	}
	if n := fieldPositiveInt(row, keysAccountCardNumber); n > 0 {
		c.ExternalId = strconv.FormatInt(n, 10)
	}
	if c.ExternalId == "" && c.AccountKey == "" {
		return nil
	}
	return c
}

func mapLedgerRow(row map[string]any) *LedgerRow {
	return &LedgerRow{
		Title:              fieldString(row, keysLedgerTitle),
		Movement:           fieldString(row, keysLedgerMovement),
		Batch:              fieldString(row, keysLedgerBatch),
		EntryType:          fieldString(row, keysLedgerEntryType),
		AccountKey:         fieldString(row, keysAccountKey),
		AccountName:        fieldString(row, keysAccountName),
		CounterAccount:     fieldString(row, keysLedgerCounterAcct),
		CounterAccountName: fieldString(row, keysLedgerCounterName),
		Date:               fieldString(row, keysLedgerDate),
		ValueDate:          fieldString(row, keysLedgerValueDate),
		DueDate:            fieldString(row, keysLedgerDueDate),
		Reference:          fieldString(row, keysLedgerReference),
		Reference2:         fieldString(row, keysLedgerReference2),
		Details:            fieldString(row, keysLedgerDetails),
		Debit:              fieldString(row, keysLedgerDebit),
		Credit:             fieldString(row, keysLedgerCredit),
		Balance:            fieldString(row, keysLedgerBalance),
		InventoryId:        fieldString(row, keysLedgerInventoryId),
	}
}

// hashRowId derives a stable identity for rows that carry neither an
// account card number nor an account key. encoding/json sorts map keys, so
// the hash is deterministic for a given row content.
func hashRowId(row map[string]any) string {
	b, _ := json.Marshal(row)
	sum := sha256.Sum256(b)
	return "row-" + hex.EncodeToString(sum[:8])
}

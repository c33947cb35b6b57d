package wizsync

import (
	"strings"
	"testing"
)

func TestMapAccountRow_CardNumberWins(t *testing.T) {
	row := map[string]any{
		"AccountCardNum": 501.0,
		"AccountKey":     "K501",
		"AccountName":    "Acme Ltd",
		"Balance":        "1,250.00",
	}
	r := mapAccountRow(row)
	if r.ExternalId != "501" {
		t.Fatalf("expected external id 501, got %q", r.ExternalId)
	}
	if r.AccountCardNumber != 501 {
		t.Fatalf("expected card number 501, got %d", r.AccountCardNumber)
	}
	if r.AccountBalance.String() != "1250" {
		t.Fatalf("expected balance 1250, got %s", r.AccountBalance.String())
	}
	if len(r.Raw) == 0 {
		t.Fatal("expected raw payload to be preserved")
	}
}

func TestMapAccountRow_AccountKeyFallback(t *testing.T) {
	row := map[string]any{
		"AccountCardNum": 0.0,
		"AccountKey":     "K900",
		"Balance":        "",
	}
	r := mapAccountRow(row)
	if r.ExternalId != "K900" {
		t.Fatalf("expected external id K900, got %q", r.ExternalId)
	}
	if !r.AccountBalance.IsZero() {
		t.Fatalf("expected zero balance for empty string, got %s", r.AccountBalance.String())
	}
}

func TestMapAccountRow_HashFallbackIsStable(t *testing.T) {
	row := map[string]any{"AccountName": "Nameless", "Balance": "7.5"}
	a := mapAccountRow(row)
	b := mapAccountRow(row)
	if !strings.HasPrefix(a.ExternalId, "row-") {
		t.Fatalf("expected hash-derived id, got %q", a.ExternalId)
	}
	if a.ExternalId != b.ExternalId {
		t.Fatalf("hash id not stable: %q vs %q", a.ExternalId, b.ExternalId)
	}

	other := mapAccountRow(map[string]any{"AccountName": "Different", "Balance": "7.5"})
	if other.ExternalId == a.ExternalId {
		t.Fatal("distinct rows must not share a hash id")
	}
}

func TestMapAccountRow_GarbledHebrewKeys(t *testing.T) {
	// Same report exported through the legacy path arrives with cp1255
	// labels misread as cp1252.
	row := map[string]any{
		"îôúç çùáåï": "K42",
		"ùí çùáåï":   "çáøä áò\"î",
		"éúøú çùáåï": "3,000.10",
	}
	r := mapAccountRow(row)
	if r.AccountKey != "K42" {
		t.Fatalf("expected account key K42, got %q", r.AccountKey)
	}
	if r.ExternalId != "K42" {
		t.Fatalf("expected external id K42, got %q", r.ExternalId)
	}
	if r.AccountBalance.String() != "3000.1" {
		t.Fatalf("expected balance 3000.1, got %s", r.AccountBalance.String())
	}
}

func TestMapAccountRow_UnparsableMoneyDegradesToZero(t *testing.T) {
	row := map[string]any{
		"AccountKey":   "K1",
		"Balance":      "N/A",
		"סה\"כ אובליגו": "12,000",
	}
	r := mapAccountRow(row)
	if !r.AccountBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", r.AccountBalance.String())
	}
	if r.TotalObligo.String() != "12000" {
		t.Fatalf("expected obligo 12000, got %s", r.TotalObligo.String())
	}
}

func TestMapContactRows_DropWhenNotIndexable(t *testing.T) {
	row := map[string]any{
		"איש קשר": "Dana",
		"טלפון":   "03-1234567",
	}
	if c := mapCustomersRow(row); c != nil {
		t.Fatalf("expected nil for non-indexable customers row, got %+v", c)
	}
	if c := mapContactsRow(row); c != nil {
		t.Fatalf("expected nil for non-indexable contacts row, got %+v", c)
	}
}

func TestMapContactsRow_UsesCustomerNameLabel(t *testing.T) {
	row := map[string]any{
		"AccountCardNum": 77.0,
		"שם לקוח":        "Best Customer",
		"איש קשר":        "Yossi",
		"טלפון נייד":     "050-123-4567",
	}
	c := mapContactsRow(row)
	if c == nil {
		t.Fatal("expected a mapped row")
	}
	if c.ExternalId != "77" {
		t.Fatalf("expected external id 77, got %q", c.ExternalId)
	}
	if c.AccountName != "Best Customer" {
		t.Fatalf("expected account name from customer-name label, got %q", c.AccountName)
	}
	if c.MobilePhone != "050-123-4567" {
		t.Fatalf("unexpected mobile %q", c.MobilePhone)
	}
}

func TestMapLedgerRow_PassThroughStrings(t *testing.T) {
	row := map[string]any{
		"תנועה":  "1001",
		"חובה":   "1,000.00",
		"זכות":   "",
		"יתרה":   "-250.50",
		"אסמכתא": 4512.0,
	}
	l := mapLedgerRow(row)
	if l.Movement != "1001" {
		t.Fatalf("expected movement 1001, got %q", l.Movement)
	}
	if l.Debit != "1,000.00" {
		t.Fatalf("debit must pass through unparsed, got %q", l.Debit)
	}
	if l.Reference != "4512" {
		t.Fatalf("numeric reference should stringify, got %q", l.Reference)
	}
}

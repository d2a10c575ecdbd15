package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeInvoiceTotalsNoDiscount(t *testing.T) {
	items := []InvoiceItem{
		{Quantity: decimal.NewFromInt(2), UnitRate: decimal.NewFromInt(500), GstRate: decimal.NewFromInt(18)},
	}
	subtotal, gst, total, lines := computeInvoiceTotals(items, decimal.Zero)
	if !subtotal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("subtotal = %s, want 1000", subtotal)
	}
	if !gst.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("gst = %s, want 180", gst)
	}
	if !total.Equal(decimal.NewFromInt(1180)) {
		t.Fatalf("total = %s, want 1180", total)
	}
	if len(lines) != 1 || !lines[0].Gst.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("line gst wrong: %+v", lines)
	}
}

func TestComputeInvoiceTotalsWithDiscount(t *testing.T) {
	items := []InvoiceItem{
		{Quantity: decimal.NewFromInt(2), UnitRate: decimal.NewFromInt(500), GstRate: decimal.NewFromInt(18)},
	}
	_, _, total, _ := computeInvoiceTotals(items, decimal.NewFromInt(100))
	if !total.Equal(decimal.NewFromInt(1080)) {
		t.Fatalf("total = %s, want 1080", total)
	}
}

func TestComputeInvoiceTotalsDiscountClampsAtZero(t *testing.T) {
	items := []InvoiceItem{
		{Quantity: decimal.NewFromInt(1), UnitRate: decimal.NewFromInt(10), GstRate: decimal.Zero},
	}
	_, _, total, _ := computeInvoiceTotals(items, decimal.NewFromInt(50))
	if !total.IsZero() {
		t.Fatalf("total = %s, want 0", total)
	}
}

func TestComputeInvoiceTotalsRoundsGstPerLine(t *testing.T) {
	// Two lines each with fractional tax: per-line rounding means the sum of
	// rounded lines, not the rounded sum of raw lines.
	items := []InvoiceItem{
		{Quantity: decimal.NewFromInt(1), UnitRate: decimal.RequireFromString("33.33"), GstRate: decimal.NewFromInt(18)},
		{Quantity: decimal.NewFromInt(1), UnitRate: decimal.RequireFromString("33.33"), GstRate: decimal.NewFromInt(18)},
	}
	_, gst, _, lines := computeInvoiceTotals(items, decimal.Zero)
	// 33.33 * 18% = 5.9994 -> 6.00 per line
	want := decimal.NewFromInt(12)
	if !gst.Equal(want) {
		t.Fatalf("gst = %s, want %s", gst, want)
	}
	for i, line := range lines {
		if !line.Gst.Equal(decimal.NewFromInt(6)) {
			t.Fatalf("line %d gst = %s, want 6.00", i, line.Gst)
		}
	}
}

func entryAmount(entries []NewLedgerEntry, account string) (debit, credit decimal.Decimal, found bool) {
	for _, e := range entries {
		if e.AccountName == account {
			return e.Debit, e.Credit, true
		}
	}
	return decimal.Zero, decimal.Zero, false
}

func TestIssueEntriesBalance(t *testing.T) {
	entries := buildIssuanceEntries(decimal.NewFromInt(1000), decimal.NewFromInt(180), decimal.NewFromInt(1180))
	asLedger := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		asLedger = append(asLedger, LedgerEntry{AccountName: e.AccountName, Debit: e.Debit, Credit: e.Credit})
	}
	if err := validateLedgerEntries(asLedger); err != nil {
		t.Fatalf("issuance entries imbalanced: %v", err)
	}
	debit, _, ok := entryAmount(entries, AccountAccountsReceivable)
	if !ok || !debit.Equal(decimal.NewFromInt(1180)) {
		t.Fatalf("receivable debit = %s, want 1180", debit)
	}
	if _, _, ok := entryAmount(entries, AccountDiscountsAllowed); ok {
		t.Fatal("unexpected discount entry on undiscounted invoice")
	}
}

func TestIssueEntriesWithDiscount(t *testing.T) {
	// Discounted invoice: the receivable carries the discounted total, the
	// discount posts as its own expense debit, and sales/GST keep the
	// pre-discount amounts.
	entries := buildIssuanceEntries(decimal.NewFromInt(1000), decimal.NewFromInt(180), decimal.NewFromInt(1080))

	debit, _, ok := entryAmount(entries, AccountAccountsReceivable)
	if !ok || !debit.Equal(decimal.NewFromInt(1080)) {
		t.Fatalf("receivable debit = %s, want 1080", debit)
	}
	debit, _, ok = entryAmount(entries, AccountDiscountsAllowed)
	if !ok || !debit.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("discount debit = %s, want 100", debit)
	}
	_, credit, ok := entryAmount(entries, AccountSales)
	if !ok || !credit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("sales credit = %s, want 1000", credit)
	}
	_, credit, ok = entryAmount(entries, AccountGstOutput)
	if !ok || !credit.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("gst credit = %s, want 180", credit)
	}

	asLedger := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		asLedger = append(asLedger, LedgerEntry{AccountName: e.AccountName, Debit: e.Debit, Credit: e.Credit})
	}
	if err := validateLedgerEntries(asLedger); err != nil {
		t.Fatalf("discounted issuance entries imbalanced: %v", err)
	}
}

func TestIssueEntriesFullyDiscounted(t *testing.T) {
	// Total clamped to zero: no receivable leg, the whole gross posts as
	// discount, still balanced.
	entries := buildIssuanceEntries(decimal.NewFromInt(10), decimal.Zero, decimal.Zero)
	if _, _, ok := entryAmount(entries, AccountAccountsReceivable); ok {
		t.Fatal("unexpected receivable entry on zero-total invoice")
	}
	debit, _, ok := entryAmount(entries, AccountDiscountsAllowed)
	if !ok || !debit.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("discount debit = %s, want 10", debit)
	}
	asLedger := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		asLedger = append(asLedger, LedgerEntry{AccountName: e.AccountName, Debit: e.Debit, Credit: e.Credit})
	}
	if err := validateLedgerEntries(asLedger); err != nil {
		t.Fatalf("fully discounted entries imbalanced: %v", err)
	}
}

package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComputeLineGstExclusive(t *testing.T) {
	// 2 x 500.00 @ 18% = 180.00
	got := ComputeLineGst(decimal.NewFromInt(2), decimal.NewFromInt(500), decimal.NewFromInt(18), false)
	if !got.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("gst = %s, want 180", got)
	}
}

func TestComputeLineGstInclusive(t *testing.T) {
	// 118.00 inclusive @ 18% -> base 100.00 -> gst 18.00
	got := ComputeLineGst(decimal.NewFromInt(1), decimal.NewFromInt(118), decimal.NewFromInt(18), true)
	if !got.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("gst = %s, want 18", got)
	}
}

func TestComputeLineGstRoundsPerLine(t *testing.T) {
	// 3 x 33.33 @ 18% = 17.9982 -> 18.00
	got := ComputeLineGst(decimal.NewFromInt(3), decimal.RequireFromString("33.33"), decimal.NewFromInt(18), false)
	if !got.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("gst = %s, want 18.00", got)
	}
}

func TestComputeLineGstRoundsOnce(t *testing.T) {
	// 1 x 20.099 @ 5% = 1.00495 exactly -> 1.00. A pre-round at 4 decimals
	// would see 1.0050 and land on 1.01.
	got := ComputeLineGst(decimal.NewFromInt(1), decimal.RequireFromString("20.099"), decimal.NewFromInt(5), false)
	if !got.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("gst = %s, want 1.00", got)
	}
}

func TestTaxExclusiveUnitPrice(t *testing.T) {
	got := TaxExclusiveUnitPrice(decimal.NewFromInt(118), decimal.NewFromInt(18))
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("exclusive price = %s, want 100", got)
	}
	// Zero rate passes through unchanged.
	got = TaxExclusiveUnitPrice(decimal.NewFromInt(50), decimal.Zero)
	if !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("exclusive price = %s, want 50", got)
	}
}

func TestTaxPeriodOf(t *testing.T) {
	date := time.Date(2026, time.March, 7, 13, 0, 0, 0, time.UTC)
	if got := TaxPeriodOf(date); got != "2026-03" {
		t.Fatalf("period = %q, want 2026-03", got)
	}
}

func TestClassifyGstIntraStateSplitsHalves(t *testing.T) {
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	records := ClassifyGst("biz-1", SourceTypeInvoice, 7, GstDirectionOutput, date, decimal.RequireFromString("180.00"), false)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].GstType != GstTypeCgst || records[1].GstType != GstTypeSgst {
		t.Fatalf("wrong types: %s / %s", records[0].GstType, records[1].GstType)
	}
	ninety := decimal.NewFromInt(90)
	if !records[0].Amount.Equal(ninety) || !records[1].Amount.Equal(ninety) {
		t.Fatalf("halves = %s / %s, want 90 / 90", records[0].Amount, records[1].Amount)
	}
	for _, r := range records {
		if r.TaxPeriod != "2026-01" {
			t.Fatalf("period = %q, want 2026-01", r.TaxPeriod)
		}
	}
}

func TestClassifyGstOddAmountHalvesSumExactly(t *testing.T) {
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("18.01")
	records := ClassifyGst("biz-1", SourceTypeInvoice, 7, GstDirectionOutput, date, amount, false)
	sum := records[0].Amount.Add(records[1].Amount)
	if !sum.Equal(amount) {
		t.Fatalf("halves sum to %s, want %s", sum, amount)
	}
}

func TestClassifyGstInterStateSingleIgst(t *testing.T) {
	date := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	records := ClassifyGst("biz-1", SourceTypeInvoice, 7, GstDirectionOutput, date, decimal.NewFromInt(180), true)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].GstType != GstTypeIgst {
		t.Fatalf("type = %s, want IGST", records[0].GstType)
	}
	if !records[0].Amount.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("amount = %s, want 180", records[0].Amount)
	}
}

func TestClassifyGstNegativeOffsets(t *testing.T) {
	date := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	records := ClassifyGst("biz-1", SourceTypeReversal, 7, GstDirectionOutput, date, decimal.RequireFromString("-18.01"), false)
	sum := records[0].Amount.Add(records[1].Amount)
	if !sum.Equal(decimal.RequireFromString("-18.01")) {
		t.Fatalf("offset halves sum to %s, want -18.01", sum)
	}
}

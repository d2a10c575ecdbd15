package models

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/utils"
)

func TestValidateLedgerEntriesBalanced(t *testing.T) {
	entries := []LedgerEntry{
		{AccountName: AccountAccountsReceivable, Debit: decimal.NewFromFloat(1180)},
		{AccountName: AccountSales, Credit: decimal.NewFromFloat(1000)},
		{AccountName: AccountGstOutput, Credit: decimal.NewFromFloat(180)},
	}
	if err := validateLedgerEntries(entries); err != nil {
		t.Fatalf("balanced entries rejected: %v", err)
	}
}

func TestValidateLedgerEntriesImbalanced(t *testing.T) {
	entries := []LedgerEntry{
		{AccountName: AccountAccountsReceivable, Debit: decimal.NewFromFloat(1180)},
		{AccountName: AccountSales, Credit: decimal.NewFromFloat(1000)},
	}
	err := validateLedgerEntries(entries)
	var imbalanced *utils.ImbalancedTransactionError
	if !errors.As(err, &imbalanced) {
		t.Fatalf("want ImbalancedTransactionError, got %v", err)
	}
	if !imbalanced.TotalDebit.Equal(decimal.NewFromFloat(1180)) {
		t.Fatalf("wrong debit total in error: %s", imbalanced.TotalDebit)
	}
	if !imbalanced.TotalCredit.Equal(decimal.NewFromFloat(1000)) {
		t.Fatalf("wrong credit total in error: %s", imbalanced.TotalCredit)
	}
}

func TestValidateLedgerEntriesRejectsBadRows(t *testing.T) {
	cases := []struct {
		name    string
		entries []LedgerEntry
	}{
		{"empty set", nil},
		{"missing account", []LedgerEntry{
			{Debit: decimal.NewFromInt(10)},
			{AccountName: AccountSales, Credit: decimal.NewFromInt(10)},
		}},
		{"negative amount", []LedgerEntry{
			{AccountName: AccountCash, Debit: decimal.NewFromInt(-10)},
			{AccountName: AccountSales, Credit: decimal.NewFromInt(-10)},
		}},
		{"both sides set", []LedgerEntry{
			{AccountName: AccountCash, Debit: decimal.NewFromInt(10), Credit: decimal.NewFromInt(10)},
			{AccountName: AccountSales, Credit: decimal.NewFromInt(0)},
		}},
		{"both sides zero", []LedgerEntry{
			{AccountName: AccountCash},
			{AccountName: AccountSales},
		}},
	}
	for _, tc := range cases {
		if err := validateLedgerEntries(tc.entries); err == nil {
			t.Errorf("%s: want error, got nil", tc.name)
		}
	}
}

// Randomized check: any entry set built as debit/credit pairs of the same
// amounts must validate, and perturbing one side must not.
func TestValidateLedgerEntriesPairedRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		entries := make([]LedgerEntry, 0, 2*n)
		for j := 0; j < n; j++ {
			amount := decimal.NewFromInt(int64(1 + rng.Intn(100000))).Div(decimal.NewFromInt(100))
			entries = append(entries,
				LedgerEntry{AccountName: AccountCash, Debit: amount},
				LedgerEntry{AccountName: AccountSales, Credit: amount},
			)
		}
		if err := validateLedgerEntries(entries); err != nil {
			t.Fatalf("iteration %d: paired entries rejected: %v", i, err)
		}

		perturbed := make([]LedgerEntry, len(entries))
		copy(perturbed, entries)
		perturbed[0].Debit = perturbed[0].Debit.Add(decimal.NewFromFloat(0.02))
		var imbalanced *utils.ImbalancedTransactionError
		if err := validateLedgerEntries(perturbed); !errors.As(err, &imbalanced) {
			t.Fatalf("iteration %d: perturbed entries accepted", i)
		}
	}
}

func TestConventionalBalanceSigns(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	forty := decimal.NewFromInt(40)

	// Debit-normal account reads positive when debits exceed credits.
	got := conventionalBalance(AccountCash, hundred, forty)
	if !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("cash balance = %s, want 60", got)
	}
	// Credit-normal account reads positive the other way round.
	got = conventionalBalance(AccountSales, forty, hundred)
	if !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("sales balance = %s, want 60", got)
	}
	got = conventionalBalance(AccountAccountsPayable, hundred, forty)
	if !got.Equal(decimal.NewFromInt(-60)) {
		t.Fatalf("payable balance = %s, want -60", got)
	}
}

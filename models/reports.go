package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

// Report figures are always aggregated from ledger entries at read time.
// Nothing here is cached or denormalized, so a balanced ledger is the only
// source of truth.

func TotalRevenue(ctx context.Context, asOfDate *time.Time) (decimal.Decimal, error) {
	return AccountBalance(ctx, AccountSales, asOfDate)
}

func TotalExpenses(ctx context.Context, asOfDate *time.Time) (decimal.Decimal, error) {
	expenses, err := AccountBalance(ctx, AccountGeneralExpenses, asOfDate)
	if err != nil {
		return decimal.Zero, err
	}
	cogs, err := AccountBalance(ctx, AccountCostOfGoodsSold, asOfDate)
	if err != nil {
		return decimal.Zero, err
	}
	discounts, err := AccountBalance(ctx, AccountDiscountsAllowed, asOfDate)
	if err != nil {
		return decimal.Zero, err
	}
	return expenses.Add(cogs).Add(discounts), nil
}

func NetProfit(ctx context.Context, asOfDate *time.Time) (decimal.Decimal, error) {
	revenue, err := TotalRevenue(ctx, asOfDate)
	if err != nil {
		return decimal.Zero, err
	}
	expenses, err := TotalExpenses(ctx, asOfDate)
	if err != nil {
		return decimal.Zero, err
	}
	return revenue.Sub(expenses), nil
}

func AccountsReceivableBalance(ctx context.Context, asOfDate *time.Time) (decimal.Decimal, error) {
	return AccountBalance(ctx, AccountAccountsReceivable, asOfDate)
}

func AccountsPayableBalance(ctx context.Context, asOfDate *time.Time) (decimal.Decimal, error) {
	return AccountBalance(ctx, AccountAccountsPayable, asOfDate)
}

// OverdueInvoices lists issued invoices whose due date has passed as of the
// given date.
func OverdueInvoices(ctx context.Context, asOf time.Time) ([]*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*Invoice
	if err := db.WithContext(ctx).
		Where("business_id = ? AND current_status = ? AND due_date < ?", businessId, InvoiceStatusIssued, asOf).
		Order("due_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type BalanceSheetLine struct {
	AccountName string          `json:"account_name"`
	Balance     decimal.Decimal `json:"balance"`
}

type BalanceSheet struct {
	AsOf             time.Time          `json:"as_of"`
	Assets           []BalanceSheetLine `json:"assets"`
	Liabilities      []BalanceSheetLine `json:"liabilities"`
	Equity           []BalanceSheetLine `json:"equity"`
	TotalAssets      decimal.Decimal    `json:"total_assets"`
	TotalLiabilities decimal.Decimal    `json:"total_liabilities"`
	TotalEquity      decimal.Decimal    `json:"total_equity"`
	// RetainedEarnings folds income and expense accounts into equity so the
	// statement balances without a period close.
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
}

// GetBalanceSheet aggregates every posted account into its class as of a
// date. P&L accounts roll into retained earnings under equity, so total
// assets always equal liabilities plus equity.
func GetBalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	type accountRow struct {
		AccountName string
		TotalDebit  decimal.Decimal
		TotalCredit decimal.Decimal
	}
	db := config.GetDB()
	var rows []accountRow
	if err := db.WithContext(ctx).Model(&LedgerEntry{}).
		Select("ledger_entries.account_name, SUM(ledger_entries.debit) AS total_debit, SUM(ledger_entries.credit) AS total_credit").
		Joins("JOIN transactions ON transactions.id = ledger_entries.transaction_id").
		Where("transactions.business_id = ? AND transactions.transaction_date <= ?", businessId, asOf).
		Group("ledger_entries.account_name").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	sheet := BalanceSheet{AsOf: asOf}
	for _, row := range rows {
		balance := conventionalBalance(row.AccountName, row.TotalDebit, row.TotalCredit)
		if balance.IsZero() {
			continue
		}
		line := BalanceSheetLine{AccountName: row.AccountName, Balance: balance}
		info, known := LookupAccount(row.AccountName)
		if !known {
			// Unknown accounts default to the equity bucket so the sheet
			// still balances.
			sheet.RetainedEarnings = sheet.RetainedEarnings.Add(balance)
			continue
		}
		switch info.Class {
		case AccountClassAsset:
			sheet.Assets = append(sheet.Assets, line)
			sheet.TotalAssets = sheet.TotalAssets.Add(balance)
		case AccountClassLiability:
			sheet.Liabilities = append(sheet.Liabilities, line)
			sheet.TotalLiabilities = sheet.TotalLiabilities.Add(balance)
		case AccountClassEquity:
			sheet.Equity = append(sheet.Equity, line)
			sheet.TotalEquity = sheet.TotalEquity.Add(balance)
		case AccountClassIncome:
			sheet.RetainedEarnings = sheet.RetainedEarnings.Add(balance)
		case AccountClassExpense:
			sheet.RetainedEarnings = sheet.RetainedEarnings.Sub(balance)
		}
	}
	sheet.TotalEquity = sheet.TotalEquity.Add(sheet.RetainedEarnings)
	return &sheet, nil
}

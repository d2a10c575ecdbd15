package models

import "github.com/shopspring/decimal"

// Ledger entries reference accounts by name, not by foreign key. The chart
// below is the static classification used for balance signs and the balance
// sheet grouping.

type AccountClass string

const (
	AccountClassAsset     AccountClass = "Asset"
	AccountClassLiability AccountClass = "Liability"
	AccountClassEquity    AccountClass = "Equity"
	AccountClassIncome    AccountClass = "Income"
	AccountClassExpense   AccountClass = "Expense"
)

type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

const (
	AccountCash               = "Cash"
	AccountBank               = "Bank"
	AccountAccountsReceivable = "Accounts Receivable"
	AccountInventory          = "Inventory"

	AccountAccountsPayable = "Accounts Payable"
	AccountGrnAccruals     = "GRN Accruals"
	AccountGstOutput       = "GST Output"
	AccountGstInput        = "GST Input"

	AccountOwnerEquity      = "Owner Equity"
	AccountRetainedEarnings = "Retained Earnings"

	AccountSales = "Sales"

	AccountDiscountsAllowed = "Discounts Allowed"
	AccountCostOfGoodsSold  = "Cost of Goods Sold"
	AccountGeneralExpenses  = "General Expenses"
)

type AccountInfo struct {
	Class         AccountClass
	NormalBalance NormalBalance
}

var accountChart = map[string]AccountInfo{
	AccountCash:               {AccountClassAsset, NormalBalanceDebit},
	AccountBank:               {AccountClassAsset, NormalBalanceDebit},
	AccountAccountsReceivable: {AccountClassAsset, NormalBalanceDebit},
	AccountInventory:          {AccountClassAsset, NormalBalanceDebit},

	AccountAccountsPayable: {AccountClassLiability, NormalBalanceCredit},
	AccountGrnAccruals:     {AccountClassLiability, NormalBalanceCredit},
	AccountGstOutput:       {AccountClassLiability, NormalBalanceCredit},
	AccountGstInput:        {AccountClassAsset, NormalBalanceDebit},

	AccountOwnerEquity:      {AccountClassEquity, NormalBalanceCredit},
	AccountRetainedEarnings: {AccountClassEquity, NormalBalanceCredit},

	AccountSales: {AccountClassIncome, NormalBalanceCredit},

	AccountDiscountsAllowed: {AccountClassExpense, NormalBalanceDebit},
	AccountCostOfGoodsSold:  {AccountClassExpense, NormalBalanceDebit},
	AccountGeneralExpenses:  {AccountClassExpense, NormalBalanceDebit},
}

func LookupAccount(name string) (AccountInfo, bool) {
	info, ok := accountChart[name]
	return info, ok
}

// conventionalBalance signs a debit/credit aggregate per the account's normal
// balance, so asset/expense accounts read positive when debits exceed credits
// and liability/equity/income accounts read positive the other way round.
func conventionalBalance(accountName string, totalDebit, totalCredit decimal.Decimal) decimal.Decimal {
	info, ok := accountChart[accountName]
	if ok && info.NormalBalance == NormalBalanceDebit {
		return totalDebit.Sub(totalCredit)
	}
	return totalCredit.Sub(totalDebit)
}

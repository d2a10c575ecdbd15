package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
	"gorm.io/gorm"
)

// Transaction is an atomic financial event. Rows are immutable once created;
// a correction is always a new reversal Transaction, never an edit.
type Transaction struct {
	ID              int                   `gorm:"primary_key" json:"id"`
	BusinessId      string                `gorm:"index;not null;index:idx_txn_biz_date,priority:1" json:"business_id" binding:"required"`
	SourceType      TransactionSourceType `gorm:"size:50;not null;index" json:"source_type"`
	SourceId        int                   `gorm:"index" json:"source_id"`
	TransactionDate time.Time             `gorm:"not null;index:idx_txn_biz_date,priority:2" json:"transaction_date" binding:"required"`
	Description     string                `gorm:"size:255" json:"description"`
	TotalAmount     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	// Posted transactions are never deleted. ReversedById links to the
	// reversal transaction once one exists; a transaction is reversed at
	// most once.
	IsReversal   bool          `gorm:"not null;default:false" json:"is_reversal"`
	ReversedById int           `gorm:"default:0" json:"reversed_by_id"`
	Entries      []LedgerEntry `gorm:"foreignKey:TransactionId" json:"entries"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// LedgerEntry is one debit or credit row of a transaction's double-entry
// set. Exactly one of Debit/Credit is non-zero; both columns exist for
// symmetry. Never edited or deleted.
type LedgerEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id" binding:"required"`
	AccountName   string          `gorm:"size:100;not null;index" json:"account_name" binding:"required"`
	Debit         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
}

type NewTransaction struct {
	SourceType      TransactionSourceType `json:"source_type" binding:"required"`
	SourceId        int                   `json:"source_id"`
	TransactionDate time.Time             `json:"transaction_date" binding:"required"`
	Description     string                `json:"description"`
	Entries         []NewLedgerEntry      `json:"entries"`
}

type NewLedgerEntry struct {
	AccountName string          `json:"account_name" binding:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

func receiveLedgerEntries(input []NewLedgerEntry) ([]LedgerEntry, error) {
	entries := make([]LedgerEntry, 0, len(input))
	for _, e := range input {
		entries = append(entries, LedgerEntry{
			AccountName: e.AccountName,
			Debit:       e.Debit,
			Credit:      e.Credit,
		})
	}
	return entries, validateLedgerEntries(entries)
}

// validateLedgerEntries enforces the double-entry invariant: a non-empty set,
// each row carries exactly one non-negative side, and total debits equal
// total credits at 2-decimal currency precision.
func validateLedgerEntries(entries []LedgerEntry) error {
	if len(entries) == 0 {
		return utils.NewValidationError("transaction requires at least one ledger entry")
	}
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, e := range entries {
		if e.AccountName == "" {
			return utils.NewValidationError("ledger entry requires an account name")
		}
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return utils.NewValidationError("ledger entry amounts cannot be negative")
		}
		if e.Debit.IsZero() == e.Credit.IsZero() {
			return utils.NewValidationError("ledger entry must have either debit or credit, not both")
		}
		totalDebit = totalDebit.Add(e.Debit)
		totalCredit = totalCredit.Add(e.Credit)
	}
	if !utils.SameAmount(totalDebit, totalCredit) {
		return &utils.ImbalancedTransactionError{
			TotalDebit:  totalDebit,
			TotalCredit: totalCredit,
		}
	}
	return nil
}

// PostTransaction creates one Transaction and its LedgerEntries inside the
// caller's db transaction. Nothing is persisted when validation fails.
// This is the single write path into the ledger.
func PostTransaction(ctx context.Context, tx *gorm.DB, input *NewTransaction) (*Transaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	entries, err := receiveLedgerEntries(input.Entries)
	if err != nil {
		var imbalanced *utils.ImbalancedTransactionError
		if errors.As(err, &imbalanced) {
			// An imbalanced set is a caller bug, not user input; log it loudly.
			config.LogError(config.GetLogger(), "ledger", "PostTransaction", "imbalanced entry set", input, err)
		}
		return nil, err
	}

	totalAmount := decimal.Zero
	for _, e := range entries {
		totalAmount = totalAmount.Add(e.Debit)
	}

	transaction := Transaction{
		BusinessId:      businessId,
		SourceType:      input.SourceType,
		SourceId:        input.SourceId,
		TransactionDate: input.TransactionDate,
		Description:     input.Description,
		TotalAmount:     totalAmount,
		Entries:         entries,
	}
	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ReverseTransaction posts a new transaction whose entries mirror the
// original's debits and credits, so the net effect of the pair is zero on
// every account. A transaction can be reversed at most once.
func ReverseTransaction(ctx context.Context, tx *gorm.DB, transactionId int) (*Transaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	original, err := utils.FetchModel[Transaction](ctx, businessId, transactionId, "Entries")
	if err != nil {
		return nil, err
	}
	if original.ReversedById != 0 {
		return nil, utils.NewValidationError("transaction %d is already reversed", transactionId)
	}

	mirrored := make([]NewLedgerEntry, 0, len(original.Entries))
	for _, e := range original.Entries {
		mirrored = append(mirrored, NewLedgerEntry{
			AccountName: e.AccountName,
			Debit:       e.Credit,
			Credit:      e.Debit,
		})
	}

	reversal, err := PostTransaction(ctx, tx, &NewTransaction{
		SourceType:      SourceTypeReversal,
		SourceId:        original.ID,
		TransactionDate: original.TransactionDate,
		Description:     "Reversal of transaction " + original.Description,
		Entries:         mirrored,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND business_id = ?", original.ID, businessId).
		Updates(map[string]interface{}{"ReversedById": reversal.ID}).Error; err != nil {
		return nil, err
	}
	reversal.IsReversal = true
	if err := tx.WithContext(ctx).Model(&Transaction{}).
		Where("id = ?", reversal.ID).
		Updates(map[string]interface{}{"IsReversal": true}).Error; err != nil {
		return nil, err
	}
	return reversal, nil
}

// PostStandaloneTransaction wraps PostTransaction in its own db transaction,
// for callers outside a document lifecycle (manual journals).
func PostStandaloneTransaction(ctx context.Context, input *NewTransaction) (*Transaction, error) {
	db := config.GetDB()
	tx := db.Begin()
	transaction, err := PostTransaction(ctx, tx, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

// AccountBalance aggregates all entries for an account up to the cutoff and
// signs the result per the account's normal balance. Always derived from the
// entry log; there is no running-balance cache to drift.
func AccountBalance(ctx context.Context, accountName string, asOfDate *time.Time) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, utils.NewValidationError("business id is required")
	}

	type sums struct {
		TotalDebit  decimal.Decimal
		TotalCredit decimal.Decimal
	}
	var result sums

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&LedgerEntry{}).
		Joins("JOIN transactions ON transactions.id = ledger_entries.transaction_id").
		Where("transactions.business_id = ?", businessId).
		Where("ledger_entries.account_name = ?", accountName)
	if asOfDate != nil {
		dbCtx = dbCtx.Where("transactions.transaction_date <= ?", *asOfDate)
	}
	if err := dbCtx.
		Select("COALESCE(SUM(ledger_entries.debit),0) AS total_debit, COALESCE(SUM(ledger_entries.credit),0) AS total_credit").
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}

	return conventionalBalance(accountName, result.TotalDebit, result.TotalCredit), nil
}

func GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[Transaction](ctx, businessId, id, "Entries")
}

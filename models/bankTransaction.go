package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

// BankTransaction is one line from an imported bank statement. Positive
// amounts are money in, negative money out.
type BankTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id" binding:"required"`
	TransactionDate time.Time       `gorm:"not null" json:"transaction_date" binding:"required"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description     string          `gorm:"size:255" json:"description"`
	ReferenceNumber string          `gorm:"size:255" json:"reference_number"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBankTransaction struct {
	TransactionDate time.Time       `json:"transaction_date" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"reference_number"`
}

// ImportBankTransactions bulk-inserts statement lines for the business.
func ImportBankTransactions(ctx context.Context, input []NewBankTransaction) ([]*BankTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if len(input) == 0 {
		return nil, utils.NewValidationError("no statement lines to import")
	}
	records := make([]*BankTransaction, 0, len(input))
	for i, line := range input {
		if line.Amount.IsZero() {
			return nil, utils.NewValidationError("line %d: amount cannot be zero", i+1)
		}
		records = append(records, &BankTransaction{
			BusinessId:      businessId,
			TransactionDate: line.TransactionDate,
			Amount:          line.Amount,
			Description:     line.Description,
			ReferenceNumber: line.ReferenceNumber,
		})
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).CreateInBatches(records, 200).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetUnreconciledBankTransactions lists statement lines that have no
// confirmed reconciliation yet.
func GetUnreconciledBankTransactions(ctx context.Context) ([]*BankTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*BankTransaction
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("id NOT IN (?)", db.Model(&BankReconciliation{}).Select("bank_transaction_id").Where("business_id = ?", businessId)).
		Order("transaction_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetBankTransaction(ctx context.Context, id int) (*BankTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[BankTransaction](ctx, businessId, id)
}

package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

type Expense struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id" binding:"required"`
	VendorId      int             `gorm:"index" json:"vendor_id"`
	ExpenseDate   time.Time       `gorm:"not null" json:"expense_date" binding:"required"`
	Description   string          `gorm:"size:255;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	GstRate       decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"gst_rate"`
	GstAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gst_amount"`
	PaymentMethod PaymentMethod   `gorm:"type:enum('Cash','Bank Transfer','Card','UPI','Cheque');not null" json:"payment_method"`
	InterState    bool            `gorm:"default:false" json:"inter_state"`
	TransactionId int             `gorm:"default:0" json:"transaction_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExpense struct {
	VendorId      int             `json:"vendor_id"`
	ExpenseDate   time.Time       `json:"expense_date" binding:"required"`
	Description   string          `json:"description" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	GstRate       decimal.Decimal `json:"gst_rate"`
	PaymentMethod PaymentMethod   `json:"payment_method" binding:"required"`
	InterState    bool            `json:"inter_state"`
}

func (input *NewExpense) validate(ctx context.Context, businessId string) error {
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("expense amount must be positive")
	}
	if input.GstRate.IsNegative() {
		return utils.NewValidationError("gst rate cannot be negative")
	}
	if input.Description == "" {
		return utils.NewValidationError("description is required")
	}
	if input.VendorId > 0 {
		if err := utils.ValidateResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
			return utils.NewValidationError("vendor not found")
		}
	}
	return nil
}

// CreateExpense posts a paid business expense. The amount is tax-exclusive;
// any GST at the given rate is debited to GST Input and claimed as input
// credit for the expense month.
func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	gstAmount := utils.Round2(utils.PercentOf(input.Amount, input.GstRate))
	total := input.Amount.Add(gstAmount)

	entries := []NewLedgerEntry{
		{AccountName: AccountGeneralExpenses, Debit: input.Amount},
	}
	if gstAmount.IsPositive() {
		entries = append(entries, NewLedgerEntry{AccountName: AccountGstInput, Debit: gstAmount})
	}
	entries = append(entries, NewLedgerEntry{AccountName: settlementAccount(input.PaymentMethod), Credit: total})

	db := config.GetDB()
	tx := db.Begin()

	expense := Expense{
		BusinessId:    businessId,
		VendorId:      input.VendorId,
		ExpenseDate:   input.ExpenseDate,
		Description:   input.Description,
		Amount:        input.Amount,
		GstRate:       input.GstRate,
		GstAmount:     gstAmount,
		PaymentMethod: input.PaymentMethod,
		InterState:    input.InterState,
	}
	if err := tx.WithContext(ctx).Create(&expense).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	transaction, err := PostTransaction(ctx, tx, &NewTransaction{
		SourceType:      SourceTypeExpense,
		SourceId:        expense.ID,
		TransactionDate: input.ExpenseDate,
		Description:     "Expense: " + input.Description,
		Entries:         entries,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&expense).
		Update("transaction_id", transaction.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if gstAmount.IsPositive() {
		records := ClassifyGst(businessId, SourceTypeExpense, expense.ID, GstDirectionInput, input.ExpenseDate, gstAmount, input.InterState)
		if err := tx.WithContext(ctx).Create(&records).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[Expense](ctx, businessId, id)
}

func GetExpensesAll(ctx context.Context, from, to *time.Time) ([]*Expense, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if from != nil {
		dbCtx = dbCtx.Where("expense_date >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("expense_date <= ?", *to)
	}
	var results []*Expense
	if err := dbCtx.Order("expense_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id" binding:"required"`
	InvoiceId     int             `gorm:"index" json:"invoice_id"`
	PaymentType   PaymentType     `gorm:"type:enum('Received','Made');not null" json:"payment_type"`
	PaymentMethod PaymentMethod   `gorm:"type:enum('Cash','Bank Transfer','Card','UPI','Cheque');not null" json:"payment_method"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Reference     string          `gorm:"size:255" json:"reference"`
	Notes         string          `gorm:"size:255" json:"notes"`
	CurrentStatus PaymentStatus   `gorm:"type:enum('Completed','Cancelled');not null" json:"current_status"`
	TransactionId int             `gorm:"default:0" json:"transaction_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	InvoiceId     int             `json:"invoice_id"`
	PaymentType   PaymentType     `json:"payment_type" binding:"required"`
	PaymentMethod PaymentMethod   `json:"payment_method" binding:"required"`
	PaymentDate   time.Time       `json:"payment_date" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
}

func (input *NewPayment) validate() error {
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("payment amount must be positive")
	}
	switch input.PaymentType {
	case PaymentTypeReceived, PaymentTypeMade:
	default:
		return utils.NewValidationError("unknown payment type %q", input.PaymentType)
	}
	switch input.PaymentMethod {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodUpi, PaymentMethodCheque:
	default:
		return utils.NewValidationError("unknown payment method %q", input.PaymentMethod)
	}
	return nil
}

// settlementAccount picks the cash-side account for a payment method. Only
// physical cash hits the Cash account; every other instrument settles via
// the bank.
func settlementAccount(method PaymentMethod) string {
	if method == PaymentMethodCash {
		return AccountCash
	}
	return AccountBank
}

// RecordInvoicePayment records a customer payment against an issued invoice.
// The cash-side account is debited and the receivable cleared; once
// completed payments cover the invoice total the invoice flips to Paid.
// Overpayment is accepted and left on the receivable as a customer credit.
func RecordInvoicePayment(ctx context.Context, invoiceId int, input *NewPayment) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	input.InvoiceId = invoiceId
	input.PaymentType = PaymentTypeReceived
	if err := input.validate(); err != nil {
		return nil, err
	}

	release, err := utils.BusinessLock(ctx, businessId, "paymentLock", "payment", "RecordInvoicePayment")
	if err != nil {
		return nil, err
	}
	defer release()

	invoice, err := utils.FetchModel[Invoice](ctx, businessId, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus != InvoiceStatusIssued {
		return nil, &utils.InvalidStateTransitionError{Entity: "invoice", From: string(invoice.CurrentStatus), To: string(InvoiceStatusPaid)}
	}

	db := config.GetDB()
	tx := db.Begin()

	transaction, err := PostTransaction(ctx, tx, &NewTransaction{
		SourceType:      SourceTypePayment,
		SourceId:        invoiceId,
		TransactionDate: input.PaymentDate,
		Description:     "Payment for invoice " + derefNumber(invoice.InvoiceNumber),
		Entries: []NewLedgerEntry{
			{AccountName: settlementAccount(input.PaymentMethod), Debit: input.Amount},
			{AccountName: AccountAccountsReceivable, Credit: input.Amount},
		},
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	payment := Payment{
		BusinessId:    businessId,
		InvoiceId:     invoiceId,
		PaymentType:   PaymentTypeReceived,
		PaymentMethod: input.PaymentMethod,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		Reference:     input.Reference,
		Notes:         input.Notes,
		CurrentStatus: PaymentStatusCompleted,
		TransactionId: transaction.ID,
	}
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	var paid decimal.NullDecimal
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Select("SUM(amount)").
		Where("business_id = ? AND invoice_id = ? AND current_status = ?", businessId, invoiceId, PaymentStatusCompleted).
		Scan(&paid).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if paid.Valid && paid.Decimal.GreaterThanOrEqual(invoice.TotalAmount) {
		if err := tx.WithContext(ctx).Model(&invoice).
			Update("current_status", InvoiceStatusPaid).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreatePayment records a standalone payment not tied to an invoice. Money
// received clears the receivable; money made clears the payable from the
// settlement account.
func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if input.InvoiceId > 0 {
		return RecordInvoicePayment(ctx, input.InvoiceId, input)
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var entries []NewLedgerEntry
	if input.PaymentType == PaymentTypeReceived {
		entries = []NewLedgerEntry{
			{AccountName: settlementAccount(input.PaymentMethod), Debit: input.Amount},
			{AccountName: AccountAccountsReceivable, Credit: input.Amount},
		}
	} else {
		entries = []NewLedgerEntry{
			{AccountName: AccountAccountsPayable, Debit: input.Amount},
			{AccountName: settlementAccount(input.PaymentMethod), Credit: input.Amount},
		}
	}

	db := config.GetDB()
	tx := db.Begin()

	transaction, err := PostTransaction(ctx, tx, &NewTransaction{
		SourceType:      SourceTypePayment,
		SourceId:        0,
		TransactionDate: input.PaymentDate,
		Description:     "Standalone payment " + input.Reference,
		Entries:         entries,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	payment := Payment{
		BusinessId:    businessId,
		PaymentType:   input.PaymentType,
		PaymentMethod: input.PaymentMethod,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		Reference:     input.Reference,
		Notes:         input.Notes,
		CurrentStatus: PaymentStatusCompleted,
		TransactionId: transaction.ID,
	}
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// CancelPayment reverses a completed payment's ledger transaction and marks
// it cancelled. A paid invoice that drops back below its total returns to
// Issued.
func CancelPayment(ctx context.Context, id int) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	payment, err := utils.FetchModel[Payment](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if payment.CurrentStatus != PaymentStatusCompleted {
		return nil, &utils.InvalidStateTransitionError{Entity: "payment", From: string(payment.CurrentStatus), To: string(PaymentStatusCancelled)}
	}

	db := config.GetDB()
	tx := db.Begin()
	if payment.TransactionId > 0 {
		if _, err := ReverseTransaction(ctx, tx, payment.TransactionId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.WithContext(ctx).Model(&payment).
		Update("current_status", PaymentStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if payment.InvoiceId > 0 {
		invoice, err := utils.FetchModel[Invoice](ctx, businessId, payment.InvoiceId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if invoice.CurrentStatus == InvoiceStatusPaid {
			var paid decimal.NullDecimal
			if err := tx.WithContext(ctx).Model(&Payment{}).
				Select("SUM(amount)").
				Where("business_id = ? AND invoice_id = ? AND current_status = ? AND id <> ?",
					businessId, payment.InvoiceId, PaymentStatusCompleted, payment.ID).
				Scan(&paid).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			if !paid.Valid || paid.Decimal.LessThan(invoice.TotalAmount) {
				if err := tx.WithContext(ctx).Model(&invoice).
					Update("current_status", InvoiceStatusIssued).Error; err != nil {
					tx.Rollback()
					return nil, err
				}
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[Payment](ctx, businessId, id)
}

func GetInvoicePayments(ctx context.Context, invoiceId int) ([]*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*Payment
	if err := db.WithContext(ctx).
		Where("business_id = ? AND invoice_id = ?", businessId, invoiceId).
		Order("payment_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func derefNumber(number *string) string {
	if number == nil {
		return ""
	}
	return *number
}

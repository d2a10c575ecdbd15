package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
	"gorm.io/gorm"
)

type Invoice struct {
	ID            int     `gorm:"primary_key" json:"id"`
	BusinessId    string  `gorm:"index;not null;uniqueIndex:uniq_invoice_number,priority:1" json:"business_id" binding:"required"`
	CustomerId    int     `gorm:"index" json:"customer_id"`
	CustomerName  string  `gorm:"size:255" json:"customer_name"`
	InvoiceNumber *string `gorm:"size:255;uniqueIndex:uniq_invoice_number,priority:2" json:"invoice_number"`
	SequenceNo    int64   `gorm:"default:0" json:"sequence_no"`
	// PlaceOfSupply is the destination state code; differs from the business
	// state on inter-state supplies (IGST instead of CGST+SGST).
	PlaceOfSupply string          `gorm:"size:2" json:"place_of_supply"`
	InvoiceDate   time.Time       `gorm:"not null" json:"invoice_date" binding:"required"`
	DueDate       time.Time       `gorm:"not null" json:"due_date"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	GstAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gst_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CurrentStatus InvoiceStatus   `gorm:"type:enum('Draft','Issued','Paid','Voided');not null" json:"current_status"`
	// TransactionId is the issuance ledger transaction, kept so voiding can
	// reverse it.
	TransactionId int           `gorm:"default:0" json:"transaction_id"`
	VoidReason    string        `gorm:"size:255" json:"void_reason"`
	VoidedAt      *time.Time    `json:"voided_at"`
	Items         []InvoiceItem `gorm:"foreignKey:InvoiceId" json:"items"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id" binding:"required"`
	ProductId   int             `gorm:"index" json:"product_id"`
	Description string          `gorm:"size:255;not null" json:"description" binding:"required"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity" binding:"required"`
	UnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_rate"`
	GstRate     decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"gst_rate"`
	CostPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
}

type NewInvoice struct {
	CustomerId    int              `json:"customer_id"`
	CustomerName  string           `json:"customer_name"`
	PlaceOfSupply string           `json:"place_of_supply"`
	InvoiceDate   time.Time        `json:"invoice_date" binding:"required"`
	DueDate       time.Time        `json:"due_date"`
	Discount      decimal.Decimal  `json:"discount"`
	Items         []NewInvoiceItem `json:"items"`
}

type NewInvoiceItem struct {
	ProductId   int             `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitRate    decimal.Decimal `json:"unit_rate"`
	GstRate     decimal.Decimal `json:"gst_rate"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewInvoice) validate(ctx context.Context, businessId string, _ int) error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("invoice requires at least one item")
	}
	if input.Discount.IsNegative() {
		return utils.NewValidationError("discount cannot be negative")
	}
	for i, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return utils.NewValidationError("item %d: quantity must be positive", i+1)
		}
		if item.UnitRate.IsNegative() {
			return utils.NewValidationError("item %d: unit rate cannot be negative", i+1)
		}
		if item.GstRate.IsNegative() {
			return utils.NewValidationError("item %d: gst rate cannot be negative", i+1)
		}
	}
	if input.CustomerId > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
			return utils.NewValidationError("customer not found")
		}
	}
	return nil
}

// receiveInvoiceItems maps input lines, filling rate/gst/cost from the
// referenced product when the caller left them unset. Tax-inclusive product
// prices are converted to their exclusive base here, so all stored rates are
// tax-exclusive.
func receiveInvoiceItems(ctx context.Context, businessId string, input []NewInvoiceItem) ([]InvoiceItem, error) {
	items := make([]InvoiceItem, 0, len(input))
	for _, in := range input {
		item := InvoiceItem{
			ProductId:   in.ProductId,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitRate:    in.UnitRate,
			GstRate:     in.GstRate,
		}
		if in.ProductId > 0 {
			product, err := utils.FetchModel[InventoryProduct](ctx, businessId, in.ProductId)
			if err != nil {
				return nil, utils.NewValidationError("product %d not found", in.ProductId)
			}
			if item.Description == "" {
				item.Description = product.Name
			}
			if item.GstRate.IsZero() {
				item.GstRate = product.GstRate
			}
			if item.UnitRate.IsZero() {
				item.UnitRate = product.UnitPrice
				if product.PricesIncludeTax {
					item.UnitRate = TaxExclusiveUnitPrice(product.UnitPrice, item.GstRate)
				}
			}
			item.CostPrice = product.CostPrice
		}
		if item.Description == "" {
			return nil, utils.NewValidationError("item description is required")
		}
		items = append(items, item)
	}
	return items, nil
}

type invoiceLineCalc struct {
	Subtotal decimal.Decimal
	Gst      decimal.Decimal
}

// computeInvoiceTotals recomputes the financials from the stored lines.
// Each line's tax is rounded to 2 decimals before summation; the grand
// total reflects the invoice-level discount and never goes below zero.
func computeInvoiceTotals(items []InvoiceItem, discount decimal.Decimal) (subtotal, gstAmount, total decimal.Decimal, lines []invoiceLineCalc) {
	subtotal = decimal.Zero
	gstAmount = decimal.Zero
	lines = make([]invoiceLineCalc, 0, len(items))
	for _, item := range items {
		lineSubtotal := item.Quantity.Mul(item.UnitRate)
		lineGst := utils.Round2(utils.PercentOf(lineSubtotal, item.GstRate))
		subtotal = subtotal.Add(lineSubtotal)
		gstAmount = gstAmount.Add(lineGst)
		lines = append(lines, invoiceLineCalc{Subtotal: lineSubtotal, Gst: lineGst})
	}
	total = utils.Round2(subtotal.Add(gstAmount)).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return subtotal, gstAmount, total, lines
}

// buildIssuanceEntries builds the balanced entry set for issuing an invoice.
// The discount is posted as its own debit line, so the receivable leg equals
// the discounted grand total while sales and GST keep the pre-discount
// split:
//
//	Dr Accounts Receivable  total
//	Dr Discounts Allowed    (subtotal+gst) - total
//	Cr Sales                subtotal
//	Cr GST Output           gstAmount
func buildIssuanceEntries(subtotal, gstAmount, total decimal.Decimal) []NewLedgerEntry {
	entries := make([]NewLedgerEntry, 0, 4)
	if total.IsPositive() {
		entries = append(entries, NewLedgerEntry{AccountName: AccountAccountsReceivable, Debit: total})
	}
	effectiveDiscount := utils.Round2(subtotal.Add(gstAmount)).Sub(total)
	if effectiveDiscount.IsPositive() {
		entries = append(entries, NewLedgerEntry{AccountName: AccountDiscountsAllowed, Debit: effectiveDiscount})
	}
	if subtotal.IsPositive() {
		entries = append(entries, NewLedgerEntry{AccountName: AccountSales, Credit: subtotal})
	}
	if gstAmount.IsPositive() {
		entries = append(entries, NewLedgerEntry{AccountName: AccountGstOutput, Credit: gstAmount})
	}
	return entries
}

// deriveCustomerFields fills blank denormalized customer fields from the
// customer record so drafts keep a display name and a place of supply even
// when the caller sends only the customer id.
func deriveCustomerFields(ctx context.Context, businessId string, input *NewInvoice) (customerName, placeOfSupply string, err error) {
	customerName = input.CustomerName
	placeOfSupply = input.PlaceOfSupply
	if input.CustomerId > 0 && (customerName == "" || placeOfSupply == "") {
		customer, err := utils.FetchModel[Customer](ctx, businessId, input.CustomerId)
		if err != nil {
			return "", "", err
		}
		if customerName == "" {
			customerName = customer.Name
		}
		if placeOfSupply == "" {
			placeOfSupply = customer.StateCode
		}
	}
	return customerName, placeOfSupply, nil
}

func CreateInvoiceDraft(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}
	items, err := receiveInvoiceItems(ctx, businessId, input.Items)
	if err != nil {
		return nil, err
	}

	customerName, placeOfSupply, err := deriveCustomerFields(ctx, businessId, input)
	if err != nil {
		return nil, err
	}

	dueDate := input.DueDate
	if dueDate.IsZero() {
		dueDate = input.InvoiceDate
	}

	invoice := Invoice{
		BusinessId:    businessId,
		CustomerId:    input.CustomerId,
		CustomerName:  customerName,
		PlaceOfSupply: placeOfSupply,
		InvoiceDate:   input.InvoiceDate,
		DueDate:       dueDate,
		Discount:      input.Discount,
		CurrentStatus: InvoiceStatusDraft,
		Items:         items,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpdateInvoiceDraft replaces a draft invoice in place. Only drafts are
// editable; anything past Draft is financially immutable.
func UpdateInvoiceDraft(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[Invoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus != InvoiceStatusDraft {
		return nil, &utils.InvalidStateTransitionError{Entity: "invoice", From: string(invoice.CurrentStatus), To: string(InvoiceStatusDraft)}
	}

	items, err := receiveInvoiceItems(ctx, businessId, input.Items)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].InvoiceId = invoice.ID
	}

	customerName, placeOfSupply, err := deriveCustomerFields(ctx, businessId, input)
	if err != nil {
		return nil, err
	}
	dueDate := input.DueDate
	if dueDate.IsZero() {
		dueDate = input.InvoiceDate
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"CustomerId":    input.CustomerId,
		"CustomerName":  customerName,
		"PlaceOfSupply": placeOfSupply,
		"InvoiceDate":   input.InvoiceDate,
		"DueDate":       dueDate,
		"Discount":      input.Discount,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invoice.Items = items
	return invoice, nil
}

func DeleteInvoiceDraft(ctx context.Context, id int) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	invoice, err := utils.FetchModel[Invoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus != InvoiceStatusDraft {
		return nil, &utils.InvalidStateTransitionError{Entity: "invoice", From: string(invoice.CurrentStatus), To: "deleted"}
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// IssueInvoice moves a draft to Issued: totals recomputed from the lines, a
// business-scoped invoice number allocated, the receivable/sales/GST entry
// set posted, GST records written and product stock decremented, all in one
// db transaction. A number collision from a concurrent issue is retried with
// a fresh sequence.
func IssueInvoice(ctx context.Context, id int) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		invoice, err := issueInvoiceOnce(ctx, businessId, id)
		if err == nil {
			return invoice, nil
		}
		var dup *utils.DuplicateDocumentNumberError
		if !errors.As(err, &dup) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func issueInvoiceOnce(ctx context.Context, businessId string, id int) (*Invoice, error) {
	invoice, err := utils.FetchModel[Invoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus != InvoiceStatusDraft {
		return nil, &utils.InvalidStateTransitionError{Entity: "invoice", From: string(invoice.CurrentStatus), To: string(InvoiceStatusIssued)}
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	subtotal, gstAmount, total, lines := computeInvoiceTotals(invoice.Items, invoice.Discount)

	seqNo, err := utils.GetSequence[Invoice](ctx, businessId)
	if err != nil {
		return nil, err
	}
	invoiceNumber := "INV-" + fmt.Sprint(seqNo)

	interState := invoice.PlaceOfSupply != "" && business.StateCode != "" &&
		invoice.PlaceOfSupply != business.StateCode

	db := config.GetDB()
	tx := db.Begin()

	var transactionId int
	entries := buildIssuanceEntries(subtotal, gstAmount, total)
	if len(entries) > 0 {
		transaction, err := PostTransaction(ctx, tx, &NewTransaction{
			SourceType:      SourceTypeInvoice,
			SourceId:        invoice.ID,
			TransactionDate: invoice.InvoiceDate,
			Description:     "Invoice " + invoiceNumber,
			Entries:         entries,
		})
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		transactionId = transaction.ID
	}

	for i, item := range invoice.Items {
		lineTotal := utils.Round2(lines[i].Subtotal.Add(lines[i].Gst))
		if err := tx.WithContext(ctx).Model(&InvoiceItem{}).
			Where("id = ?", item.ID).
			Update("line_total", lineTotal).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if lines[i].Gst.IsZero() {
			continue
		}
		records := ClassifyGst(businessId, SourceTypeInvoice, invoice.ID, GstDirectionOutput, invoice.InvoiceDate, lines[i].Gst, interState)
		if err := tx.WithContext(ctx).Create(&records).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for _, item := range invoice.Items {
		if item.ProductId <= 0 {
			continue
		}
		if err := ApplyProductStockChange(ctx, tx, businessId, item.ProductId, item.Quantity.Neg(), MovementTypeSale, invoiceNumber); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"InvoiceNumber": invoiceNumber,
		"SequenceNo":    seqNo,
		"Subtotal":      subtotal,
		"GstAmount":     gstAmount,
		"TotalAmount":   total,
		"TransactionId": transactionId,
		"CurrentStatus": InvoiceStatusIssued,
	}).Error; err != nil {
		tx.Rollback()
		if isDuplicateKeyError(err) {
			return nil, &utils.DuplicateDocumentNumberError{Entity: "invoice", Number: invoiceNumber}
		}
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, &utils.DuplicateDocumentNumberError{Entity: "invoice", Number: invoiceNumber}
		}
		return nil, err
	}
	return utils.FetchModel[Invoice](ctx, businessId, id, "Items")
}

// VoidInvoice cancels a draft or issued invoice. Draft voids are a status
// flip; issued voids reverse the issuance ledger transaction, restore any
// stock the issue consumed and write offsetting GST records for the same
// period. Paid invoices cannot be voided.
func VoidInvoice(ctx context.Context, id int, reason string) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	invoice, err := utils.FetchModel[Invoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	db := config.GetDB()

	switch invoice.CurrentStatus {
	case InvoiceStatusDraft:
		if err := db.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
			"CurrentStatus": InvoiceStatusVoided,
			"VoidReason":    reason,
			"VoidedAt":      now,
		}).Error; err != nil {
			return nil, err
		}
		return invoice, nil

	case InvoiceStatusIssued:
		tx := db.Begin()
		if invoice.TransactionId > 0 {
			if _, err := ReverseTransaction(ctx, tx, invoice.TransactionId); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		invoiceNumber := ""
		if invoice.InvoiceNumber != nil {
			invoiceNumber = *invoice.InvoiceNumber
		}
		for _, item := range invoice.Items {
			if item.ProductId <= 0 {
				continue
			}
			if err := ApplyProductStockChange(ctx, tx, businessId, item.ProductId, item.Quantity, MovementTypeSaleReversal, invoiceNumber); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		var gstRecords []GSTRecord
		if err := tx.WithContext(ctx).
			Where("business_id = ? AND source_type = ? AND source_id = ?", businessId, SourceTypeInvoice, invoice.ID).
			Find(&gstRecords).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		for _, record := range gstRecords {
			offset := GSTRecord{
				BusinessId: businessId,
				SourceType: SourceTypeReversal,
				SourceId:   invoice.ID,
				GstType:    record.GstType,
				Direction:  record.Direction,
				Amount:     record.Amount.Neg(),
				TaxPeriod:  record.TaxPeriod,
			}
			if err := tx.WithContext(ctx).Create(&offset).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if err := tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
			"CurrentStatus": InvoiceStatusVoided,
			"VoidReason":    reason,
			"VoidedAt":      now,
		}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return invoice, nil

	default:
		return nil, &utils.InvalidStateTransitionError{Entity: "invoice", From: string(invoice.CurrentStatus), To: string(InvoiceStatusVoided)}
	}
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[Invoice](ctx, businessId, id, "Items")
}

func GetInvoicesAll(ctx context.Context, status *InvoiceStatus) ([]*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("business_id = ?", businessId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	var results []*Invoice
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL 1062 via the raw driver.
	return strings.Contains(err.Error(), "Duplicate entry")
}

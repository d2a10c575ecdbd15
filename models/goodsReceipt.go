package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GoodsReceipt struct {
	ID              int                `gorm:"primary_key" json:"id"`
	BusinessId      string             `gorm:"index;not null;uniqueIndex:uniq_grn_number,priority:1" json:"business_id" binding:"required"`
	PurchaseOrderId int                `gorm:"index;not null" json:"purchase_order_id" binding:"required"`
	GrnNumber       *string            `gorm:"size:255;uniqueIndex:uniq_grn_number,priority:2" json:"grn_number"`
	SequenceNo      int64              `gorm:"default:0" json:"sequence_no"`
	ReceivedDate    time.Time          `gorm:"not null" json:"received_date"`
	Notes           string             `gorm:"size:255" json:"notes"`
	TransactionId   int                `gorm:"default:0" json:"transaction_id"`
	Items           []GoodsReceiptItem `gorm:"foreignKey:GoodsReceiptId" json:"items"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type GoodsReceiptItem struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	GoodsReceiptId      int             `gorm:"index;not null" json:"goods_receipt_id" binding:"required"`
	PurchaseOrderItemId int             `gorm:"index;not null" json:"purchase_order_item_id" binding:"required"`
	QuantityReceived    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_received"`
}

type NewGoodsReceipt struct {
	PurchaseOrderId int                   `json:"purchase_order_id" binding:"required"`
	ReceivedDate    time.Time             `json:"received_date" binding:"required"`
	Notes           string                `json:"notes"`
	Items           []NewGoodsReceiptItem `json:"items"`
}

type NewGoodsReceiptItem struct {
	PurchaseOrderItemId int             `json:"purchase_order_item_id" binding:"required"`
	QuantityReceived    decimal.Decimal `json:"quantity_received" binding:"required"`
}

// validateReceiptAgainstOrder checks receipt lines against the order lines
// and the quantities already received. ordered and received are keyed by
// purchase order item id.
func validateReceiptAgainstOrder(input []NewGoodsReceiptItem, ordered, received map[int]decimal.Decimal) error {
	if len(input) == 0 {
		return utils.NewValidationError("goods receipt requires at least one item")
	}
	seen := make(map[int]bool, len(input))
	for i, line := range input {
		if line.QuantityReceived.IsNegative() {
			return utils.NewValidationError("item %d: received quantity cannot be negative", i+1)
		}
		orderedQty, ok := ordered[line.PurchaseOrderItemId]
		if !ok {
			return utils.NewValidationError("item %d: line %d is not on the purchase order", i+1, line.PurchaseOrderItemId)
		}
		if seen[line.PurchaseOrderItemId] {
			return utils.NewValidationError("item %d: duplicate purchase order line %d", i+1, line.PurchaseOrderItemId)
		}
		seen[line.PurchaseOrderItemId] = true
		cumulative := received[line.PurchaseOrderItemId].Add(line.QuantityReceived)
		if cumulative.GreaterThan(orderedQty) {
			return fmt.Errorf("line %d: cumulative %s exceeds ordered %s: %w",
				line.PurchaseOrderItemId, cumulative.String(), orderedQty.String(), utils.ErrorOverReceipt)
		}
	}
	return nil
}

// CreateGoodsReceipt records goods received against an issued purchase
// order. Cumulative received quantities may never exceed the ordered
// quantity per line; the check runs inside the db transaction against a
// row-locked order so concurrent receipts serialize. Stock goes up for
// every product line, and when the business accrues goods receipts an
// inventory/accrual entry set is posted at order cost. The order flips to
// Closed once every line is fully received, otherwise Partially Received.
func CreateGoodsReceipt(ctx context.Context, input *NewGoodsReceipt) (*GoodsReceipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	release, err := utils.BusinessLock(ctx, businessId, "receiptLock", "goodsReceipt", "CreateGoodsReceipt")
	if err != nil {
		return nil, err
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		receipt, err := createGoodsReceiptOnce(ctx, businessId, input)
		if err == nil {
			return receipt, nil
		}
		var dup *utils.DuplicateDocumentNumberError
		if !errors.As(err, &dup) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func createGoodsReceiptOnce(ctx context.Context, businessId string, input *NewGoodsReceipt) (*GoodsReceipt, error) {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[GoodsReceipt](ctx, businessId)
	if err != nil {
		return nil, err
	}
	grnNumber := "GRN-" + fmt.Sprint(seqNo)

	db := config.GetDB()
	tx := db.Begin()

	var order PurchaseOrder
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Where("business_id = ? AND id = ?", businessId, input.PurchaseOrderId).
		First(&order).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if order.CurrentStatus != PurchaseOrderStatusIssued && order.CurrentStatus != PurchaseOrderStatusPartiallyReceived {
		tx.Rollback()
		return nil, &utils.InvalidStateTransitionError{Entity: "purchase order", From: string(order.CurrentStatus), To: string(PurchaseOrderStatusPartiallyReceived)}
	}

	ordered := make(map[int]decimal.Decimal, len(order.Items))
	unitRate := make(map[int]decimal.Decimal, len(order.Items))
	productId := make(map[int]int, len(order.Items))
	for _, item := range order.Items {
		ordered[item.ID] = item.Quantity
		unitRate[item.ID] = item.UnitRate
		productId[item.ID] = item.ProductId
	}

	received := make(map[int]decimal.Decimal, len(order.Items))
	type receivedRow struct {
		PurchaseOrderItemId int
		Total               decimal.Decimal
	}
	var rows []receivedRow
	if err := tx.WithContext(ctx).Model(&GoodsReceiptItem{}).
		Select("goods_receipt_items.purchase_order_item_id, SUM(goods_receipt_items.quantity_received) AS total").
		Joins("JOIN goods_receipts ON goods_receipts.id = goods_receipt_items.goods_receipt_id").
		Where("goods_receipts.business_id = ? AND goods_receipts.purchase_order_id = ?", businessId, order.ID).
		Group("goods_receipt_items.purchase_order_item_id").
		Scan(&rows).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, row := range rows {
		received[row.PurchaseOrderItemId] = row.Total
	}

	if err := validateReceiptAgainstOrder(input.Items, ordered, received); err != nil {
		tx.Rollback()
		return nil, err
	}

	items := make([]GoodsReceiptItem, 0, len(input.Items))
	receiptValue := decimal.Zero
	for _, line := range input.Items {
		items = append(items, GoodsReceiptItem{
			PurchaseOrderItemId: line.PurchaseOrderItemId,
			QuantityReceived:    line.QuantityReceived,
		})
		receiptValue = receiptValue.Add(line.QuantityReceived.Mul(unitRate[line.PurchaseOrderItemId]))
	}
	receiptValue = utils.Round2(receiptValue)

	receipt := GoodsReceipt{
		BusinessId:      businessId,
		PurchaseOrderId: order.ID,
		GrnNumber:       &grnNumber,
		SequenceNo:      seqNo,
		ReceivedDate:    input.ReceivedDate,
		Notes:           input.Notes,
		Items:           items,
	}
	if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
		tx.Rollback()
		if isDuplicateKeyError(err) {
			return nil, &utils.DuplicateDocumentNumberError{Entity: "goods receipt", Number: grnNumber}
		}
		return nil, err
	}

	for _, line := range input.Items {
		pid := productId[line.PurchaseOrderItemId]
		if pid <= 0 {
			continue
		}
		if err := ApplyProductStockChange(ctx, tx, businessId, pid, line.QuantityReceived, MovementTypeReceipt, grnNumber); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if business.AccrueGoodsReceipts && receiptValue.IsPositive() {
		transaction, err := PostTransaction(ctx, tx, &NewTransaction{
			SourceType:      SourceTypeGoodsReceipt,
			SourceId:        receipt.ID,
			TransactionDate: input.ReceivedDate,
			Description:     "Goods receipt " + grnNumber,
			Entries: []NewLedgerEntry{
				{AccountName: AccountInventory, Debit: receiptValue},
				{AccountName: AccountGrnAccruals, Credit: receiptValue},
			},
		})
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Model(&receipt).
			Update("transaction_id", transaction.ID).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// Recompute order progress including this receipt's lines. Lines with a
	// zero quantity are legal but move nothing, so the status only changes
	// when something was actually received.
	anyReceived := false
	for _, line := range input.Items {
		if line.QuantityReceived.IsPositive() {
			anyReceived = true
		}
		received[line.PurchaseOrderItemId] = received[line.PurchaseOrderItemId].Add(line.QuantityReceived)
	}
	if anyReceived {
		fullyReceived := true
		for itemId, orderedQty := range ordered {
			if received[itemId].LessThan(orderedQty) {
				fullyReceived = false
				break
			}
		}
		nextStatus := PurchaseOrderStatusPartiallyReceived
		if fullyReceived {
			nextStatus = PurchaseOrderStatusClosed
		}
		if err := tx.WithContext(ctx).Model(&order).
			Update("current_status", nextStatus).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, &utils.DuplicateDocumentNumberError{Entity: "goods receipt", Number: grnNumber}
		}
		return nil, err
	}
	return &receipt, nil
}

func GetGoodsReceipt(ctx context.Context, id int) (*GoodsReceipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[GoodsReceipt](ctx, businessId, id, "Items")
}

func GetPurchaseOrderReceipts(ctx context.Context, purchaseOrderId int) ([]*GoodsReceipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*GoodsReceipt
	if err := db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND purchase_order_id = ?", businessId, purchaseOrderId).
		Order("received_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

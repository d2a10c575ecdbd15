package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

type PurchaseOrder struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	BusinessId    string              `gorm:"index;not null;uniqueIndex:uniq_po_number,priority:1" json:"business_id" binding:"required"`
	VendorId      int                 `gorm:"index;not null" json:"vendor_id" binding:"required"`
	PoNumber      *string             `gorm:"size:255;uniqueIndex:uniq_po_number,priority:2" json:"po_number"`
	SequenceNo    int64               `gorm:"default:0" json:"sequence_no"`
	PoDate        time.Time           `gorm:"not null" json:"po_date"`
	ExpectedDate  time.Time           `json:"expected_date"`
	CurrentStatus PurchaseOrderStatus `gorm:"type:enum('Draft','Issued','Partially Received','Closed');not null" json:"current_status"`
	Notes         string              `gorm:"size:255" json:"notes"`
	TotalAmount   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Items         []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderId" json:"items"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id" binding:"required"`
	ProductId       int             `gorm:"index" json:"product_id"`
	Description     string          `gorm:"size:255;not null" json:"description" binding:"required"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity" binding:"required"`
	UnitRate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_rate"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
}

type NewPurchaseOrder struct {
	VendorId     int                    `json:"vendor_id" binding:"required"`
	PoDate       time.Time              `json:"po_date" binding:"required"`
	ExpectedDate time.Time              `json:"expected_date"`
	Notes        string                 `json:"notes"`
	Items        []NewPurchaseOrderItem `json:"items"`
}

type NewPurchaseOrderItem struct {
	ProductId   int             `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitRate    decimal.Decimal `json:"unit_rate"`
}

func (input *NewPurchaseOrder) validate(ctx context.Context, businessId string) error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("purchase order requires at least one item")
	}
	for i, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return utils.NewValidationError("item %d: quantity must be positive", i+1)
		}
		if item.UnitRate.IsNegative() {
			return utils.NewValidationError("item %d: unit rate cannot be negative", i+1)
		}
	}
	if err := utils.ValidateResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
		return utils.NewValidationError("vendor not found")
	}
	return nil
}

func receivePurchaseOrderItems(ctx context.Context, businessId string, input []NewPurchaseOrderItem) ([]PurchaseOrderItem, decimal.Decimal, error) {
	items := make([]PurchaseOrderItem, 0, len(input))
	total := decimal.Zero
	for _, in := range input {
		item := PurchaseOrderItem{
			ProductId:   in.ProductId,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitRate:    in.UnitRate,
		}
		if in.ProductId > 0 {
			product, err := utils.FetchModel[InventoryProduct](ctx, businessId, in.ProductId)
			if err != nil {
				return nil, decimal.Zero, utils.NewValidationError("product %d not found", in.ProductId)
			}
			if item.Description == "" {
				item.Description = product.Name
			}
			if item.UnitRate.IsZero() {
				item.UnitRate = product.CostPrice
			}
		}
		if item.Description == "" {
			return nil, decimal.Zero, utils.NewValidationError("item description is required")
		}
		item.LineTotal = utils.Round2(item.Quantity.Mul(item.UnitRate))
		total = total.Add(item.LineTotal)
		items = append(items, item)
	}
	return items, total, nil
}

func CreatePurchaseOrderDraft(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	items, total, err := receivePurchaseOrderItems(ctx, businessId, input.Items)
	if err != nil {
		return nil, err
	}

	order := PurchaseOrder{
		BusinessId:    businessId,
		VendorId:      input.VendorId,
		PoDate:        input.PoDate,
		ExpectedDate:  input.ExpectedDate,
		Notes:         input.Notes,
		TotalAmount:   total,
		CurrentStatus: PurchaseOrderStatusDraft,
		Items:         items,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func UpdatePurchaseOrderDraft(ctx context.Context, id int, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	order, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if order.CurrentStatus != PurchaseOrderStatusDraft {
		return nil, &utils.InvalidStateTransitionError{Entity: "purchase order", From: string(order.CurrentStatus), To: string(PurchaseOrderStatusDraft)}
	}

	items, total, err := receivePurchaseOrderItems(ctx, businessId, input.Items)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].PurchaseOrderId = order.ID
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
		"VendorId":     input.VendorId,
		"PoDate":       input.PoDate,
		"ExpectedDate": input.ExpectedDate,
		"Notes":        input.Notes,
		"TotalAmount":  total,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("purchase_order_id = ?", order.ID).Delete(&PurchaseOrderItem{}).Error; err != nil {
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
	order.Items = items
	return order, nil
}

func DeletePurchaseOrderDraft(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	order, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if order.CurrentStatus != PurchaseOrderStatusDraft {
		return nil, &utils.InvalidStateTransitionError{Entity: "purchase order", From: string(order.CurrentStatus), To: "deleted"}
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("purchase_order_id = ?", order.ID).Delete(&PurchaseOrderItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return order, nil
}

// IssuePurchaseOrder allocates a business-scoped PO number and marks the
// order issued. Issuing a PO is a commitment, not a financial event, so no
// ledger entries are posted; those come from goods receipts.
func IssuePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		order, err := issuePurchaseOrderOnce(ctx, businessId, id)
		if err == nil {
			return order, nil
		}
		var dup *utils.DuplicateDocumentNumberError
		if !errors.As(err, &dup) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func issuePurchaseOrderOnce(ctx context.Context, businessId string, id int) (*PurchaseOrder, error) {
	order, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if order.CurrentStatus != PurchaseOrderStatusDraft {
		return nil, &utils.InvalidStateTransitionError{Entity: "purchase order", From: string(order.CurrentStatus), To: string(PurchaseOrderStatusIssued)}
	}

	seqNo, err := utils.GetSequence[PurchaseOrder](ctx, businessId)
	if err != nil {
		return nil, err
	}
	poNumber := "PO-" + fmt.Sprint(seqNo)

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
		"PoNumber":      poNumber,
		"SequenceNo":    seqNo,
		"CurrentStatus": PurchaseOrderStatusIssued,
	}).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, &utils.DuplicateDocumentNumberError{Entity: "purchase order", Number: poNumber}
		}
		return nil, err
	}
	return order, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Items")
}

func GetPurchaseOrdersAll(ctx context.Context, status *PurchaseOrderStatus) ([]*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("business_id = ?", businessId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	var results []*PurchaseOrder
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
	"gorm.io/gorm"
)

// InventoryMovement is the append-only stock audit trail. The running sum of
// Quantity for a product must equal that product's quantity on hand;
// corrections are offsetting movements, never edits.
type InventoryMovement struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id" binding:"required"`
	ProductId    int             `gorm:"index;not null" json:"product_id" binding:"required"`
	MovementType MovementType    `gorm:"type:enum('Receipt','Sale','Sale Reversal','Adjustment');not null" json:"movement_type"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Reference    string          `gorm:"size:255" json:"reference"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ApplyProductStockChange appends one movement and shifts the product's
// quantity on hand by the same delta, inside the caller's db transaction.
// This is the explicit command-style stock mutation; nothing else writes
// quantity_on_hand.
func ApplyProductStockChange(ctx context.Context, tx *gorm.DB, businessId string, productId int, quantity decimal.Decimal, movementType MovementType, reference string) error {
	if quantity.IsZero() {
		return nil
	}
	movement := InventoryMovement{
		BusinessId:   businessId,
		ProductId:    productId,
		MovementType: movementType,
		Quantity:     quantity,
		Reference:    reference,
	}
	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		return err
	}
	result := tx.WithContext(ctx).Model(&InventoryProduct{}).
		Where("id = ? AND business_id = ?", productId, businessId).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetProductMovements(ctx context.Context, productId int) ([]*InventoryMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*InventoryMovement
	if err := db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CheckMovementConsistency compares a product's quantity on hand against the
// sum of its movement log. Drift means a write bypassed
// ApplyProductStockChange.
func CheckMovementConsistency(ctx context.Context, productId int) (bool, decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, decimal.Zero, utils.NewValidationError("business id is required")
	}

	product, err := utils.FetchModel[InventoryProduct](ctx, businessId, productId)
	if err != nil {
		return false, decimal.Zero, err
	}

	var movementSum decimal.Decimal
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&InventoryMovement{}).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Select("COALESCE(SUM(quantity),0)").
		Scan(&movementSum).Error; err != nil {
		return false, decimal.Zero, err
	}

	drift := product.QuantityOnHand.Sub(movementSum)
	return drift.IsZero(), drift, nil
}

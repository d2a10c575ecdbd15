package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

type ProductCategory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"size:255;not null" json:"name" binding:"required"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type InventoryProduct struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"index;not null;uniqueIndex:uniq_product_sku,priority:1" json:"business_id" binding:"required"`
	Name             string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Sku              string          `gorm:"size:100;not null;uniqueIndex:uniq_product_sku,priority:2" json:"sku" binding:"required"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CostPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	GstRate          decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"gst_rate"`
	QuantityOnHand   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_on_hand"`
	ReorderLevel     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reorder_level"`
	PricesIncludeTax bool            `gorm:"not null;default:false" json:"prices_include_tax"`
	CategoryId       int             `gorm:"index" json:"category_id"`
	IsActive         bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryProduct struct {
	Name             string          `json:"name" binding:"required"`
	Sku              string          `json:"sku" binding:"required"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	GstRate          decimal.Decimal `json:"gst_rate"`
	ReorderLevel     decimal.Decimal `json:"reorder_level"`
	PricesIncludeTax bool            `json:"prices_include_tax"`
	CategoryId       int             `json:"category_id"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewInventoryProduct) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[InventoryProduct](ctx, businessId, "sku", input.Sku, id); err != nil {
		return err
	}
	if input.UnitPrice.IsNegative() || input.CostPrice.IsNegative() {
		return utils.NewValidationError("prices cannot be negative")
	}
	if input.GstRate.IsNegative() {
		return utils.NewValidationError("gst rate cannot be negative")
	}
	if input.CategoryId > 0 {
		if err := utils.ValidateResourceId[ProductCategory](ctx, businessId, input.CategoryId); err != nil {
			return utils.NewValidationError("product category not found")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewInventoryProduct) (*InventoryProduct, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	product := InventoryProduct{
		BusinessId:       businessId,
		Name:             input.Name,
		Sku:              input.Sku,
		UnitPrice:        input.UnitPrice,
		CostPrice:        input.CostPrice,
		GstRate:          input.GstRate,
		ReorderLevel:     input.ReorderLevel,
		PricesIncludeTax: input.PricesIncludeTax,
		CategoryId:       input.CategoryId,
		IsActive:         true,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewInventoryProduct) (*InventoryProduct, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[InventoryProduct](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// QuantityOnHand is deliberately not updatable here; stock changes go
	// through movements only.
	if err := db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":             input.Name,
		"Sku":              input.Sku,
		"UnitPrice":        input.UnitPrice,
		"CostPrice":        input.CostPrice,
		"GstRate":          input.GstRate,
		"ReorderLevel":     input.ReorderLevel,
		"PricesIncludeTax": input.PricesIncludeTax,
		"CategoryId":       input.CategoryId,
	}).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*InventoryProduct, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[InventoryProduct](ctx, businessId, id)
}

func GetProductsAll(ctx context.Context) ([]*InventoryProduct, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchAllModels[InventoryProduct](ctx, businessId)
}

// GetLowStockProducts lists active products at or below their reorder level.
func GetLowStockProducts(ctx context.Context) ([]*InventoryProduct, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*InventoryProduct
	if err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = ? AND quantity_on_hand <= reorder_level", businessId, true).
		Order("name").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type NewProductCategory struct {
	Name string `json:"name" binding:"required"`
}

func CreateProductCategory(ctx context.Context, input *NewProductCategory) (*ProductCategory, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if input.Name == "" {
		return nil, utils.NewValidationError("category name is required")
	}
	if err := utils.ValidateUnique[ProductCategory](ctx, businessId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	category := ProductCategory{BusinessId: businessId, Name: input.Name}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

type Business struct {
	ID        string `gorm:"primary_key;size:64" json:"id"`
	Name      string `gorm:"size:255;not null" json:"name" binding:"required"`
	Gstin     string `gorm:"size:15" json:"gstin"`
	StateCode string `gorm:"size:2" json:"state_code"`
	// AccrueGoodsReceipts turns on the Dr Inventory / Cr GRN Accruals posting
	// for goods receipts. Off by default; receipts then have no ledger effect.
	AccrueGoodsReceipts bool      `gorm:"not null;default:false" json:"accrue_goods_receipts"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name      string `json:"name" binding:"required"`
	Gstin     string `json:"gstin"`
	StateCode string `json:"state_code"`
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	business := Business{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Gstin:     input.Gstin,
		StateCode: input.StateCode,
		IsActive:  true,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}

const businessCacheTTL = 5 * time.Minute

func businessCacheKey(businessId string) string {
	return "business-" + businessId
}

// GetBusinessById reads through a short-lived redis cache; every document
// posting consults the business row, so the settings are kept warm.
func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	var business Business
	if found, err := config.GetRedisObject(businessCacheKey(businessId), &business); err == nil && found {
		return &business, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := config.SetRedisObject(businessCacheKey(businessId), &business, businessCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "business", "GetBusinessById", "cache business", businessId, err)
	}
	return &business, nil
}

type UpdateBusinessInput struct {
	Name                *string `json:"name"`
	Gstin               *string `json:"gstin"`
	StateCode           *string `json:"state_code"`
	AccrueGoodsReceipts *bool   `json:"accrue_goods_receipts"`
}

// UpdateBusiness patches the tenant settings and drops the cached copy.
func UpdateBusiness(ctx context.Context, input *UpdateBusinessInput) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	changes := map[string]interface{}{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, utils.NewValidationError("name cannot be blank")
		}
		changes["Name"] = *input.Name
	}
	if input.Gstin != nil {
		changes["Gstin"] = *input.Gstin
	}
	if input.StateCode != nil {
		changes["StateCode"] = *input.StateCode
	}
	if input.AccrueGoodsReceipts != nil {
		changes["AccrueGoodsReceipts"] = *input.AccrueGoodsReceipts
	}
	if len(changes) == 0 {
		return nil, utils.NewValidationError("nothing to update")
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).Updates(changes)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	if err := config.RemoveRedisKey(businessCacheKey(businessId)); err != nil {
		config.LogError(config.GetLogger(), "business", "UpdateBusiness", "invalidate business cache", businessId, err)
	}
	return GetBusinessById(ctx, businessId)
}

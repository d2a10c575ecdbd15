package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

// GSTRecord buckets one tax amount into a direction and monthly tax period
// for compliance aggregation. Offsetting records (negative amounts) are how
// voids correct a period; records are never edited.
type GSTRecord struct {
	ID         int                   `gorm:"primary_key" json:"id"`
	BusinessId string                `gorm:"index;not null;index:idx_gst_biz_period,priority:1" json:"business_id" binding:"required"`
	SourceType TransactionSourceType `gorm:"size:50;not null" json:"source_type"`
	SourceId   int                   `gorm:"index" json:"source_id"`
	GstType    GstType               `gorm:"type:enum('CGST','SGST','IGST');not null" json:"gst_type"`
	Direction  GstDirection          `gorm:"type:enum('Output','Input');not null" json:"direction"`
	Amount     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"amount"`
	TaxPeriod  string                `gorm:"size:7;not null;index:idx_gst_biz_period,priority:2" json:"tax_period"`
	CreatedAt  time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

// ComputeLineGst returns the 2-decimal tax for one line. When prices include
// tax the exclusive base is derived first so the rate is not applied to an
// amount that already contains it.
func ComputeLineGst(quantity, unitPrice, gstRate decimal.Decimal, pricesIncludeTax bool) decimal.Decimal {
	price := unitPrice
	if pricesIncludeTax {
		price = utils.TaxExclusiveBase(unitPrice, gstRate)
	}
	lineSubtotal := quantity.Mul(price)
	return utils.Round2(utils.PercentOf(lineSubtotal, gstRate))
}

// TaxExclusiveUnitPrice converts a tax-inclusive unit price to its exclusive
// base. Used when building invoice lines from products flagged
// prices-include-tax.
func TaxExclusiveUnitPrice(unitPrice, gstRate decimal.Decimal) decimal.Decimal {
	return utils.TaxExclusiveBase(unitPrice, gstRate)
}

// TaxPeriodOf buckets a date into its calendar-month period ("YYYY-MM").
func TaxPeriodOf(date time.Time) string {
	return date.Format("2006-01")
}

// ClassifyGst builds the GSTRecord rows for one tax amount. Intra-state tax
// splits into equal CGST and SGST halves; inter-state supply is a single
// IGST row. Negative amounts produce offsetting rows for the same period.
func ClassifyGst(businessId string, sourceType TransactionSourceType, sourceId int, direction GstDirection, date time.Time, amount decimal.Decimal, interState bool) []GSTRecord {
	period := TaxPeriodOf(date)
	if interState {
		return []GSTRecord{{
			BusinessId: businessId,
			SourceType: sourceType,
			SourceId:   sourceId,
			GstType:    GstTypeIgst,
			Direction:  direction,
			Amount:     amount,
			TaxPeriod:  period,
		}}
	}
	half := amount.DivRound(decimal.NewFromInt(2), 2)
	return []GSTRecord{
		{
			BusinessId: businessId,
			SourceType: sourceType,
			SourceId:   sourceId,
			GstType:    GstTypeCgst,
			Direction:  direction,
			Amount:     half,
			TaxPeriod:  period,
		},
		{
			BusinessId: businessId,
			SourceType: sourceType,
			SourceId:   sourceId,
			GstType:    GstTypeSgst,
			Direction:  direction,
			// The SGST half takes the rounding remainder so the two halves
			// always sum to the line tax.
			Amount:    amount.Sub(half),
			TaxPeriod: period,
		},
	}
}

// GstPayable returns output minus input tax for one period.
func GstPayable(ctx context.Context, taxPeriod string) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, utils.NewValidationError("business id is required")
	}

	type sums struct {
		TotalOutput decimal.Decimal
		TotalInput  decimal.Decimal
	}
	var result sums
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&GSTRecord{}).
		Where("business_id = ? AND tax_period = ?", businessId, taxPeriod).
		Select(`COALESCE(SUM(CASE WHEN direction = 'Output' THEN amount ELSE 0 END),0) AS total_output,
			COALESCE(SUM(CASE WHEN direction = 'Input' THEN amount ELSE 0 END),0) AS total_input`).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.TotalOutput.Sub(result.TotalInput), nil
}

type GstPeriodSummary struct {
	TaxPeriod   string          `json:"tax_period"`
	TotalOutput decimal.Decimal `json:"total_output"`
	TotalInput  decimal.Decimal `json:"total_input"`
	NetPayable  decimal.Decimal `json:"net_payable"`
}

// GstSummaryByPeriod is the sales/purchase register aggregation consumed by
// compliance reporting, one row per month.
func GstSummaryByPeriod(ctx context.Context, fromPeriod, toPeriod string) ([]*GstPeriodSummary, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	var rows []*GstPeriodSummary
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&GSTRecord{}).
		Where("business_id = ?", businessId)
	if fromPeriod != "" {
		dbCtx = dbCtx.Where("tax_period >= ?", fromPeriod)
	}
	if toPeriod != "" {
		dbCtx = dbCtx.Where("tax_period <= ?", toPeriod)
	}
	if err := dbCtx.
		Select(`tax_period,
			COALESCE(SUM(CASE WHEN direction = 'Output' THEN amount ELSE 0 END),0) AS total_output,
			COALESCE(SUM(CASE WHEN direction = 'Input' THEN amount ELSE 0 END),0) AS total_input`).
		Group("tax_period").
		Order("tax_period").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		row.NetPayable = row.TotalOutput.Sub(row.TotalInput)
	}
	return rows, nil
}

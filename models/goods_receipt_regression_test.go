package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/models"
	"github.com/vyapaarhq/books_backend/utils"
)

// PO -> partial GRN -> closing GRN -> over-receipt, with the accrual posting
// enabled so receipts also hit the ledger.
func TestGoodsReceiptProgressionAndOverReceipt(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "vyapaar_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.AutoMigrate(config.GetDB()); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Receiving Co", StateCode: "27"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID)

	accrue := true
	updated, err := models.UpdateBusiness(ctx, &models.UpdateBusinessInput{AccrueGoodsReceipts: &accrue})
	if err != nil {
		t.Fatalf("enable accrual: %v", err)
	}
	if !updated.AccrueGoodsReceipts {
		t.Fatal("accrual flag not persisted")
	}

	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Supply Traders"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewInventoryProduct{
		Name:      "Bolt",
		Sku:       "BOLT-1",
		UnitPrice: decimal.NewFromInt(20),
		CostPrice: decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	poDate := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	draft, err := models.CreatePurchaseOrderDraft(ctx, &models.NewPurchaseOrder{
		VendorId: vendor.ID,
		PoDate:   poDate,
		Items: []models.NewPurchaseOrderItem{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(10), UnitRate: decimal.NewFromInt(12)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrderDraft: %v", err)
	}

	// Receipts against a draft are rejected.
	if _, err := models.CreateGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PurchaseOrderId: draft.ID,
		ReceivedDate:    poDate,
		Items: []models.NewGoodsReceiptItem{
			{PurchaseOrderItemId: draft.Items[0].ID, QuantityReceived: decimal.NewFromInt(1)},
		},
	}); err == nil {
		t.Fatal("receipt against a draft order must fail")
	}

	issued, err := models.IssuePurchaseOrder(ctx, draft.ID)
	if err != nil {
		t.Fatalf("IssuePurchaseOrder: %v", err)
	}
	if issued.PoNumber == nil || !strings.HasPrefix(*issued.PoNumber, "PO-") {
		t.Fatalf("po number = %v", issued.PoNumber)
	}
	lineId := issued.Items[0].ID

	// Partial receipt of 6.
	if _, err := models.CreateGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PurchaseOrderId: issued.ID,
		ReceivedDate:    poDate.AddDate(0, 0, 3),
		Items: []models.NewGoodsReceiptItem{
			{PurchaseOrderItemId: lineId, QuantityReceived: decimal.NewFromInt(6)},
		},
	}); err != nil {
		t.Fatalf("partial receipt: %v", err)
	}
	order, err := models.GetPurchaseOrder(ctx, issued.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	if order.CurrentStatus != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("status after partial = %s", order.CurrentStatus)
	}
	mustStock(t, ctx, biz.ID, product.ID, "6")
	mustBalance(t, ctx, models.AccountInventory, "72")
	mustBalance(t, ctx, models.AccountGrnAccruals, "72")

	// Receiving 5 against the remaining 4 is an over-receipt; nothing from
	// the failed receipt may stick.
	_, err = models.CreateGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PurchaseOrderId: issued.ID,
		ReceivedDate:    poDate.AddDate(0, 0, 5),
		Items: []models.NewGoodsReceiptItem{
			{PurchaseOrderItemId: lineId, QuantityReceived: decimal.NewFromInt(5)},
		},
	})
	if !errors.Is(err, utils.ErrorOverReceipt) {
		t.Fatalf("want ErrorOverReceipt, got %v", err)
	}
	mustStock(t, ctx, biz.ID, product.ID, "6")
	mustBalance(t, ctx, models.AccountInventory, "72")

	// Closing receipt of the remaining 4.
	if _, err := models.CreateGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PurchaseOrderId: issued.ID,
		ReceivedDate:    poDate.AddDate(0, 0, 8),
		Items: []models.NewGoodsReceiptItem{
			{PurchaseOrderItemId: lineId, QuantityReceived: decimal.NewFromInt(4)},
		},
	}); err != nil {
		t.Fatalf("closing receipt: %v", err)
	}
	order, err = models.GetPurchaseOrder(ctx, issued.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	if order.CurrentStatus != models.PurchaseOrderStatusClosed {
		t.Fatalf("status after close = %s", order.CurrentStatus)
	}
	mustStock(t, ctx, biz.ID, product.ID, "10")
	mustBalance(t, ctx, models.AccountInventory, "120")

	// A closed order accepts no further receipts.
	if _, err := models.CreateGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PurchaseOrderId: issued.ID,
		ReceivedDate:    poDate.AddDate(0, 0, 9),
		Items: []models.NewGoodsReceiptItem{
			{PurchaseOrderItemId: lineId, QuantityReceived: decimal.NewFromInt(1)},
		},
	}); err == nil {
		t.Fatal("receipt against a closed order must fail")
	}
	mustStock(t, ctx, biz.ID, product.ID, "10")
	mustBalance(t, ctx, models.AccountInventory, "120")

	// With accrual left at its default (off), receipts move stock but
	// never touch the ledger.
	plainBiz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Cash Basis Co", StateCode: "27"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	plainCtx := utils.SetBusinessIdInContext(context.Background(), plainBiz.ID)
	plainVendor, err := models.CreateVendor(plainCtx, &models.NewVendor{Name: "Plain Supply"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	plainProduct, err := models.CreateProduct(plainCtx, &models.NewInventoryProduct{
		Name:      "Nut",
		Sku:       "NUT-1",
		UnitPrice: decimal.NewFromInt(8),
		CostPrice: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	plainDraft, err := models.CreatePurchaseOrderDraft(plainCtx, &models.NewPurchaseOrder{
		VendorId: plainVendor.ID,
		PoDate:   poDate,
		Items: []models.NewPurchaseOrderItem{
			{ProductId: plainProduct.ID, Quantity: decimal.NewFromInt(3), UnitRate: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrderDraft: %v", err)
	}
	plainIssued, err := models.IssuePurchaseOrder(plainCtx, plainDraft.ID)
	if err != nil {
		t.Fatalf("IssuePurchaseOrder: %v", err)
	}
	if _, err := models.CreateGoodsReceipt(plainCtx, &models.NewGoodsReceipt{
		PurchaseOrderId: plainIssued.ID,
		ReceivedDate:    poDate.AddDate(0, 0, 2),
		Items: []models.NewGoodsReceiptItem{
			{PurchaseOrderItemId: plainIssued.Items[0].ID, QuantityReceived: decimal.NewFromInt(3)},
		},
	}); err != nil {
		t.Fatalf("full receipt: %v", err)
	}
	mustStock(t, plainCtx, plainBiz.ID, plainProduct.ID, "3")
	mustBalance(t, plainCtx, models.AccountInventory, "0")
	mustBalance(t, plainCtx, models.AccountGrnAccruals, "0")
}

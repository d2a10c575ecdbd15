package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/models"
	"github.com/vyapaarhq/books_backend/utils"
)

// Full invoice lifecycle against a real MySQL: draft -> issue -> pay, then a
// second invoice issued and voided. Checks ledger balances, stock and GST
// records at each step.
func TestInvoiceLifecycleLedgerAndStock(t *testing.T) {
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

	ctx = utils.SetUserIdInContext(ctx, 1)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:      "Lifecycle Traders",
		Gstin:     "27AAAAA0000A1Z5",
		StateCode: "27",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:      "Acme Stores",
		StateCode: "27",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	product, err := models.CreateProduct(ctx, &models.NewInventoryProduct{
		Name:      "Widget",
		Sku:       "WID-1",
		UnitPrice: decimal.NewFromInt(500),
		CostPrice: decimal.NewFromInt(300),
		GstRate:   decimal.NewFromInt(18),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	seedStock(t, ctx, biz.ID, product.ID, decimal.NewFromInt(10))

	invoiceDate := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)

	// Draft -> issue.
	draft, err := models.CreateInvoiceDraft(ctx, &models.NewInvoice{
		CustomerId:  customer.ID,
		InvoiceDate: invoiceDate,
		DueDate:     invoiceDate.AddDate(0, 0, 30),
		Items: []models.NewInvoiceItem{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(2), UnitRate: decimal.NewFromInt(500)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoiceDraft: %v", err)
	}
	if draft.CurrentStatus != models.InvoiceStatusDraft {
		t.Fatalf("draft status = %s", draft.CurrentStatus)
	}
	if draft.CustomerName != "Acme Stores" || draft.PlaceOfSupply != "27" {
		t.Fatalf("derived customer fields = %q / %q", draft.CustomerName, draft.PlaceOfSupply)
	}

	// Editing the draft without resending the denormalized customer fields
	// re-derives them instead of blanking them.
	draft, err = models.UpdateInvoiceDraft(ctx, draft.ID, &models.NewInvoice{
		CustomerId:  customer.ID,
		InvoiceDate: invoiceDate,
		DueDate:     invoiceDate.AddDate(0, 0, 30),
		Items: []models.NewInvoiceItem{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(2), UnitRate: decimal.NewFromInt(500)},
		},
	})
	if err != nil {
		t.Fatalf("UpdateInvoiceDraft: %v", err)
	}
	if draft.CustomerName != "Acme Stores" || draft.PlaceOfSupply != "27" {
		t.Fatalf("updated draft customer fields = %q / %q", draft.CustomerName, draft.PlaceOfSupply)
	}

	issued, err := models.IssueInvoice(ctx, draft.ID)
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if issued.CurrentStatus != models.InvoiceStatusIssued {
		t.Fatalf("issued status = %s", issued.CurrentStatus)
	}
	if issued.InvoiceNumber == nil || !strings.HasPrefix(*issued.InvoiceNumber, "INV-") {
		t.Fatalf("invoice number = %v", issued.InvoiceNumber)
	}
	if !issued.TotalAmount.Equal(decimal.NewFromInt(1180)) {
		t.Fatalf("total = %s, want 1180", issued.TotalAmount)
	}

	mustBalance(t, ctx, models.AccountAccountsReceivable, "1180")
	mustBalance(t, ctx, models.AccountSales, "1000")
	mustBalance(t, ctx, models.AccountGstOutput, "180")
	mustStock(t, ctx, biz.ID, product.ID, "8")

	payable, err := models.GstPayable(ctx, "2026-05")
	if err != nil {
		t.Fatalf("GstPayable: %v", err)
	}
	if !payable.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("gst payable = %s, want 180", payable)
	}

	// Pay in two installments; invoice flips to Paid on the second.
	if _, err := models.RecordInvoicePayment(ctx, issued.ID, &models.NewPayment{
		PaymentMethod: models.PaymentMethodBankTransfer,
		PaymentDate:   invoiceDate.AddDate(0, 0, 5),
		Amount:        decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	partPaid, err := models.GetInvoice(ctx, issued.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if partPaid.CurrentStatus != models.InvoiceStatusIssued {
		t.Fatalf("status after partial payment = %s", partPaid.CurrentStatus)
	}

	if _, err := models.RecordInvoicePayment(ctx, issued.ID, &models.NewPayment{
		PaymentMethod: models.PaymentMethodBankTransfer,
		PaymentDate:   invoiceDate.AddDate(0, 0, 6),
		Amount:        decimal.NewFromInt(180),
	}); err != nil {
		t.Fatalf("second payment: %v", err)
	}
	paid, err := models.GetInvoice(ctx, issued.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if paid.CurrentStatus != models.InvoiceStatusPaid {
		t.Fatalf("status after full payment = %s", paid.CurrentStatus)
	}
	mustBalance(t, ctx, models.AccountAccountsReceivable, "0")
	mustBalance(t, ctx, models.AccountBank, "1180")

	// Paid invoices cannot be voided.
	if _, err := models.VoidInvoice(ctx, paid.ID, "mistake"); err == nil {
		t.Fatal("voiding a paid invoice must fail")
	}

	// Second invoice: issue then void. Everything it touched must net to
	// zero and stock must be restored.
	second, err := models.CreateInvoiceDraft(ctx, &models.NewInvoice{
		CustomerId:  customer.ID,
		InvoiceDate: invoiceDate,
		DueDate:     invoiceDate.AddDate(0, 0, 30),
		Items: []models.NewInvoiceItem{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(3), UnitRate: decimal.NewFromInt(500)},
		},
	})
	if err != nil {
		t.Fatalf("second draft: %v", err)
	}
	if _, err := models.IssueInvoice(ctx, second.ID); err != nil {
		t.Fatalf("second issue: %v", err)
	}
	mustStock(t, ctx, biz.ID, product.ID, "5")

	if _, err := models.VoidInvoice(ctx, second.ID, "customer cancelled"); err != nil {
		t.Fatalf("VoidInvoice: %v", err)
	}
	voided, err := models.GetInvoice(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if voided.CurrentStatus != models.InvoiceStatusVoided || voided.VoidedAt == nil {
		t.Fatalf("void status = %s, voided_at = %v", voided.CurrentStatus, voided.VoidedAt)
	}

	// Balances as after the first invoice's payment alone.
	mustBalance(t, ctx, models.AccountAccountsReceivable, "0")
	mustBalance(t, ctx, models.AccountSales, "1000")
	mustBalance(t, ctx, models.AccountGstOutput, "180")
	mustStock(t, ctx, biz.ID, product.ID, "8")

	payable, err = models.GstPayable(ctx, "2026-05")
	if err != nil {
		t.Fatalf("GstPayable after void: %v", err)
	}
	if !payable.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("gst payable after void = %s, want 180", payable)
	}

	// Movement log agrees with the cached quantity.
	consistent, drift, err := models.CheckMovementConsistency(ctx, product.ID)
	if err != nil {
		t.Fatalf("CheckMovementConsistency: %v", err)
	}
	if !consistent {
		t.Fatalf("movement drift = %s, want 0", drift)
	}
}

func TestReconciliationOneToOne(t *testing.T) {
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

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Recon Co"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID)

	date := time.Date(2026, time.June, 3, 0, 0, 0, 0, time.UTC)
	txn, err := models.PostStandaloneTransaction(ctx, &models.NewTransaction{
		SourceType:      models.SourceTypeJournal,
		TransactionDate: date,
		Description:     "Rent received",
		Entries: []models.NewLedgerEntry{
			{AccountName: models.AccountBank, Debit: decimal.NewFromInt(2500)},
			{AccountName: models.AccountSales, Credit: decimal.NewFromInt(2500)},
		},
	})
	if err != nil {
		t.Fatalf("PostStandaloneTransaction: %v", err)
	}

	imported, err := models.ImportBankTransactions(ctx, []models.NewBankTransaction{
		{TransactionDate: date, Amount: decimal.NewFromInt(2500), Description: "IMPS rent received"},
	})
	if err != nil {
		t.Fatalf("ImportBankTransactions: %v", err)
	}
	bankTxn := imported[0]

	candidates, err := models.MatchBankTransaction(ctx, bankTxn.ID)
	if err != nil {
		t.Fatalf("MatchBankTransaction: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Transaction.ID != txn.ID {
		t.Fatalf("candidates = %+v", candidates)
	}

	if _, err := models.ConfirmReconciliation(ctx, bankTxn.ID, txn.ID); err != nil {
		t.Fatalf("ConfirmReconciliation: %v", err)
	}
	// Both sides are consumed: confirming again must fail, and the matched
	// transaction must not come back as a candidate.
	if _, err := models.ConfirmReconciliation(ctx, bankTxn.ID, txn.ID); err == nil {
		t.Fatal("double reconciliation must fail")
	}
	unmatched, err := models.GetUnreconciledBankTransactions(ctx)
	if err != nil {
		t.Fatalf("GetUnreconciledBankTransactions: %v", err)
	}
	for _, b := range unmatched {
		if b.ID == bankTxn.ID {
			t.Fatal("reconciled statement line still listed as unreconciled")
		}
	}
}

func mustBalance(t *testing.T, ctx context.Context, account, want string) {
	t.Helper()
	got, err := models.AccountBalance(ctx, account, nil)
	if err != nil {
		t.Fatalf("AccountBalance(%s): %v", account, err)
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s balance = %s, want %s", account, got, want)
	}
}

func mustStock(t *testing.T, ctx context.Context, businessId string, productId int, want string) {
	t.Helper()
	db := config.GetDB()
	var product models.InventoryProduct
	if err := db.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, productId).First(&product).Error; err != nil {
		t.Fatalf("fetch product: %v", err)
	}
	if !product.QuantityOnHand.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("stock = %s, want %s", product.QuantityOnHand, want)
	}
}

func seedStock(t *testing.T, ctx context.Context, businessId string, productId int, qty decimal.Decimal) {
	t.Helper()
	db := config.GetDB()
	tx := db.Begin()
	if err := models.ApplyProductStockChange(ctx, tx, businessId, productId, qty, models.MovementTypeAdjustment, "opening stock"); err != nil {
		tx.Rollback()
		t.Fatalf("seed stock: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("seed stock commit: %v", err)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("books-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("books-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=vyapaar_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

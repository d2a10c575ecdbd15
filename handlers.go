package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/vyapaarhq/books_backend/models"
	"github.com/vyapaarhq/books_backend/utils"
)

func registerRoutes(r *gin.Engine) {
	r.POST("/businesses", createBusinessHandler)
	r.GET("/business", getBusinessHandler)
	r.PATCH("/business", updateBusinessHandler)

	r.POST("/customers", createCustomerHandler)
	r.GET("/customers", listCustomersHandler)
	r.POST("/vendors", createVendorHandler)
	r.GET("/vendors", listVendorsHandler)

	r.POST("/product-categories", createProductCategoryHandler)
	r.POST("/products", createProductHandler)
	r.PUT("/products/:id", updateProductHandler)
	r.GET("/products", listProductsHandler)
	r.GET("/products/low-stock", lowStockProductsHandler)
	r.GET("/products/:id/movements", productMovementsHandler)

	r.POST("/invoices", createInvoiceHandler)
	r.PUT("/invoices/:id", updateInvoiceHandler)
	r.DELETE("/invoices/:id", deleteInvoiceHandler)
	r.POST("/invoices/:id/issue", issueInvoiceHandler)
	r.POST("/invoices/:id/void", voidInvoiceHandler)
	r.POST("/invoices/:id/payments", recordInvoicePaymentHandler)
	r.GET("/invoices/:id/payments", listInvoicePaymentsHandler)
	r.GET("/invoices/:id", getInvoiceHandler)
	r.GET("/invoices", listInvoicesHandler)

	r.POST("/payments", createPaymentHandler)
	r.POST("/payments/:id/cancel", cancelPaymentHandler)

	r.POST("/expenses", createExpenseHandler)
	r.GET("/expenses", listExpensesHandler)

	r.POST("/purchase-orders", createPurchaseOrderHandler)
	r.PUT("/purchase-orders/:id", updatePurchaseOrderHandler)
	r.DELETE("/purchase-orders/:id", deletePurchaseOrderHandler)
	r.POST("/purchase-orders/:id/issue", issuePurchaseOrderHandler)
	r.GET("/purchase-orders/:id/receipts", listPurchaseOrderReceiptsHandler)
	r.GET("/purchase-orders/:id", getPurchaseOrderHandler)
	r.GET("/purchase-orders", listPurchaseOrdersHandler)

	r.POST("/goods-receipts", createGoodsReceiptHandler)
	r.GET("/goods-receipts/:id", getGoodsReceiptHandler)

	r.POST("/journal-entries", postJournalEntryHandler)
	r.GET("/transactions/:id", getTransactionHandler)
	r.GET("/accounts/balance", accountBalanceHandler)

	r.POST("/bank-transactions/import", importBankTransactionsHandler)
	r.GET("/bank-transactions/unreconciled", unreconciledBankTransactionsHandler)
	r.GET("/bank-transactions/:id/matches", matchBankTransactionHandler)
	r.POST("/reconciliations", confirmReconciliationHandler)
	r.DELETE("/reconciliations/:id", unmatchReconciliationHandler)
	r.GET("/reconciliations", listReconciliationsHandler)

	r.GET("/reports/profit-loss", profitLossHandler)
	r.GET("/reports/balance-sheet", balanceSheetHandler)
	r.GET("/reports/overdue-invoices", overdueInvoicesHandler)
	r.GET("/reports/gst/payable", gstPayableHandler)
	r.GET("/reports/gst/summary", gstSummaryHandler)
}

// respondError maps domain errors onto HTTP statuses. Validation and state
// errors are client faults; anything unclassified is a 500.
func respondError(c *gin.Context, err error) {
	var validationErr *utils.ValidationError
	var stateErr *utils.InvalidStateTransitionError
	var imbalanceErr *utils.ImbalancedTransactionError
	var duplicateErr *utils.DuplicateDocumentNumberError
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorOverReceipt):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr),
		errors.As(err, &imbalanceErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindJSON binds the request body, answering field-tagged 400s for binding
// failures so clients see which field tripped which rule.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var bindErrs validator.ValidationErrors
	if errors.As(err, &bindErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(bindErrs)})
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	return false
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func optionalDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " (want YYYY-MM-DD)"})
		return nil, false
	}
	return &parsed, true
}

func createBusinessHandler(c *gin.Context) {
	var input models.NewBusiness
	if !bindJSON(c, &input) {
		return
	}
	business, err := models.CreateBusiness(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, business)
}

func getBusinessHandler(c *gin.Context) {
	business, err := models.GetBusiness(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, business)
}

func updateBusinessHandler(c *gin.Context) {
	var input models.UpdateBusinessInput
	if !bindJSON(c, &input) {
		return
	}
	business, err := models.UpdateBusiness(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, business)
}

func createCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func listCustomersHandler(c *gin.Context) {
	customers, err := models.GetCustomersAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func createVendorHandler(c *gin.Context) {
	var input models.NewVendor
	if !bindJSON(c, &input) {
		return
	}
	vendor, err := models.CreateVendor(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func listVendorsHandler(c *gin.Context) {
	vendors, err := models.GetVendorsAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendors)
}

func createProductCategoryHandler(c *gin.Context) {
	var input models.NewProductCategory
	if !bindJSON(c, &input) {
		return
	}
	category, err := models.CreateProductCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func createProductHandler(c *gin.Context) {
	var input models.NewInventoryProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func updateProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewInventoryProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.GetProductsAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func lowStockProductsHandler(c *gin.Context) {
	products, err := models.GetLowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func productMovementsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	movements, err := models.GetProductMovements(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func createInvoiceHandler(c *gin.Context) {
	var input models.NewInvoice
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.CreateInvoiceDraft(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func updateInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewInvoice
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.UpdateInvoiceDraft(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func deleteInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if _, err := models.DeleteInvoiceDraft(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func issueInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "IssueInvoice")
	defer span.End()
	invoice, err := models.IssueInvoice(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type voidInvoiceRequest struct {
	Reason string `json:"reason"`
}

func voidInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req voidInvoiceRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	ctx, span := tracer.Start(c.Request.Context(), "VoidInvoice")
	defer span.End()
	invoice, err := models.VoidInvoice(ctx, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func recordInvoicePaymentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.RecordInvoicePayment(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func listInvoicePaymentsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	payments, err := models.GetInvoicePayments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func getInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func listInvoicesHandler(c *gin.Context) {
	var status *models.InvoiceStatus
	if raw := c.Query("status"); raw != "" {
		s := models.InvoiceStatus(raw)
		status = &s
	}
	invoices, err := models.GetInvoicesAll(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func createPaymentHandler(c *gin.Context) {
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.CreatePayment(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func cancelPaymentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	payment, err := models.CancelPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func createExpenseHandler(c *gin.Context) {
	var input models.NewExpense
	if !bindJSON(c, &input) {
		return
	}
	expense, err := models.CreateExpense(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func listExpensesHandler(c *gin.Context) {
	from, ok := optionalDate(c, "from")
	if !ok {
		return
	}
	to, ok := optionalDate(c, "to")
	if !ok {
		return
	}
	expenses, err := models.GetExpensesAll(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func createPurchaseOrderHandler(c *gin.Context) {
	var input models.NewPurchaseOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.CreatePurchaseOrderDraft(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func updatePurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewPurchaseOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.UpdatePurchaseOrderDraft(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func deletePurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if _, err := models.DeletePurchaseOrderDraft(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func issuePurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.IssuePurchaseOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func listPurchaseOrderReceiptsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	receipts, err := models.GetPurchaseOrderReceipts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func getPurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func listPurchaseOrdersHandler(c *gin.Context) {
	var status *models.PurchaseOrderStatus
	if raw := c.Query("status"); raw != "" {
		s := models.PurchaseOrderStatus(raw)
		status = &s
	}
	orders, err := models.GetPurchaseOrdersAll(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func createGoodsReceiptHandler(c *gin.Context) {
	var input models.NewGoodsReceipt
	if !bindJSON(c, &input) {
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "CreateGoodsReceipt")
	defer span.End()
	receipt, err := models.CreateGoodsReceipt(ctx, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func getGoodsReceiptHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	receipt, err := models.GetGoodsReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func postJournalEntryHandler(c *gin.Context) {
	var input models.NewTransaction
	if !bindJSON(c, &input) {
		return
	}
	input.SourceType = models.SourceTypeJournal
	transaction, err := models.PostStandaloneTransaction(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

func getTransactionHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	transaction, err := models.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

func accountBalanceHandler(c *gin.Context) {
	accountName := c.Query("account")
	if accountName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account is required"})
		return
	}
	asOf, ok := optionalDate(c, "as_of")
	if !ok {
		return
	}
	balance, err := models.AccountBalance(c.Request.Context(), accountName, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": accountName, "balance": balance})
}

func importBankTransactionsHandler(c *gin.Context) {
	var input []models.NewBankTransaction
	if !bindJSON(c, &input) {
		return
	}
	records, err := models.ImportBankTransactions(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(records)})
}

func unreconciledBankTransactionsHandler(c *gin.Context) {
	records, err := models.GetUnreconciledBankTransactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func matchBankTransactionHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	candidates, err := models.MatchBankTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

type confirmReconciliationRequest struct {
	BankTransactionId int `json:"bank_transaction_id" binding:"required"`
	TransactionId     int `json:"transaction_id" binding:"required"`
}

func confirmReconciliationHandler(c *gin.Context) {
	var req confirmReconciliationRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := models.ConfirmReconciliation(c.Request.Context(), req.BankTransactionId, req.TransactionId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func unmatchReconciliationHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.UnmatchReconciliation(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listReconciliationsHandler(c *gin.Context) {
	records, err := models.GetReconciliations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func profitLossHandler(c *gin.Context) {
	asOf, ok := optionalDate(c, "as_of")
	if !ok {
		return
	}
	revenue, err := models.TotalRevenue(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	expenses, err := models.TotalExpenses(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"revenue":    revenue,
		"expenses":   expenses,
		"net_profit": revenue.Sub(expenses),
	})
}

func balanceSheetHandler(c *gin.Context) {
	asOf, ok := optionalDate(c, "as_of")
	if !ok {
		return
	}
	date := time.Now().UTC()
	if asOf != nil {
		date = *asOf
	}
	sheet, err := models.GetBalanceSheet(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func overdueInvoicesHandler(c *gin.Context) {
	asOf, ok := optionalDate(c, "as_of")
	if !ok {
		return
	}
	date := time.Now().UTC()
	if asOf != nil {
		date = *asOf
	}
	invoices, err := models.OverdueInvoices(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func gstPayableHandler(c *gin.Context) {
	period := c.Query("period")
	if period == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period is required (YYYY-MM)"})
		return
	}
	payable, err := models.GstPayable(c.Request.Context(), period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "payable": payable})
}

func gstSummaryHandler(c *gin.Context) {
	summary, err := models.GstSummaryByPeriod(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

package models

type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "Draft"
	InvoiceStatusIssued InvoiceStatus = "Issued"
	InvoiceStatusPaid   InvoiceStatus = "Paid"
	InvoiceStatusVoided InvoiceStatus = "Voided"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft             PurchaseOrderStatus = "Draft"
	PurchaseOrderStatusIssued            PurchaseOrderStatus = "Issued"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "Partially Received"
	PurchaseOrderStatusClosed            PurchaseOrderStatus = "Closed"
)

type PaymentType string

const (
	PaymentTypeReceived PaymentType = "Received"
	PaymentTypeMade     PaymentType = "Made"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodBankTransfer PaymentMethod = "Bank Transfer"
	PaymentMethodCard         PaymentMethod = "Card"
	PaymentMethodUpi          PaymentMethod = "UPI"
	PaymentMethodCheque       PaymentMethod = "Cheque"
)

type MovementType string

const (
	MovementTypeReceipt      MovementType = "Receipt"
	MovementTypeSale         MovementType = "Sale"
	MovementTypeSaleReversal MovementType = "Sale Reversal"
	MovementTypeAdjustment   MovementType = "Adjustment"
)

type GstType string

const (
	GstTypeCgst GstType = "CGST"
	GstTypeSgst GstType = "SGST"
	GstTypeIgst GstType = "IGST"
)

type GstDirection string

const (
	GstDirectionOutput GstDirection = "Output"
	GstDirectionInput  GstDirection = "Input"
)

// TransactionSourceType identifies the business event a ledger transaction
// was posted for.
type TransactionSourceType string

const (
	SourceTypeInvoice      TransactionSourceType = "Invoice"
	SourceTypePayment      TransactionSourceType = "Payment"
	SourceTypeExpense      TransactionSourceType = "Expense"
	SourceTypeGoodsReceipt TransactionSourceType = "Goods Receipt"
	SourceTypeReversal     TransactionSourceType = "Reversal"
	SourceTypeJournal      TransactionSourceType = "Journal"
)

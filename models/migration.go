package models

import "gorm.io/gorm"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&Customer{},
		&Vendor{},
		&ProductCategory{},
		&InventoryProduct{},
		&InventoryMovement{},
		&Transaction{},
		&LedgerEntry{},
		&GSTRecord{},
		&Invoice{},
		&InvoiceItem{},
		&Payment{},
		&Expense{},
		&PurchaseOrder{},
		&PurchaseOrderItem{},
		&GoodsReceipt{},
		&GoodsReceiptItem{},
		&BankTransaction{},
		&BankReconciliation{},
	)
}

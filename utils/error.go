package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorOverReceipt is returned when a goods receipt would push the cumulative
// received quantity of a purchase order item past its ordered quantity.
var ErrorOverReceipt = errors.New("received quantity exceeds ordered quantity")

// ValidationError reports malformed caller input. Recoverable: the caller can
// correct the input and retry.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidStateTransitionError reports an illegal document lifecycle move.
// The operation is rejected with no partial effect.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

// ImbalancedTransactionError means a caller computed a ledger entry set whose
// debits and credits do not match. This is a programming error, not user
// input; it is logged loudly at the posting site.
type ImbalancedTransactionError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *ImbalancedTransactionError) Error() string {
	return fmt.Sprintf("transaction entries are imbalanced: debit %s != credit %s",
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))
}

// DuplicateDocumentNumberError reports a business-scoped document number
// collision (invoice/PO/GRN). Callers may retry with a fresh number.
type DuplicateDocumentNumberError struct {
	Entity string
	Number string
}

func (e *DuplicateDocumentNumberError) Error() string {
	return fmt.Sprintf("duplicate %s number %q", e.Entity, e.Number)
}

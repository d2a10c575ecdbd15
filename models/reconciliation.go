package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vyapaarhq/books_backend/config"
	"github.com/vyapaarhq/books_backend/utils"
)

// BankReconciliation is a confirmed one-to-one link between a statement
// line and a ledger transaction. Both sides carry a unique index so neither
// can be matched twice.
type BankReconciliation struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id" binding:"required"`
	BankTransactionId int             `gorm:"uniqueIndex:uniq_recon_bank_txn;not null" json:"bank_transaction_id" binding:"required"`
	TransactionId     int             `gorm:"uniqueIndex:uniq_recon_ledger_txn;not null" json:"transaction_id" binding:"required"`
	MatchScore        decimal.Decimal `gorm:"type:decimal(5,4);default:0" json:"match_score"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type MatchCandidate struct {
	Transaction *Transaction    `json:"transaction"`
	Score       decimal.Decimal `json:"score"`
}

// scoreBankMatch ranks an amount-matched ledger transaction against a
// statement line. The base score covers the amount match; date proximity
// (within a week) and description token overlap add the rest.
func scoreBankMatch(bankDate time.Time, bankDescription string, txnDate time.Time, txnDescription string) decimal.Decimal {
	score := decimal.NewFromFloat(0.5)

	dayDiff := bankDate.Sub(txnDate).Hours() / 24
	if dayDiff < 0 {
		dayDiff = -dayDiff
	}
	if dayDiff <= 7 {
		proximity := decimal.NewFromFloat(0.3).Mul(decimal.NewFromFloat(1 - dayDiff/7))
		score = score.Add(proximity)
	}

	overlap := descriptionOverlap(bankDescription, txnDescription)
	score = score.Add(decimal.NewFromFloat(0.2).Mul(overlap))

	return score.Round(4)
}

// descriptionOverlap returns the fraction of the shorter description's
// tokens that appear in the longer one, in [0,1].
func descriptionOverlap(a, b string) decimal.Decimal {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return decimal.Zero
	}
	if len(tokensB) < len(tokensA) {
		tokensA, tokensB = tokensB, tokensA
	}
	set := make(map[string]bool, len(tokensB))
	for _, token := range tokensB {
		set[token] = true
	}
	matched := 0
	for _, token := range tokensA {
		if set[token] {
			matched++
		}
	}
	return decimal.NewFromInt(int64(matched)).Div(decimal.NewFromInt(int64(len(tokensA)))).Round(4)
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, ".,;:-/#")
		if len(field) >= 3 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// MatchBankTransaction proposes ledger transactions for a statement line.
// Candidates must match the absolute amount exactly and not be reconciled
// already; they come back sorted by score, best first.
func MatchBankTransaction(ctx context.Context, bankTransactionId int) ([]MatchCandidate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	bankTxn, err := utils.FetchModel[BankTransaction](ctx, businessId, bankTransactionId)
	if err != nil {
		return nil, err
	}

	amount := bankTxn.Amount.Abs()
	db := config.GetDB()
	var candidates []*Transaction
	if err := db.WithContext(ctx).
		Where("business_id = ? AND total_amount = ?", businessId, amount).
		Where("id NOT IN (?)", db.Model(&BankReconciliation{}).Select("transaction_id").Where("business_id = ?", businessId)).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	results := make([]MatchCandidate, 0, len(candidates))
	for _, txn := range candidates {
		results = append(results, MatchCandidate{
			Transaction: txn,
			Score:       scoreBankMatch(bankTxn.TransactionDate, bankTxn.Description, txn.TransactionDate, txn.Description),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score.GreaterThan(results[j].Score)
	})
	return results, nil
}

// ConfirmReconciliation links a statement line to a ledger transaction.
// Either side being already reconciled is a validation error; the unique
// indexes are the concurrency backstop.
func ConfirmReconciliation(ctx context.Context, bankTransactionId, transactionId int) (*BankReconciliation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	bankTxn, err := utils.FetchModel[BankTransaction](ctx, businessId, bankTransactionId)
	if err != nil {
		return nil, err
	}
	txn, err := GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	if !bankTxn.Amount.Abs().Equal(txn.TotalAmount) {
		return nil, utils.NewValidationError("statement amount %s does not match transaction amount %s",
			bankTxn.Amount.Abs().String(), txn.TotalAmount.String())
	}

	db := config.GetDB()
	var existing int64
	if err := db.WithContext(ctx).Model(&BankReconciliation{}).
		Where("business_id = ? AND (bank_transaction_id = ? OR transaction_id = ?)", businessId, bankTransactionId, transactionId).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.NewValidationError("already reconciled")
	}

	record := BankReconciliation{
		BusinessId:        businessId,
		BankTransactionId: bankTransactionId,
		TransactionId:     transactionId,
		MatchScore:        scoreBankMatch(bankTxn.TransactionDate, bankTxn.Description, txn.TransactionDate, txn.Description),
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, utils.NewValidationError("already reconciled")
		}
		return nil, err
	}
	return &record, nil
}

// UnmatchReconciliation removes a confirmed link, returning both sides to
// the unreconciled pool.
func UnmatchReconciliation(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	result := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		Delete(&BankReconciliation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetReconciliations(ctx context.Context) ([]*BankReconciliation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	db := config.GetDB()
	var results []*BankReconciliation
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

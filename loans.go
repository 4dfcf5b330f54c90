package main

import (
	"time"

	"bankoffice/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// disbursementTolerance is the relative slack allowed when deciding that a
// loan is fully disbursed (0.1% of the principal).
var disbursementTolerance = decimal.NewFromFloat(0.001)

// loanView is the joined shape the loan endpoints return.
type loanView struct {
	LoanID      string          `json:"loan_id"`
	Branch      string          `json:"branch"`
	Principal   decimal.Decimal `json:"principal"`
	CreatedDate string          `json:"created_date"`
	Borrowers   []string        `json:"borrowers"`
	PaidHistory []paidView      `json:"paid_history"`
}

type paidView struct {
	ID     uint            `json:"id"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// disbursementComplete reports whether paid covers the principal within the
// relative tolerance, which is the precondition for deleting a loan.
func disbursementComplete(paid, principal decimal.Decimal) bool {
	slack := principal.Mul(disbursementTolerance).Abs()
	return principal.Sub(paid).Abs().LessThanOrEqual(slack)
}

// paidSum reads the disbursed total for a loan inside the given handle.
func paidSum(tx *gorm.DB, loanID string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := tx.Raw("SELECT COALESCE(SUM(amount), 0) AS total FROM paid_records WHERE loan_id = ?", loanID).
		Scan(&row).Error
	return row.Total, err
}

// issueLoan creates the loan record plus one borrower relation per customer
// in a single transaction. A failed insert releases the reserved loan id.
func issueLoan(branch string, principal decimal.Decimal, borrowers []string) (*loanView, error) {
	borrowers = dedupe(borrowers)
	if len(borrowers) == 0 {
		return nil, errEmptyPartyList
	}
	if !principal.IsPositive() {
		return nil, errBadAmount
	}
	loanID, err := loanAlloc.Reserve()
	if err != nil {
		return nil, err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		rec := models.LoanRecord{
			LoanID:      loanID,
			Branch:      branch,
			Principal:   principal,
			CreatedDate: dateOnly(time.Now()),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		for _, cust := range borrowers {
			rel := models.LoanBorrower{LoanID: loanID, CustomerID: cust}
			if err := tx.Create(&rel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		loanAlloc.Release(loanID)
		return nil, classifyDBError(err)
	}
	return loadLoanView(loanID)
}

// disburseLoan appends one payment. The loan row is locked for the whole
// read-check-insert so two concurrent disbursements cannot jointly exceed
// the principal.
func disburseLoan(loanID string, amount decimal.Decimal) (*loanView, error) {
	if amount.IsNegative() {
		return nil, errBadAmount
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var loan models.LoanRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("loan_id = ?", loanID).First(&loan).Error; err != nil {
			return err
		}
		paid, err := paidSum(tx, loanID)
		if err != nil {
			return err
		}
		if paid.Add(amount).GreaterThan(loan.Principal) {
			return errLoanOverLimit
		}
		rec := models.PaidRecord{LoanID: loanID, Amount: amount, Date: dateOnly(time.Now())}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, classifyDBError(err)
	}
	return loadLoanView(loanID)
}

// deleteLoan removes the loan and everything hanging off it, but only once
// disbursement is complete.
func deleteLoan(loanID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var loan models.LoanRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("loan_id = ?", loanID).First(&loan).Error; err != nil {
			return err
		}
		paid, err := paidSum(tx, loanID)
		if err != nil {
			return err
		}
		if !disbursementComplete(paid, loan.Principal) {
			return errLoanDisbursing
		}
		if err := tx.Where("loan_id = ?", loanID).Delete(&models.PaidRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("loan_id = ?", loanID).Delete(&models.LoanBorrower{}).Error; err != nil {
			return err
		}
		return tx.Where("loan_id = ?", loanID).Delete(&models.LoanRecord{}).Error
	})
	return classifyDBError(err)
}

// queryLoans resolves a search request into joined loan views.
func queryLoans(method int, keyword string) ([]loanView, error) {
	var loans []models.LoanRecord
	q := db.Model(&models.LoanRecord{})
	switch method {
	case searchByLoanID:
		q = q.Where("loan_id = ?", keyword)
	case searchByBranch:
		q = q.Where("branch = ?", keyword)
	case searchByCustomer:
		q = q.Joins("JOIN loan_borrowers ON loan_borrowers.loan_id = loan_records.loan_id").
			Where("loan_borrowers.customer_id = ?", keyword)
	default:
		return nil, errUnknownSearch
	}
	if err := q.Order("loan_records.loan_id").Find(&loans).Error; err != nil {
		return nil, classifyDBError(err)
	}
	return buildLoanViews(loans)
}

// getAllLoans lists every loan with borrowers and payment history.
func getAllLoans() ([]loanView, error) {
	var loans []models.LoanRecord
	if err := db.Order("loan_id").Find(&loans).Error; err != nil {
		return nil, classifyDBError(err)
	}
	return buildLoanViews(loans)
}

func loadLoanView(loanID string) (*loanView, error) {
	var loan models.LoanRecord
	if err := db.Where("loan_id = ?", loanID).First(&loan).Error; err != nil {
		return nil, classifyDBError(err)
	}
	views, err := buildLoanViews([]models.LoanRecord{loan})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func buildLoanViews(loans []models.LoanRecord) ([]loanView, error) {
	views := make([]loanView, 0, len(loans))
	for _, loan := range loans {
		var borrowers []string
		if err := db.Model(&models.LoanBorrower{}).Where("loan_id = ?", loan.LoanID).
			Order("customer_id").Pluck("customer_id", &borrowers).Error; err != nil {
			return nil, classifyDBError(err)
		}
		var paid []models.PaidRecord
		if err := db.Where("loan_id = ?", loan.LoanID).Order("id").Find(&paid).Error; err != nil {
			return nil, classifyDBError(err)
		}
		history := make([]paidView, 0, len(paid))
		for _, p := range paid {
			history = append(history, paidView{ID: p.ID, Date: p.Date.Format("2006-01-02"), Amount: p.Amount})
		}
		views = append(views, loanView{
			LoanID:      loan.LoanID,
			Branch:      loan.Branch,
			Principal:   loan.Principal,
			CreatedDate: loan.CreatedDate.Format("2006-01-02"),
			Borrowers:   borrowers,
			PaidHistory: history,
		})
	}
	return views, nil
}

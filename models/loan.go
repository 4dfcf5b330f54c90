package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanRecord is a loan issued by a branch to one or more customers.
// Disbursements against it are appended as PaidRecord rows; their sum may
// never exceed Principal.
type LoanRecord struct {
	LoanID      string          `gorm:"primaryKey;size:18"`
	Branch      string          `gorm:"size:64;not null;index"`
	BranchRef   Branch          `gorm:"foreignKey:Branch;references:Name"`
	Principal   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CreatedDate time.Time       `gorm:"not null"`
}

// LoanBorrower links a customer to a loan (many-to-many).
type LoanBorrower struct {
	LoanID     string     `gorm:"primaryKey;size:18"`
	Loan       LoanRecord `gorm:"foreignKey:LoanID;references:LoanID"`
	CustomerID string     `gorm:"primaryKey;size:18"`
	Customer   Customer   `gorm:"foreignKey:CustomerID;references:CustomerID"`
}

// PaidRecord is one disbursement event against a loan. Append-only; rows
// are only removed when the whole loan is deleted.
type PaidRecord struct {
	ID     uint            `gorm:"primaryKey"`
	LoanID string          `gorm:"size:18;not null;index"`
	Loan   LoanRecord      `gorm:"foreignKey:LoanID;references:LoanID"`
	Amount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Date   time.Time       `gorm:"not null"`
}

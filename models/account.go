package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types. The type decides which extension table carries the
// type-specific columns and is immutable after creation.
const (
	AccountTypeSaving   = 0
	AccountTypeChecking = 1
)

// Account is the base row shared by saving and checking accounts. Exactly
// one extension row (SavingAccount or CheckingAccount) exists per account.
type Account struct {
	AccountID string          `gorm:"primaryKey;size:19"`
	Branch    string          `gorm:"size:64;not null;index"`
	BranchRef Branch          `gorm:"foreignKey:Branch;references:Name"`
	Type      int             `gorm:"not null"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	OpenDate  time.Time       `gorm:"not null"`
	LastVisit time.Time       `gorm:"not null"`
}

// SavingAccount extends Account with the interest rate and finance plan.
type SavingAccount struct {
	AccountID   string          `gorm:"primaryKey;size:19"`
	Account     Account         `gorm:"foreignKey:AccountID;references:AccountID;constraint:OnDelete:CASCADE"`
	Rate        decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	FinancePlan string          `gorm:"size:32;not null"`
}

// CheckingAccount extends Account with the overdraft limit.
type CheckingAccount struct {
	AccountID      string          `gorm:"primaryKey;size:19"`
	Account        Account         `gorm:"foreignKey:AccountID;references:AccountID;constraint:OnDelete:CASCADE"`
	OverdraftLimit decimal.Decimal `gorm:"type:numeric(20,2);not null"`
}

// Holding links one customer to one account. Type and Branch are
// denormalized copies of the account's columns so the database can enforce
// "one saving and one checking account per customer per branch" with a
// single unique index.
type Holding struct {
	AccountID  string   `gorm:"primaryKey;size:19"`
	Account    Account  `gorm:"foreignKey:AccountID;references:AccountID"`
	CustomerID string   `gorm:"primaryKey;size:18;uniqueIndex:idx_customer_type_branch"`
	Customer   Customer `gorm:"foreignKey:CustomerID;references:CustomerID"`
	Type       int      `gorm:"not null;uniqueIndex:idx_customer_type_branch"`
	Branch     string   `gorm:"size:64;not null;uniqueIndex:idx_customer_type_branch"`
}

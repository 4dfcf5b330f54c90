package models

import "github.com/shopspring/decimal"

// Branch is a sub-branch of the bank. Accounts, holdings and loans all
// reference it by name.
type Branch struct {
	Name string          `gorm:"primaryKey;size:64" json:"name"`
	City string          `gorm:"size:64" json:"city"`
	Fund decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"fund"`
}

package models

import "time"

// Employee is a back-office staff member allowed to log in.
type Employee struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:64;not null;unique"`
	HashedPassword []byte `gorm:"not null"`
	Name           string `gorm:"size:64"`
	Phone          string `gorm:"size:20"`
}

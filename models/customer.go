package models

import "time"

// Customer is a bank customer keyed by national identifier. The contact
// fields describe the customer's designated contact person.
type Customer struct {
	CustomerID      string    `gorm:"primaryKey;size:18" json:"customer_id"`
	Name            string    `gorm:"size:64;not null" json:"name"`
	Phone           string    `gorm:"size:20" json:"phone"`
	Address         string    `gorm:"size:128" json:"address"`
	ContactName     string    `gorm:"size:64" json:"contact_name"`
	ContactPhone    string    `gorm:"size:20" json:"contact_phone"`
	ContactEmail    string    `gorm:"size:64" json:"contact_email"`
	ContactRelation string    `gorm:"size:32" json:"contact_relation"`
	CreatedAt       time.Time `json:"created_at"`
}

package main

import (
	"log"
	"os"
	"strings"
	"time"

	"bankoffice/models"
	"bankoffice/pkg/cardnum"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

// In-process id allocators. Loaded from storage at startup; the database
// unique constraints stay in place as the backstop.
var (
	cardAlloc *cardnum.Allocator // 19-digit account card numbers
	loanAlloc *cardnum.Allocator // 18-digit loan ids
)

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	if shouldMigrate {
		// Parents before children so foreign keys can be applied safely.
		ordered := []any{
			&models.Branch{},
			&models.Customer{},
			&models.Employee{},
			&models.RefreshToken{},
			&models.Account{},
			&models.SavingAccount{},
			&models.CheckingAccount{},
			&models.Holding{},
			&models.LoanRecord{},
			&models.LoanBorrower{},
			&models.PaidRecord{},
		}
		for _, m := range ordered {
			if err := db.AutoMigrate(m); err != nil {
				log.Printf("migration warning (%T): %v", m, err)
			}
		}
	}
	seedDB()
	initAllocators()
}

func seedDB() {
	// Seed branches so accounts and loans have somewhere to live.
	branches := []models.Branch{
		{Name: "headquarter", City: "Beijing", Fund: decimal.NewFromInt(10000000)},
		{Name: "east-branch", City: "Shanghai", Fund: decimal.NewFromInt(5000000)},
	}
	for _, b := range branches {
		var cnt int64
		db.Model(&models.Branch{}).Where("name = ?", b.Name).Count(&cnt)
		if cnt == 0 {
			if err := db.Create(&b).Error; err != nil {
				log.Printf("failed to seed branch %s: %v", b.Name, err)
			}
		}
	}

	// Seed the admin staff login.
	var count int64
	db.Model(&models.Employee{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin := models.Employee{Username: "admin", HashedPassword: hashedPassword, Name: "Administrator"}
		if err := db.Create(&admin).Error; err != nil {
			log.Printf("failed to seed admin employee: %v", err)
		} else {
			log.Println("Seeded admin employee: username=admin, password=admin123")
		}
	}
}

// initAllocators syncs the in-memory id sets with ids already persisted.
func initAllocators() {
	cardAlloc = cardnum.New(19)
	loanAlloc = cardnum.New(18)

	var cardIDs []string
	if err := db.Model(&models.Account{}).Pluck("account_id", &cardIDs).Error; err != nil {
		log.Printf("warning: loading issued card numbers failed: %v", err)
	}
	cardAlloc.Load(cardIDs)

	var loanIDs []string
	if err := db.Model(&models.LoanRecord{}).Pluck("loan_id", &loanIDs).Error; err != nil {
		log.Printf("warning: loading issued loan ids failed: %v", err)
	}
	loanAlloc.Load(loanIDs)
}

// dateOnly truncates a timestamp to its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

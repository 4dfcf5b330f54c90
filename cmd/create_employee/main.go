package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"bankoffice/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_employee <username> <password> [name]")
		os.Exit(2)
	}
	username := os.Args[1]
	password := os.Args[2]
	name := username
	if len(os.Args) > 3 {
		name = os.Args[3]
	}

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	// check existing
	var existing models.Employee
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("employee %s already exists (id=%d)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	emp := models.Employee{Username: username, HashedPassword: hpw, Name: name}
	if err := db.Create(&emp).Error; err != nil {
		log.Fatalf("failed to create employee: %v", err)
	}
	fmt.Printf("created employee %s id=%d\n", username, emp.ID)
}

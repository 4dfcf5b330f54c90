package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// loadConfig reads ./.env if present (existing environment wins) and
// resolves the JWT signing secret.
func loadConfig() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)
}

// sessionTTL is how long an access token stays valid. SESSION_TTL is in
// seconds; defaults to one hour.
func sessionTTL() time.Duration {
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Hour
}

func listenAddr() string {
	if p := os.Getenv("PORT"); p != "" {
		return ":" + p
	}
	return ":8081"
}

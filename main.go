package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
)

func main() {
	loadConfig()

	// Support a lightweight migrate command: `./bankoffice migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	r := gin.Default()

	setupRoutes(r)

	r.Run(listenAddr())
}

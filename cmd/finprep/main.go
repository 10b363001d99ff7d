package main

import (
	"log"

	"github.com/escpfinance/finprep/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("Error initializing the application: %v", err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		log.Fatalf("Error running the application: %v", err)
	}
}

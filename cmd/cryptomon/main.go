package main

import (
	"github.com/joho/godotenv"

	"crypto-anomaly-monitor/internal/cli"
)

func main() {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	cli.Execute()
}

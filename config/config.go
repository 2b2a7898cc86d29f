package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// AppName doubles as the postgres schema name.
const AppName = "splitledger"

// LoadEnv reads a .env file when one exists. Missing files are fine; real
// deployments set the environment directly.
func LoadEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}
}

// Getenv returns the value of the environment variable or the fallback when
// it is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

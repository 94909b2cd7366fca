package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A .env in the working directory is a convenient place for the
	// FAVESCREEN_* variables; absence is not an error.
	_ = godotenv.Load()

	Execute()
}

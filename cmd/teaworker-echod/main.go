package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/teaworker/teaworker/internal/echod"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	flag.Parse()

	// Best effort; the server runs fine without a .env file.
	godotenv.Load()

	cfg, err := echod.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := echod.New(cfg).ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/chatweet/internal/database"
	"github.com/spf13/pflag"
)

func main() {
	godotenv.Load()

	flagSet := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	databaseURL := flagSet.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: migrate [--database-url URL] up|down\n\n")
		flagSet.PrintDefaults()
	}
	flagSet.Parse(os.Args[1:])

	direction := "up"
	if flagSet.NArg() > 0 {
		direction = flagSet.Arg(0)
	}

	if err := database.Migrate(*databaseURL, direction); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migrations %s complete", direction)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"plantscan/internal/infra"
	"plantscan/internal/infra/credentials"
)

func main() {
	var keyFlag, setByFlag string
	flag.StringVar(&keyFlag, "key", "", "plant.id API key (falls back to PLANT_ID_API_KEY)")
	flag.StringVar(&setByFlag, "set-by", "", "operator recorded with the key (defaults to the current OS user)")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("PLANT_ID_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "plant.id API key is required via -key or PLANT_ID_API_KEY")
		os.Exit(1)
	}
	setBy := strings.TrimSpace(setByFlag)
	if setBy == "" {
		if u, err := user.Current(); err == nil {
			setBy = u.Username
		}
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL"), "apikey").With().Str("provider", credentials.ProviderPlantID).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	previous, hadPrevious, err := store.Get(ctx, credentials.ProviderPlantID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read current plant.id api key: %v\n", err)
		os.Exit(1)
	}
	cred, err := store.Rotate(ctx, credentials.ProviderPlantID, key, setBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist plant.id api key: %v\n", err)
		os.Exit(1)
	}
	if hadPrevious {
		fmt.Printf("plant.id API key rotated: %s -> %s (set by %s)\n", previous.Fingerprint, cred.Fingerprint, displaySetBy(cred.SetBy))
		return
	}
	fmt.Printf("plant.id API key stored: %s (set by %s)\n", cred.Fingerprint, displaySetBy(cred.SetBy))
}

func displaySetBy(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

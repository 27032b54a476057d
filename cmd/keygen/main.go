package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/af-corp/relay-gateway/internal/auth"
)

func main() {
	user := flag.String("user", "", "user ID the key belongs to (required)")
	routerID := flag.String("router", "", "router ID the key dispatches through (required)")
	name := flag.String("name", "", "human-friendly key name")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if *user == "" || *routerID == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -user and -router are required")
		os.Exit(1)
	}

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		u := envOrDefault("DB_USER", "relay")
		pass := envOrDefault("DB_PASSWORD", "relay-dev")
		dbname := envOrDefault("DB_NAME", "relay")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", u, pass, host, port, dbname)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	// The key only works if its router exists and belongs to the user.
	var owner string
	err = conn.QueryRow(ctx, `SELECT user_id FROM routers WHERE id = $1`, *routerID).Scan(&owner)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Fatalf("router %s does not exist", *routerID)
		}
		log.Fatalf("failed to look up router: %v", err)
	}
	if owner != *user {
		log.Fatalf("router %s belongs to user %s, not %s", *routerID, owner, *user)
	}

	key := auth.GenerateKey()
	_, err = conn.Exec(ctx, `
		INSERT INTO gateway_keys (id, user_id, router_id, name, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
	`, key, *user, *routerID, *name)
	if err != nil {
		log.Fatalf("failed to insert key: %v", err)
	}

	fmt.Println("=== Relay Gateway Key Generated ===")
	fmt.Println()
	fmt.Printf("  User:   %s\n", *user)
	fmt.Printf("  Router: %s\n", *routerID)
	if *name != "" {
		fmt.Printf("  Name:   %s\n", *name)
	}
	fmt.Println()
	fmt.Println("  Gateway Key (save this - it will NOT be shown again):")
	fmt.Printf("  %s\n", key)
	fmt.Println()
	fmt.Println("===================================")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

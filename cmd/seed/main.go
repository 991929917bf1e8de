// Dev-only seeding tool: creates the users table if absent and inserts demo
// accounts. Refuses to run outside dev/test.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usersSchema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";
CREATE TABLE IF NOT EXISTS users (
	id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	username        text NOT NULL UNIQUE,
	email           text NOT NULL UNIQUE,
	full_name       text NOT NULL,
	password_hash   text NOT NULL,
	avatar_url      text NOT NULL DEFAULT '',
	avatar_handle   text NOT NULL DEFAULT '',
	cover_image_url text NOT NULL DEFAULT '',
	cover_handle    text NOT NULL DEFAULT '',
	refresh_token   text,
	created_at      timestamptz NOT NULL DEFAULT now(),
	updated_at      timestamptz NOT NULL DEFAULT now()
);
`

func main() {
	env := getEnv("VIDEOTUBE_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: VIDEOTUBE_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "videotube")
	user := getEnv("POSTGRES_USER", "videotube")
	password := getEnv("POSTGRES_PASSWORD", "videotube")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	fmt.Println("Seeding database...")

	if _, err := pool.Exec(ctx, usersSchema); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	fmt.Println("✓ Schema ready")

	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("✓ Users seeded")

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo Credentials:")
	fmt.Println("  Username: demo / Password: demo123")
	fmt.Println("  Username: creator / Password: creator123")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	hasher := security.NewHasher(security.DefaultArgon2Params())

	users := []struct {
		id       uuid.UUID
		username string
		email    string
		fullName string
		password string
	}{
		{uuid.MustParse("00000000-0000-0000-0000-000000000001"), "demo", "demo@example.com", "Demo User", "demo123"},
		{uuid.MustParse("00000000-0000-0000-0000-000000000002"), "creator", "creator@example.com", "Demo Creator", "creator123"},
	}

	for _, u := range users {
		hash, err := hasher.Hash(u.password)
		if err != nil {
			return fmt.Errorf("hash %s password: %w", u.username, err)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, avatar_handle, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (username) DO UPDATE
			SET full_name = EXCLUDED.full_name,
			    password_hash = EXCLUDED.password_hash,
			    updated_at = now()
		`, u.id, u.username, u.email, u.fullName, hash,
			"https://images.videotube.dev/seed/"+u.username+".png", "seed/"+u.username)
		if err != nil {
			return err
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

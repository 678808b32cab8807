package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/edvin/backupvault/internal/config"
	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/db"
)

type fixtures struct {
	Profiles   []profileEntry   `yaml:"profiles"`
	Workspaces []workspaceEntry `yaml:"workspaces"`
	Storage    []storageEntry   `yaml:"storage"`
	Configs    []configEntry    `yaml:"configs"`
}

type profileEntry struct {
	ID               string  `yaml:"id"`
	Plan             string  `yaml:"plan"`
	MollieCustomerID *string `yaml:"mollie_customer_id"`
}

type workspaceEntry struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"user_id"`
	Type        string `yaml:"type"`
	WorkspaceID string `yaml:"workspace_id"`
	Name        string `yaml:"name"`
	Token       string `yaml:"token"`
}

type storageEntry struct {
	ID       string `yaml:"id"`
	UserID   string `yaml:"user_id"`
	Provider string `yaml:"provider"`
	Token    string `yaml:"token"`
	Folder   string `yaml:"folder"`
}

type configEntry struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"user_id"`
	WorkspaceID string `yaml:"workspace_id"`
	StorageID   string `yaml:"storage_id"`
	Schedule    string `yaml:"schedule"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" || cfg.EncryptionKey == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL and ENCRYPTION_KEY are required")
		os.Exit(1)
	}

	// Resolve path relative to this source file so it works regardless of cwd.
	_, thisFile, _, _ := runtime.Caller(0)
	fx, err := loadFixtures(filepath.Join(filepath.Dir(thisFile), "dev.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	fmt.Println("Seeding backupvault database...")
	if err := seed(ctx, pool, fx, cfg.Key()); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Done.")
}

func loadFixtures(path string) (*fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	for i := range fx.Configs {
		if fx.Configs[i].Schedule == "" {
			fx.Configs[i].Schedule = "manual"
		}
	}
	return &fx, nil
}

func seed(ctx context.Context, pool *pgxpool.Pool, fx *fixtures, key []byte) error {
	for _, p := range fx.Profiles {
		fmt.Printf("  Upserting profile %s (%s)\n", p.ID, p.Plan)
		_, err := pool.Exec(ctx,
			`INSERT INTO profiles (id, subscription_plan, mollie_customer_id) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET subscription_plan = EXCLUDED.subscription_plan,
			   mollie_customer_id = EXCLUDED.mollie_customer_id, updated_at = now()`,
			p.ID, p.Plan, p.MollieCustomerID)
		if err != nil {
			return fmt.Errorf("insert profile %s: %w", p.ID, err)
		}
	}

	for _, w := range fx.Workspaces {
		token, err := crypto.Encrypt([]byte(w.Token), key)
		if err != nil {
			return fmt.Errorf("encrypt workspace token %s: %w", w.ID, err)
		}
		fmt.Printf("  Upserting %s workspace %s (%s)\n", w.Type, w.ID, w.Name)
		_, err = pool.Exec(ctx,
			`INSERT INTO workspace_connections (id, user_id, workspace_type, workspace_id, workspace_name, access_token)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET access_token = EXCLUDED.access_token, workspace_name = EXCLUDED.workspace_name`,
			w.ID, w.UserID, w.Type, w.WorkspaceID, w.Name, token)
		if err != nil {
			return fmt.Errorf("insert workspace %s: %w", w.ID, err)
		}
	}

	for _, s := range fx.Storage {
		token, err := crypto.Encrypt([]byte(s.Token), key)
		if err != nil {
			return fmt.Errorf("encrypt storage token %s: %w", s.ID, err)
		}
		fmt.Printf("  Upserting %s storage %s\n", s.Provider, s.ID)
		_, err = pool.Exec(ctx,
			`INSERT INTO storage_connections (id, user_id, storage_provider, access_token, folder_path)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET access_token = EXCLUDED.access_token, folder_path = EXCLUDED.folder_path`,
			s.ID, s.UserID, s.Provider, token, s.Folder)
		if err != nil {
			return fmt.Errorf("insert storage %s: %w", s.ID, err)
		}
	}

	for _, c := range fx.Configs {
		fmt.Printf("  Upserting backup config %s\n", c.ID)
		_, err := pool.Exec(ctx,
			`INSERT INTO backup_configs (id, user_id, workspace_connection_id, storage_connection_id, schedule)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET schedule = EXCLUDED.schedule`,
			c.ID, c.UserID, c.WorkspaceID, c.StorageID, c.Schedule)
		if err != nil {
			return fmt.Errorf("insert backup config %s: %w", c.ID, err)
		}
	}
	return nil
}

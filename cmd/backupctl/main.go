package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/edvin/backupvault/internal/config"
	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/db"
	"github.com/edvin/backupvault/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		cfg := loadConfig()
		if cfg.DatabaseURL == "" {
			fmt.Fprintln(os.Stderr, "Error: DATABASE_URL is required")
			os.Exit(1)
		}
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied.")

	case "decrypt":
		fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
		file := fs.String("f", "", "Path to a downloaded .encrypted.json artifact (required)")
		fs.Parse(os.Args[2:])

		if *file == "" {
			fmt.Fprintln(os.Stderr, "Error: -f flag is required")
			fs.Usage()
			os.Exit(1)
		}

		cfg := loadConfig()
		if err := decryptArtifact(*file, cfg.Key(), os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "encrypt":
		cfg := loadConfig()
		if err := encryptCredential(os.Stdin, cfg.Key(), os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		n := fs.Int("n", 32, "Number of random bytes")
		fs.Parse(os.Args[2:])

		token, err := crypto.RandomToken(*n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)

	default:
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// decryptArtifact opens an artifact written by the uploader and prints the
// bundle as indented JSON.
func decryptArtifact(path string, key []byte, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	var bundle map[string]any
	if err := storage.Open(data, key, &bundle); err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

// encryptCredential reads a plaintext credential and prints the token to
// store in a connection's access_token column.
func encryptCredential(in io.Reader, key []byte, out io.Writer) error {
	plaintext, err := io.ReadAll(io.LimitReader(in, 64<<10))
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if len(plaintext) > 0 && plaintext[len(plaintext)-1] == '\n' {
		plaintext = plaintext[:len(plaintext)-1]
	}
	if len(plaintext) == 0 {
		return fmt.Errorf("empty credential")
	}

	token, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: backupctl <command> [flags]

Commands:
  migrate        Apply database migrations (DATABASE_URL)
  decrypt -f F   Decrypt a downloaded backup artifact and print the bundle
  encrypt        Encrypt a credential read from stdin for storage
  token [-n N]   Print N random bytes as hex (default 32)

decrypt and encrypt use ENCRYPTION_KEY (and ENCRYPTION_KEY_SALT if set).`)
}

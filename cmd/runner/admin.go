package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/agent0/runner/internal/adapter/postgres"
	"github.com/agent0/runner/internal/config"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/domain/workspace"
)

// runCredentials dispatches credential subcommands.
func runCredentials(args []string) error {
	if len(args) == 0 || args[0] != "encrypt" {
		fmt.Fprintln(os.Stderr, "Usage: runner credentials encrypt --public-key <file> [--in <file>]")
		return errors.New("unknown credentials command")
	}
	fs := flag.NewFlagSet("credentials encrypt", flag.ContinueOnError)
	pubPath := fs.String("public-key", "", "armored OpenPGP public key file (default $PGP_PUBLIC_KEY)")
	inPath := fs.String("in", "", "settings JSON file (default: stdin, or a hidden prompt on a terminal)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	pub, err := publicKey(*pubPath)
	if err != nil {
		return err
	}
	plain, err := readSettings(*inPath)
	if err != nil {
		return err
	}
	if err := checkSettings(plain); err != nil {
		return err
	}

	armored, err := provider.Encrypt(plain, pub)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	fmt.Println(armored)
	return nil
}

func publicKey(path string) (string, error) {
	if path == "" {
		if v := os.Getenv("PGP_PUBLIC_KEY"); v != "" {
			return strings.ReplaceAll(v, `\n`, "\n"), nil
		}
		return "", errors.New("--public-key or PGP_PUBLIC_KEY is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}
	return string(data), nil
}

// readSettings reads the plaintext settings. On a terminal the input is
// not echoed, since it usually holds an API key.
func readSettings(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	fd := int(os.Stdin.Fd()) //nolint:gosec // Fd fits in int on all supported platforms
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Provider settings JSON: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		return data, nil
	}
	return io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
}

// checkSettings rejects input the runner could not use after decryption.
func checkSettings(plain []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(plain), &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: settings must be a JSON object", domain.ErrMalformedConfig)
	}
	return nil
}

// runAPIKey dispatches API key subcommands.
func runAPIKey(args []string) error {
	if len(args) == 0 || args[0] != "create" {
		fmt.Fprintln(os.Stderr, "Usage: runner apikey create --workspace <id> --name <name> [--ttl 720h]")
		return errors.New("unknown apikey command")
	}
	fs := flag.NewFlagSet("apikey create", flag.ContinueOnError)
	workspaceID := fs.String("workspace", "", "workspace id (required)")
	name := fs.String("name", "", "key name (required)")
	ttl := fs.Duration("ttl", 0, "key lifetime (0 = no expiry)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *workspaceID == "" || *name == "" {
		return errors.New("--workspace and --name are required")
	}

	plain, prefix, hash, err := workspace.GenerateKey()
	if err != nil {
		return err
	}
	key := &workspace.APIKey{WorkspaceID: *workspaceID, Name: *name, Prefix: prefix, KeyHash: hash}
	if *ttl > 0 {
		key.ExpiresAt = time.Now().Add(*ttl)
	}

	store, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := store.CreateAPIKey(context.Background(), key); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", key.ID)
	fmt.Fprintf(tw, "Workspace\t%s\n", key.WorkspaceID)
	fmt.Fprintf(tw, "Key\t%s\n", plain)
	_ = tw.Flush()
	fmt.Fprintln(os.Stderr, "Store the key now; it cannot be shown again.")
	return nil
}

func openStore() (*postgres.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := postgres.NewPool(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// runMigrate applies, rolls back or reports schema migrations.
func runMigrate(args []string) error {
	cmd := "up"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("migrate "+cmd, flag.ContinueOnError)
	steps := fs.Int("steps", 1, "migrations to roll back (down only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()

	switch cmd {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate command: %s (want up, down or version)", cmd)
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", v)
	return nil
}

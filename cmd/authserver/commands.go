package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/config"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/db"
	"github.com/edvin/authcore/internal/store/postgres"
)

// withServices connects to the database and runs fn with the core services.
// Command errors are fatal.
func withServices(timeout time.Duration, fn func(ctx context.Context, svcs *core.Services) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "error: DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hasher, err := crypto.NewHasher(cfg.SecretHasher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	svcs := core.NewServices(postgres.New(pool), hasher, serviceOptions(cfg), zerolog.Nop())
	defer svcs.Close()

	if err := fn(ctx, svcs); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func createClient(args []string) {
	fs := flag.NewFlagSet("create-client", flag.ExitOnError)
	id := fs.String("id", "", "Client ID (generated when empty)")
	name := fs.String("name", "", "Display name (required)")
	redirects := fs.String("redirect-uris", "", "Comma separated redirect URIs (required)")
	scopes := fs.String("scopes", "read", "Space separated allowed scopes")
	public := fs.Bool("public", false, "Register a public client that must use PKCE")
	fs.Parse(args)

	if *name == "" || *redirects == "" {
		fmt.Fprintln(os.Stderr, "error: --name and --redirect-uris are required")
		fmt.Fprintln(os.Stderr, "usage: authserver create-client --name <name> --redirect-uris <uri,...> [--scopes \"read write\"] [--public]")
		os.Exit(1)
	}

	withServices(10*time.Second, func(ctx context.Context, svcs *core.Services) error {
		client, secret, err := svcs.Clients.Register(ctx, core.ClientRegistration{
			ID:            *id,
			Name:          *name,
			RedirectURIs:  strings.Split(*redirects, ","),
			AllowedScopes: strings.Fields(*scopes),
			Public:        *public,
		})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}

		fmt.Printf("Client registered successfully.\n\n")
		fmt.Printf("  Name:    %s\n", client.Name)
		fmt.Printf("  ID:      %s\n", client.ID)
		fmt.Printf("  Scopes:  %s\n", strings.Join(client.AllowedScopes, " "))
		if secret != "" {
			fmt.Printf("  Secret:  %s\n\n", secret)
			fmt.Printf("Save this secret - it will not be shown again.\n")
		}
		return nil
	})
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	owner := fs.String("owner", "", "Owning user ID (required)")
	name := fs.String("name", "", "Name for the API key (required)")
	scopes := fs.String("scopes", "read", "Space separated scopes")
	expiresIn := fs.Duration("expires-in", 0, "Lifetime, e.g. 720h (0 never expires)")
	fs.Parse(args)

	if *owner == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "error: --owner and --name are required")
		fmt.Fprintln(os.Stderr, "usage: authserver create-api-key --owner <user-id> --name <name> [--scopes \"read write\"] [--expires-in 720h]")
		os.Exit(1)
	}

	withServices(10*time.Second, func(ctx context.Context, svcs *core.Services) error {
		var expiresAt *time.Time
		if *expiresIn > 0 {
			t := time.Now().Add(*expiresIn)
			expiresAt = &t
		}

		key, rawKey, err := svcs.APIKeys.Create(ctx, *owner, *name, strings.Fields(*scopes), expiresAt)
		if err != nil {
			return fmt.Errorf("create api key: %w", err)
		}

		fmt.Printf("API key created successfully.\n\n")
		fmt.Printf("  Name:   %s\n", key.Name)
		fmt.Printf("  ID:     %s\n", key.ID)
		fmt.Printf("  Key:    %s\n\n", rawKey)
		fmt.Printf("Save this key - it will not be shown again.\n")
		return nil
	})
}

func seed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("f", "", "Seed file (required)")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: authserver seed -f <seed.yaml>")
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	cfg, err := loadSeed(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	withServices(time.Minute, func(ctx context.Context, svcs *core.Services) error {
		return applySeed(ctx, svcs, cfg, os.Stdout)
	})
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edvin/authcore/internal/core"
)

// SeedConfig lists the clients and API keys to provision.
type SeedConfig struct {
	Clients []SeedClient `yaml:"clients"`
	APIKeys []SeedAPIKey `yaml:"api_keys"`
}

type SeedClient struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	RedirectURIs []string `yaml:"redirect_uris"`
	Scopes       []string `yaml:"scopes"`
	Public       bool     `yaml:"public"`
	// Secret pins the secret for development setups.
	Secret string `yaml:"secret"`
}

type SeedAPIKey struct {
	Owner     string        `yaml:"owner"`
	Name      string        `yaml:"name"`
	Scopes    []string      `yaml:"scopes"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

func loadSeed(r io.Reader) (*SeedConfig, error) {
	var cfg SeedConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, c := range cfg.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("clients[%d]: id is required so seeding is repeatable", i)
		}
	}
	return &cfg, nil
}

// applySeed registers every client (upserting by ID) and creates every API
// key. Generated secrets and raw keys are written to out.
func applySeed(ctx context.Context, svcs *core.Services, cfg *SeedConfig, out io.Writer) error {
	for _, c := range cfg.Clients {
		client, secret, err := svcs.Clients.Register(ctx, core.ClientRegistration{
			ID:            c.ID,
			Name:          c.Name,
			RedirectURIs:  c.RedirectURIs,
			AllowedScopes: c.Scopes,
			Public:        c.Public,
			Secret:        c.Secret,
		})
		if err != nil {
			return fmt.Errorf("register client %q: %w", c.ID, err)
		}
		fmt.Fprintf(out, "Client %q: registered\n", client.ID)
		if secret != "" && c.Secret == "" {
			fmt.Fprintf(out, "  secret: %s\n", secret)
		}
	}

	for _, k := range cfg.APIKeys {
		var expiresAt *time.Time
		if k.ExpiresIn > 0 {
			t := time.Now().Add(k.ExpiresIn)
			expiresAt = &t
		}
		key, raw, err := svcs.APIKeys.Create(ctx, k.Owner, k.Name, k.Scopes, expiresAt)
		if err != nil {
			return fmt.Errorf("create api key %q: %w", k.Name, err)
		}
		fmt.Fprintf(out, "API key %q for %s: %s\n", key.Name, key.OwnerID, key.ID)
		fmt.Fprintf(out, "  key: %s\n", raw)
	}
	return nil
}

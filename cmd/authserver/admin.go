package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

func listTokens(args []string) {
	fs := flag.NewFlagSet("list-tokens", flag.ExitOnError)
	user := fs.String("user", "", "Only tokens held by this user")
	client := fs.String("client", "", "Only tokens issued to this client")
	limit := fs.Int("limit", 100, "Maximum rows (0 for all)")
	fs.Parse(args)

	withServices(30*time.Second, func(ctx context.Context, svcs *core.Services) error {
		tokens, err := svcs.TokenAdmin.List(ctx, store.TokenFilter{UserID: *user, ClientID: *client, Limit: *limit})
		if err != nil {
			return err
		}
		return writeTokens(os.Stdout, tokens)
	})
}

func revokeToken(args []string) {
	fs := flag.NewFlagSet("revoke-token", flag.ExitOnError)
	kind := fs.String("kind", "", "Token kind: access or refresh (required)")
	id := fs.String("id", "", "Token ID as shown by list-tokens (required)")
	fs.Parse(args)

	if *kind == "" || *id == "" {
		fmt.Fprintln(os.Stderr, "usage: authserver revoke-token --kind access|refresh --id <token-id>")
		os.Exit(1)
	}

	withServices(10*time.Second, func(ctx context.Context, svcs *core.Services) error {
		if err := svcs.TokenAdmin.Revoke(ctx, model.TokenKind(*kind), *id); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
		fmt.Printf("Token %s revoked.\n", *id)
		return nil
	})
}

func revokeUserTokens(args []string) {
	fs := flag.NewFlagSet("revoke-tokens", flag.ExitOnError)
	user := fs.String("user", "", "User whose tokens are revoked (required)")
	fs.Parse(args)

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: authserver revoke-tokens --user <user-id>")
		os.Exit(1)
	}

	withServices(30*time.Second, func(ctx context.Context, svcs *core.Services) error {
		n, err := svcs.TokenAdmin.RevokeUser(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Printf("Revoked %d tokens for %s.\n", n, *user)
		return nil
	})
}

func setUserAccess(args []string) {
	fs := flag.NewFlagSet("set-user-access", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	scopes := fs.String("scopes", "", "Space separated scopes the user may delegate")
	disabled := fs.Bool("disabled", false, "Block OAuth access and revoke the user's tokens")
	by := fs.String("by", os.Getenv("USER"), "Operator recorded on the change")
	fs.Parse(args)

	if *user == "" || (!*disabled && *scopes == "") {
		fmt.Fprintln(os.Stderr, "usage: authserver set-user-access --user <user-id> (--scopes \"read write\" | --disabled)")
		os.Exit(1)
	}

	withServices(30*time.Second, func(ctx context.Context, svcs *core.Services) error {
		p, err := svcs.Permissions.Set(ctx, *user, !*disabled, strings.Fields(*scopes), *by)
		if err != nil {
			return fmt.Errorf("set user access: %w", err)
		}
		return writePermissions(os.Stdout, []model.UserPermission{*p})
	})
}

func resetUserAccess(args []string) {
	fs := flag.NewFlagSet("reset-user-access", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	fs.Parse(args)

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: authserver reset-user-access --user <user-id>")
		os.Exit(1)
	}

	withServices(10*time.Second, func(ctx context.Context, svcs *core.Services) error {
		if err := svcs.Permissions.Reset(ctx, *user); err != nil {
			return fmt.Errorf("reset user access: %w", err)
		}
		fmt.Printf("Access for %s reset to defaults.\n", *user)
		return nil
	})
}

func listUserAccess(args []string) {
	fs := flag.NewFlagSet("list-user-access", flag.ExitOnError)
	user := fs.String("user", "", "Show the effective access of one user")
	fs.Parse(args)

	withServices(10*time.Second, func(ctx context.Context, svcs *core.Services) error {
		if *user != "" {
			a, err := svcs.Permissions.Access(ctx, *user)
			if err != nil {
				return err
			}
			writeAccess(os.Stdout, *user, a)
			return nil
		}
		perms, err := svcs.Permissions.List(ctx)
		if err != nil {
			return err
		}
		return writePermissions(os.Stdout, perms)
	})
}

func writeTokens(out io.Writer, tokens []model.TokenSummary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tCLIENT\tUSER\tSCOPES\tEXPIRES\tLAST USED\tUSES")
	for _, t := range tokens {
		lastUsed := "-"
		if t.LastUsedAt != nil {
			lastUsed = t.LastUsedAt.UTC().Format(time.RFC3339)
		}
		uses := "-"
		if t.Kind == model.TokenKindAccess {
			uses = fmt.Sprint(t.UseCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Kind, t.ID, t.ClientName, t.UserID, strings.Join(t.Scopes, " "),
			t.ExpiresAt.UTC().Format(time.RFC3339), lastUsed, uses)
	}
	return tw.Flush()
}

func writePermissions(out io.Writer, perms []model.UserPermission) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tOAUTH\tSCOPES\tUPDATED BY\tUPDATED")
	for _, p := range perms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.UserID, enabledLabel(p.OAuthEnabled), strings.Join(p.AllowedScopes, " "),
			p.UpdatedBy, p.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func writeAccess(out io.Writer, userID string, a *core.UserAccess) {
	source := "override"
	if a.Default {
		source = "default"
	}
	fmt.Fprintf(out, "  User:    %s\n", userID)
	fmt.Fprintf(out, "  OAuth:   %s (%s)\n", enabledLabel(a.Enabled), source)
	fmt.Fprintf(out, "  Scopes:  %s\n", strings.Join(a.AllowedScopes, " "))
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

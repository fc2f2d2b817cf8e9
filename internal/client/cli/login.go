package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/shiftgrid/internal/client/auth"
	"github.com/iudanet/shiftgrid/internal/client/iocli"
)

// RunLogin сохраняет access token; без аргумента запрашивает его у пользователя
func RunLogin(ctx context.Context, io iocli.IO, tokens *auth.Store, raw string) error {
	if raw == "" {
		var err error
		raw, err = io.ReadPassword("Access token: ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	tok, err := tokens.Save(ctx, raw)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	io.Printf("✓ Logged in as %s (%s), role %s\n", tok.UserName, tok.UserID, tok.Role)
	if !tok.CanWrite() {
		io.Println("This token is read-only: edits will be rejected by the server.")
	}
	return nil
}

// RunLogout удаляет сохраненный токен
func RunLogout(ctx context.Context, io iocli.IO, tokens *auth.Store) error {
	if err := tokens.Delete(ctx); err != nil {
		return err
	}
	io.Println("✓ Logged out")
	return nil
}

// RunStatus показывает сохраненную личность и срок действия токена
func RunStatus(ctx context.Context, io iocli.IO, tokens *auth.Store, now time.Time) error {
	tok, err := tokens.Load(ctx)
	if errors.Is(err, auth.ErrNotLoggedIn) {
		io.Println("Not logged in. Use 'shiftgrid login' to store an access token.")
		return nil
	}
	if err != nil {
		return err
	}

	io.Println("=== Authentication Status ===")
	io.Printf("User:    %s (%s)\n", tok.UserName, tok.UserID)
	io.Printf("Role:    %s\n", tok.Role)
	switch {
	case tok.ExpiresAt.IsZero():
		io.Println("Expires: never")
	case tok.Expired(now):
		io.Printf("Expires: %s (expired, please login again)\n", tok.ExpiresAt.Format(time.DateTime))
	default:
		io.Printf("Expires: %s\n", tok.ExpiresAt.Format(time.DateTime))
	}
	return nil
}

package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/client/auth"
	"github.com/iudanet/shiftgrid/internal/client/iocli"
	"github.com/iudanet/shiftgrid/internal/client/storage/memory"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
)

func bufferIO(out *bytes.Buffer, input string) *iocli.IOMock {
	return &iocli.IOMock{
		PrintlnFunc:      func(a ...any) { fmt.Fprintln(out, a...) },
		PrintfFunc:       func(format string, a ...any) { fmt.Fprintf(out, format, a...) },
		ReadPasswordFunc: func(prompt string) (string, error) { return input, nil },
	}
}

func TestRunLogin(t *testing.T) {
	ctx := context.Background()
	token, err := jwt.NewService("secret", time.Hour).GenerateToken("u1", "Alice", jwt.RoleViewer)
	require.NoError(t, err)

	tests := []struct {
		name    string
		arg     string
		input   string
		prompts int
	}{
		{name: "from argument", arg: token},
		{name: "from prompt", input: token, prompts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			io := bufferIO(&out, tt.input)
			tokens := auth.NewStore(memory.New())

			require.NoError(t, RunLogin(ctx, io, tokens, tt.arg))
			assert.Len(t, io.ReadPasswordCalls(), tt.prompts)
			assert.Contains(t, out.String(), "✓ Logged in as Alice (u1), role viewer")
			assert.Contains(t, out.String(), "read-only")

			stored, err := tokens.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "u1", stored.UserID)
		})
	}

	var out bytes.Buffer
	err = RunLogin(ctx, bufferIO(&out, ""), auth.NewStore(memory.New()), "bogus")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}

func TestRunStatusAndLogout(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	io := bufferIO(&out, "")
	tokens := auth.NewStore(memory.New())

	require.NoError(t, RunStatus(ctx, io, tokens, time.Now()))
	assert.Contains(t, out.String(), "Not logged in.")

	token, err := jwt.NewService("secret", time.Hour).GenerateToken("u1", "Alice", jwt.RoleEditor)
	require.NoError(t, err)
	_, err = tokens.Save(ctx, token)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, RunStatus(ctx, io, tokens, time.Now()))
	assert.Contains(t, out.String(), "User:    Alice (u1)")
	assert.Contains(t, out.String(), "Role:    editor")
	assert.NotContains(t, out.String(), "expired")

	out.Reset()
	require.NoError(t, RunStatus(ctx, io, tokens, time.Now().Add(2*time.Hour)))
	assert.Contains(t, out.String(), "expired, please login again")

	out.Reset()
	require.NoError(t, RunLogout(ctx, io, tokens))
	assert.Contains(t, out.String(), "✓ Logged out")
	_, err = tokens.Load(ctx)
	assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/client/storage"
)

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "presence/u1")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "presence/u2", "b"))
	require.NoError(t, s.Set(ctx, "presence/u1", "a"))
	require.NoError(t, s.Set(ctx, "lock/x", "c"))

	keys, err := s.Keys(ctx, storage.PrefixPresence)
	require.NoError(t, err)
	assert.Equal(t, []string{"presence/u1", "presence/u2"}, keys)

	require.NoError(t, s.Remove(ctx, "presence/u1"))
	assert.Equal(t, 2, s.Len())
}

func TestStore_FailWith(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("disk full")

	s.FailWith(boom)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), boom)
	_, err := s.Keys(ctx, "")
	assert.ErrorIs(t, err, boom)

	s.FailWith(nil)
	assert.NoError(t, s.Set(ctx, "k", "v"))
}

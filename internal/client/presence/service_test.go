package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/client/storage/memory"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newPair(t *testing.T) (alice, bob *Service, store *memory.Store, clk *clock.Fake) {
	t.Helper()
	store = memory.New()
	clk = clock.NewFake(epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alice = NewService(store, "alice", "Alice", DefaultConfig(), clk, logger)
	bob = NewService(store, "bob", "Bob", DefaultConfig(), clk, logger)
	return alice, bob, store, clk
}

func userIDs(users []models.CollaborativeUser) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	return ids
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, ColorFor("alice"), ColorFor("alice"))
	assert.Contains(t, palette, ColorFor("bob"))
	assert.Contains(t, palette, ColorFor(""))
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(memory.New(), "u1", "", Config{}, nil, slog.Default())

	assert.Equal(t, "u1", s.Self().UserName)
	assert.Equal(t, DefaultConfig(), s.cfg)
}

func TestListActive(t *testing.T) {
	alice, bob, _, clk := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.Heartbeat(ctx))
	require.NoError(t, bob.Heartbeat(ctx))

	users := alice.ListActive(ctx)
	assert.Equal(t, []string{"alice", "bob"}, userIDs(users))
	assert.Equal(t, "Bob", users[1].UserName)
	assert.Equal(t, ColorFor("bob"), users[1].Color)

	// Bob перестает слать heartbeat и выпадает после 60 секунд
	clk.Advance(50 * time.Second)
	require.NoError(t, alice.Heartbeat(ctx))
	assert.Len(t, alice.ListActive(ctx), 2)

	clk.Advance(11 * time.Second)
	assert.Equal(t, []string{"alice"}, userIDs(alice.ListActive(ctx)))
}

func TestListActive_NotifiesOnChangeOnly(t *testing.T) {
	alice, bob, _, clk := newPair(t)
	ctx := context.Background()

	var notifications [][]models.CollaborativeUser
	alice.OnChange(func(users []models.CollaborativeUser) {
		notifications = append(notifications, users)
	})

	require.NoError(t, alice.Heartbeat(ctx))
	alice.ListActive(ctx)
	alice.ListActive(ctx)
	require.Len(t, notifications, 1)
	assert.Equal(t, []string{"alice"}, userIDs(notifications[0]))

	require.NoError(t, bob.Heartbeat(ctx))
	alice.ListActive(ctx)
	alice.ListActive(ctx)
	require.Len(t, notifications, 2)
	assert.Equal(t, []string{"alice", "bob"}, userIDs(notifications[1]))

	// Новая активность Bob меняет состав, даже если список тот же
	clk.Advance(30 * time.Second)
	require.NoError(t, bob.Heartbeat(ctx))
	alice.ListActive(ctx)
	require.Len(t, notifications, 3)
	assert.True(t, notifications[2][1].LastActivity.Equal(epoch.Add(30*time.Second)))
	assert.True(t, alice.Users()[1].LastActivity.Equal(epoch.Add(30*time.Second)))

	alice.ListActive(ctx)
	assert.Len(t, notifications, 3)
}

func TestListActive_StorageError(t *testing.T) {
	alice, _, store, _ := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.Heartbeat(ctx))
	alice.ListActive(ctx)

	store.FailWith(errors.New("redis down"))
	assert.Error(t, alice.Heartbeat(ctx))
	assert.Equal(t, []string{"alice"}, userIDs(alice.ListActive(ctx)))
}

func TestSweepStalePresence(t *testing.T) {
	alice, bob, store, clk := newPair(t)
	ctx := context.Background()

	require.NoError(t, bob.Heartbeat(ctx))
	clk.Advance(61 * time.Second)
	require.NoError(t, alice.Heartbeat(ctx))
	require.NoError(t, store.Set(ctx, storage.PrefixPresence+"broken", "not json"))

	assert.Equal(t, 2, alice.SweepStalePresence(ctx))

	keys, err := store.Keys(ctx, storage.PrefixPresence)
	require.NoError(t, err)
	assert.Equal(t, []string{storage.PrefixPresence + "alice"}, keys)
}

func TestEditLocks(t *testing.T) {
	alice, bob, _, _ := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.StartEditingCell(ctx, "s1", "2024-03-01"))

	// Своя блокировка не мешает себе, чужая мешает
	assert.False(t, alice.IsCellLockedByOther(ctx, "s1", "2024-03-01"))
	assert.True(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-01"))
	assert.False(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-02"))

	err := bob.StartEditingCell(ctx, "s1", "2024-03-01")
	assert.ErrorIs(t, err, models.ErrLockHeld)

	holder, ok := bob.LockHolder(ctx, "s1", "2024-03-01")
	require.True(t, ok)
	assert.Equal(t, "Alice", holder.UserName)

	// Чужой StopEditingCell не снимает блокировку
	bob.StopEditingCell(ctx, "s1", "2024-03-01")
	assert.True(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-01"))

	alice.StopEditingCell(ctx, "s1", "2024-03-01")
	assert.False(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-01"))
	require.NoError(t, bob.StartEditingCell(ctx, "s1", "2024-03-01"))
}

func TestEditLocks_Expire(t *testing.T) {
	alice, bob, store, clk := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.StartEditingCell(ctx, "s1", "2024-03-01"))
	require.NoError(t, alice.StartEditingCell(ctx, "s2", "2024-03-01"))

	clk.Advance(4 * time.Minute)
	require.NoError(t, alice.StartEditingCell(ctx, "s2", "2024-03-01")) // обновление
	clk.Advance(time.Minute + time.Second)

	assert.False(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-01"), "stale lock is ignored")
	assert.True(t, bob.IsCellLockedByOther(ctx, "s2", "2024-03-01"))
	assert.Len(t, bob.ActiveLocks(ctx), 1)

	assert.Equal(t, 1, bob.SweepStaleLocks(ctx))
	keys, err := store.Keys(ctx, storage.PrefixLock)
	require.NoError(t, err)
	assert.Equal(t, []string{storage.PrefixLock + models.CellKey("s2", "2024-03-01")}, keys)
}

func TestForceRelease(t *testing.T) {
	alice, bob, _, _ := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.StartEditingCell(ctx, "s1", "2024-03-01"))
	require.NoError(t, bob.ForceRelease(ctx, "s1", "2024-03-01"))
	assert.False(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-01"))
}

func TestIsCellLockedByOther_StorageError(t *testing.T) {
	alice, bob, store, _ := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.StartEditingCell(ctx, "s1", "2024-03-01"))
	store.FailWith(errors.New("redis down"))
	assert.False(t, bob.IsCellLockedByOther(ctx, "s1", "2024-03-01"))
}

func TestLeave(t *testing.T) {
	alice, bob, store, _ := newPair(t)
	ctx := context.Background()

	require.NoError(t, alice.Heartbeat(ctx))
	require.NoError(t, alice.StartEditingCell(ctx, "s1", "2024-03-01"))
	require.NoError(t, bob.StartEditingCell(ctx, "s2", "2024-03-01"))

	alice.Leave(ctx)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{storage.PrefixLock + models.CellKey("s2", "2024-03-01")}, keys)
}

func TestRun(t *testing.T) {
	alice, bob, store, clk := newPair(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- alice.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), storage.PrefixPresence+"alice")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = bob.Heartbeat(context.Background())
		clk.Advance(10 * time.Second)
		return len(alice.Users()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, err := store.Get(context.Background(), storage.PrefixPresence+"alice")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

// Package presence tracks who is in the session (heartbeat records with
// timeout eviction) and advisory per-cell edit locks in a shared KV store.
// Locks are hints for the UI; nothing on the server enforces them.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
)

// Config holds presence timings.
type Config struct {
	HeartbeatInterval     time.Duration `mapstructure:"heartbeat_interval"`
	PresenceSweepInterval time.Duration `mapstructure:"presence_sweep_interval"`
	PresenceTTL           time.Duration `mapstructure:"presence_ttl"`
	LockSweepInterval     time.Duration `mapstructure:"lock_sweep_interval"`
	LockTTL               time.Duration `mapstructure:"lock_ttl"`
}

// DefaultConfig returns the default presence timings.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:     10 * time.Second,
		PresenceSweepInterval: 10 * time.Second,
		PresenceTTL:           60 * time.Second,
		LockSweepInterval:     30 * time.Second,
		LockTTL:               5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.PresenceSweepInterval <= 0 {
		c.PresenceSweepInterval = d.PresenceSweepInterval
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = d.PresenceTTL
	}
	if c.LockSweepInterval <= 0 {
		c.LockSweepInterval = d.LockSweepInterval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	return c
}

// palette цветов для подсветки участников
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#008080", "#9a6324",
}

// ColorFor returns the deterministic highlight color of a user.
func ColorFor(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Service is the presence and soft-lock service of one user.
type Service struct {
	store     storage.KVStore
	clock     clock.Clock
	logger    *slog.Logger
	ownLocks  map[string]models.CellRef
	roster    []models.CollaborativeUser
	listeners []func([]models.CollaborativeUser)
	self      models.CollaborativeUser
	cfg       Config
	mu        sync.Mutex
}

// NewService creates the presence service for userID.
func NewService(store storage.KVStore, userID, userName string, cfg Config, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if userName == "" {
		userName = userID
	}
	return &Service{
		store:  store,
		clock:  clk,
		logger: logger,
		cfg:    cfg.withDefaults(),
		self: models.CollaborativeUser{
			UserID:   userID,
			UserName: userName,
			Color:    ColorFor(userID),
		},
		ownLocks: make(map[string]models.CellRef),
	}
}

// Self returns the local user.
func (s *Service) Self() models.CollaborativeUser {
	return s.self
}

// OnChange registers fn to receive the roster whenever it changes.
func (s *Service) OnChange(fn func([]models.CollaborativeUser)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

// Heartbeat writes the presence record of the local user.
func (s *Service) Heartbeat(ctx context.Context) error {
	user := s.self
	user.LastActivity = s.clock.Now()

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}
	if err := s.store.Set(ctx, storage.PrefixPresence+user.UserID, string(data)); err != nil {
		s.logger.Debug("Failed to write heartbeat", "user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}
	return nil
}

// ListActive reads every presence record, drops the ones older than the
// presence TTL and returns the roster sorted by user id. Listeners are
// notified only when the roster changed. On storage errors the previous
// roster is returned.
func (s *Service) ListActive(ctx context.Context) []models.CollaborativeUser {
	records, err := s.readPresence(ctx)
	if err != nil {
		s.logger.Warn("Failed to read presence records", "error", err)
		return s.Users()
	}

	now := s.clock.Now()
	byID := make(map[string]models.CollaborativeUser, len(records))
	for _, u := range records {
		if now.Sub(u.LastActivity) > s.cfg.PresenceTTL {
			continue
		}
		if prev, ok := byID[u.UserID]; ok && prev.LastActivity.After(u.LastActivity) {
			continue
		}
		byID[u.UserID] = u
	}

	active := make([]models.CollaborativeUser, 0, len(byID))
	for _, u := range byID {
		active = append(active, u)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].UserID < active[j].UserID })

	s.mu.Lock()
	changed := !sameRoster(s.roster, active)
	if changed {
		s.roster = active
	}
	listeners := make([]func([]models.CollaborativeUser), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(copyUsers(active))
		}
	}
	return copyUsers(active)
}

// Users returns the last known roster.
func (s *Service) Users() []models.CollaborativeUser {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyUsers(s.roster)
}

// SweepStalePresence removes presence records older than the TTL and
// returns how many were removed.
func (s *Service) SweepStalePresence(ctx context.Context) int {
	keys, err := s.store.Keys(ctx, storage.PrefixPresence)
	if err != nil {
		s.logger.Warn("Failed to list presence records", "error", err)
		return 0
	}

	now := s.clock.Now()
	removed := 0
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var u models.CollaborativeUser
		if err := json.Unmarshal([]byte(raw), &u); err != nil || now.Sub(u.LastActivity) > s.cfg.PresenceTTL {
			if err := s.store.Remove(ctx, key); err != nil {
				s.logger.Debug("Failed to remove stale presence", "key", key, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Stale presence records removed", "count", removed)
	}
	return removed
}

// StartEditingCell takes the soft lock of a cell. Returns models.ErrLockHeld
// when another user holds a fresh lock on it. Re-taking an own lock
// refreshes its start time.
func (s *Service) StartEditingCell(ctx context.Context, staffID, date string) error {
	if holder, ok := s.LockHolder(ctx, staffID, date); ok && holder.UserID != s.self.UserID {
		return fmt.Errorf("%w: %s/%s held by %s", models.ErrLockHeld, staffID, date, holder.UserName)
	}

	lock := models.EditLock{
		UserID:    s.self.UserID,
		UserName:  s.self.UserName,
		StaffID:   staffID,
		Date:      date,
		StartTime: s.clock.Now(),
	}
	data, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	key := lockKey(staffID, date)
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		s.logger.Warn("Failed to write edit lock", "staff_id", staffID, "date", date, "error", err)
		return fmt.Errorf("failed to write edit lock: %w", err)
	}

	s.mu.Lock()
	s.ownLocks[key] = models.CellRef{StaffID: staffID, Date: date}
	s.mu.Unlock()
	return nil
}

// StopEditingCell releases the lock if the local user holds it.
func (s *Service) StopEditingCell(ctx context.Context, staffID, date string) {
	key := lockKey(staffID, date)

	s.mu.Lock()
	delete(s.ownLocks, key)
	s.mu.Unlock()

	lock, err := s.readLock(ctx, key)
	if err != nil || lock.UserID != s.self.UserID {
		return
	}
	if err := s.store.Remove(ctx, key); err != nil {
		s.logger.Debug("Failed to release edit lock", "staff_id", staffID, "date", date, "error", err)
	}
}

// IsCellLockedByOther reports whether another user holds a fresh lock on
// the cell. Storage errors read as "not locked".
func (s *Service) IsCellLockedByOther(ctx context.Context, staffID, date string) bool {
	holder, ok := s.LockHolder(ctx, staffID, date)
	return ok && holder.UserID != s.self.UserID
}

// LockHolder returns the fresh lock on the cell, if any.
func (s *Service) LockHolder(ctx context.Context, staffID, date string) (models.EditLock, bool) {
	lock, err := s.readLock(ctx, lockKey(staffID, date))
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Debug("Failed to read edit lock", "staff_id", staffID, "date", date, "error", err)
		}
		return models.EditLock{}, false
	}
	if s.clock.Now().Sub(lock.StartTime) > s.cfg.LockTTL {
		return models.EditLock{}, false
	}
	return lock, true
}

// ActiveLocks returns every fresh lock, ordered by cell key.
func (s *Service) ActiveLocks(ctx context.Context) []models.EditLock {
	keys, err := s.store.Keys(ctx, storage.PrefixLock)
	if err != nil {
		s.logger.Warn("Failed to list edit locks", "error", err)
		return nil
	}

	now := s.clock.Now()
	var out []models.EditLock
	for _, key := range keys {
		lock, err := s.readLock(ctx, key)
		if err != nil || now.Sub(lock.StartTime) > s.cfg.LockTTL {
			continue
		}
		out = append(out, lock)
	}
	return out
}

// ForceRelease removes the lock of a cell regardless of its owner.
func (s *Service) ForceRelease(ctx context.Context, staffID, date string) error {
	key := lockKey(staffID, date)
	if err := s.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("failed to release edit lock: %w", err)
	}

	s.mu.Lock()
	delete(s.ownLocks, key)
	s.mu.Unlock()

	s.logger.Info("Edit lock force-released", "staff_id", staffID, "date", date)
	return nil
}

// SweepStaleLocks removes locks older than the lock TTL and returns how
// many were removed.
func (s *Service) SweepStaleLocks(ctx context.Context) int {
	keys, err := s.store.Keys(ctx, storage.PrefixLock)
	if err != nil {
		s.logger.Warn("Failed to list edit locks", "error", err)
		return 0
	}

	now := s.clock.Now()
	removed := 0
	for _, key := range keys {
		lock, err := s.readLock(ctx, key)
		if err == nil && now.Sub(lock.StartTime) <= s.cfg.LockTTL {
			continue
		}
		if errors.Is(err, storage.ErrKeyNotFound) {
			continue
		}
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Debug("Failed to remove stale lock", "key", key, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("Stale edit locks removed", "count", removed)
	}
	return removed
}

// Run sends heartbeats and runs both sweeps until ctx is cancelled, then
// removes the local presence record and own locks.
func (s *Service) Run(ctx context.Context) error {
	_ = s.Heartbeat(ctx)
	s.ListActive(ctx)

	heartbeat := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	presenceSweep := s.clock.NewTicker(s.cfg.PresenceSweepInterval)
	defer presenceSweep.Stop()
	lockSweep := s.clock.NewTicker(s.cfg.LockSweepInterval)
	defer lockSweep.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Leave(context.Background())
			return nil
		case <-heartbeat.Chan():
			_ = s.Heartbeat(ctx)
		case <-presenceSweep.Chan():
			s.SweepStalePresence(ctx)
			s.ListActive(ctx)
		case <-lockSweep.Chan():
			s.SweepStaleLocks(ctx)
		}
	}
}

// Leave removes the local presence record and every lock the user holds.
func (s *Service) Leave(ctx context.Context) {
	s.mu.Lock()
	own := make([]models.CellRef, 0, len(s.ownLocks))
	for _, ref := range s.ownLocks {
		own = append(own, ref)
	}
	s.mu.Unlock()

	for _, ref := range own {
		s.StopEditingCell(ctx, ref.StaffID, ref.Date)
	}
	if err := s.store.Remove(ctx, storage.PrefixPresence+s.self.UserID); err != nil {
		s.logger.Debug("Failed to remove presence record", "error", err)
	}
	s.logger.Info("Left collaborative session", "user_id", s.self.UserID)
}

func (s *Service) readPresence(ctx context.Context) ([]models.CollaborativeUser, error) {
	keys, err := s.store.Keys(ctx, storage.PrefixPresence)
	if err != nil {
		return nil, err
	}

	users := make([]models.CollaborativeUser, 0, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var u models.CollaborativeUser
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Debug("Corrupted presence record skipped", "key", key, "error", err)
			continue
		}
		if u.UserID == "" {
			u.UserID = strings.TrimPrefix(key, storage.PrefixPresence)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Service) readLock(ctx context.Context, key string) (models.EditLock, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return models.EditLock{}, err
	}
	var lock models.EditLock
	if err := json.Unmarshal([]byte(raw), &lock); err != nil {
		return models.EditLock{}, fmt.Errorf("corrupted lock %s: %w", key, err)
	}
	return lock, nil
}

func lockKey(staffID, date string) string {
	return storage.PrefixLock + models.CellKey(staffID, date)
}

func sameRoster(a, b []models.CollaborativeUser) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UserID != b[i].UserID || a[i].UserName != b[i].UserName ||
			!a[i].LastActivity.Equal(b[i].LastActivity) {
			return false
		}
	}
	return true
}

func copyUsers(in []models.CollaborativeUser) []models.CollaborativeUser {
	out := make([]models.CollaborativeUser, len(in))
	copy(out, in)
	return out
}

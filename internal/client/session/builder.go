package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/shiftgrid/internal/client/history"
	"github.com/iudanet/shiftgrid/internal/client/presence"
	"github.com/iudanet/shiftgrid/internal/client/shifts"
	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/client/storage/memory"
	offline "github.com/iudanet/shiftgrid/internal/client/sync"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/rules"
)

// Config holds session settings.
type Config struct {
	UserID          string
	UserName        string
	StaffIDs        []string // строки сетки; пусто - все сотрудники из загруженных записей
	Presence        presence.Config
	Queue           offline.Config
	HistoryCapacity int
	RuleDebounce    time.Duration
}

// Builder assembles a Session from its collaborators.
type Builder struct {
	persistence shifts.Persistence
	shared      storage.KVStore
	local       storage.KVStore
	clock       clock.Clock
	logger      *slog.Logger
	onConflict  offline.ConflictHandler
	onError     ErrorHandler
	rules       []rules.Rule
	cfg         Config
}

// NewBuilder starts a builder with cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithPersistence sets the record service. Required.
func (b *Builder) WithPersistence(p shifts.Persistence) *Builder {
	b.persistence = p
	return b
}

// WithSharedStore sets the store for presence and edit locks.
func (b *Builder) WithSharedStore(s storage.KVStore) *Builder {
	b.shared = s
	return b
}

// WithLocalStore sets the store for the pending log and the offline cache.
func (b *Builder) WithLocalStore(s storage.KVStore) *Builder {
	b.local = s
	return b
}

// WithClock sets the time source.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithRules replaces the default rule set.
func (b *Builder) WithRules(r []rules.Rule) *Builder {
	b.rules = r
	return b
}

// WithConflictHandler sets the handler that receives every conflict.
func (b *Builder) WithConflictHandler(h offline.ConflictHandler) *Builder {
	b.onConflict = h
	return b
}

// WithErrorHandler sets the handler for user-visible errors.
func (b *Builder) WithErrorHandler(h ErrorHandler) *Builder {
	b.onError = h
	return b
}

// Build creates the session. Missing stores default to in-memory ones.
func (b *Builder) Build() (*Session, error) {
	if b.persistence == nil {
		return nil, errors.New("persistence is required")
	}
	if b.cfg.UserID == "" {
		return nil, errors.New("user id is required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := b.clock
	if clk == nil {
		clk = clock.System()
	}
	shared := b.shared
	if shared == nil {
		shared = memory.New()
	}
	local := b.local
	if local == nil {
		local = memory.New()
	}
	ruleSet := b.rules
	if ruleSet == nil {
		var err error
		ruleSet, err = rules.BuildAll(rules.DefaultDefinitions())
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		cfg:     b.cfg,
		clock:   clk,
		logger:  logger,
		rules:   ruleSet,
		onError: b.onError,
	}

	s.shifts = shifts.NewService(b.persistence, local, clk, b.cfg.UserID, logger.With("component", "shifts"))
	s.queue = offline.NewQueue(s.shifts, local, clk, b.cfg.Queue, logger.With("component", "queue"))
	s.queue.OnConflict(b.onConflict)
	s.queue.OnRejected(func(change models.PendingChange, err error) {
		s.reportError(rejectedError(change, err))
	})
	s.presence = presence.NewService(shared, b.cfg.UserID, b.cfg.UserName, b.cfg.Presence, clk, logger.With("component", "presence"))
	s.history = history.NewManager(b.cfg.HistoryCapacity, s.onUndo, s.onRedo, clk, logger.With("component", "history"))

	return s, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/shiftgrid/internal/client/api"
	"github.com/iudanet/shiftgrid/internal/client/auth"
	"github.com/iudanet/shiftgrid/internal/client/cli"
	"github.com/iudanet/shiftgrid/internal/client/session"
	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/client/storage/boltdb"
	"github.com/iudanet/shiftgrid/internal/client/storage/memory"
	"github.com/iudanet/shiftgrid/internal/client/storage/redisstore"
	"github.com/iudanet/shiftgrid/internal/rules"
)

// withSession собирает сессию, выполняет fn и закрывает все ресурсы
func (a *app) withSession(ctx context.Context, fn func(c *cli.Cli) error) error {
	cfg := a.cfg.Client

	local, closeLocal := a.openLocalStore(ctx)
	defer closeLocal()

	identity, err := a.identity(ctx, auth.NewStore(local))
	if err != nil {
		return err
	}

	apiClient := api.NewClient(cfg.ServerURL, identity.Raw)
	apiClient.SetTimeout(cfg.RequestTimeout)

	shared, closeShared := a.openSharedStore(ctx)
	defer closeShared()

	ruleSet, err := rules.BuildAll(a.cfg.Rules.Definitions)
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	c := cli.New(a.io, nil)
	s, err := session.NewBuilder(session.Config{
		UserID:          identity.UserID,
		UserName:        identity.UserName,
		StaffIDs:        cfg.StaffIDs,
		Presence:        a.cfg.Presence,
		Queue:           a.cfg.Queue,
		HistoryCapacity: a.cfg.History.Capacity,
		RuleDebounce:    a.cfg.Rules.Debounce,
	}).
		WithPersistence(apiClient).
		WithLocalStore(local).
		WithSharedStore(shared).
		WithLogger(a.logger).
		WithRules(ruleSet).
		WithConflictHandler(c.ConflictHandler()).
		WithErrorHandler(c.ErrorHandler()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build session: %w", err)
	}

	if err := s.Start(ctx, a.month); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer s.Close()

	c.SetSession(s)
	return fn(c)
}

// identity выбирает токен: из конфигурации, сохраненный командой login
// или введенный пользователем. Личность берется из конфигурации или из токена.
func (a *app) identity(ctx context.Context, tokens *auth.Store) (*auth.Token, error) {
	cfg := a.cfg.Client

	var tok *auth.Token
	switch stored, err := tokens.Load(ctx); {
	case cfg.Token != "":
		tok, _ = auth.Parse(cfg.Token)
		if tok == nil {
			tok = &auth.Token{Raw: strings.TrimSpace(cfg.Token)}
		}
	case err == nil:
		tok = stored
	case errors.Is(err, auth.ErrNotLoggedIn):
		raw, err := a.io.ReadPassword("Access token: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read token: %w", err)
		}
		if tok, err = auth.Parse(raw); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if tok.Expired(time.Now()) {
		a.logger.Warn("Access token has expired, the server will reject edits", "expires_at", tok.ExpiresAt)
	}
	if cfg.UserID != "" {
		tok.UserID = cfg.UserID
	}
	if cfg.UserName != "" {
		tok.UserName = cfg.UserName
	}
	if tok.UserID == "" {
		return nil, errors.New("unknown user: set client.user_id or use a shiftgrid access token")
	}
	if tok.UserName == "" {
		tok.UserName = tok.UserID
	}
	return tok, nil
}

// openLocalStore открывает bbolt файл; при ошибке работает в памяти
func (a *app) openLocalStore(ctx context.Context) (storage.KVStore, func()) {
	db, err := boltdb.New(ctx, a.cfg.Client.DBPath)
	if err != nil {
		a.logger.Warn("Failed to open local database, offline changes will not survive restart",
			"path", a.cfg.Client.DBPath, "error", err)
		return memory.New(), func() {}
	}
	return db, func() {
		if err := db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}

// sharedDialTimeout ограничивает ожидание redis при запуске команды
const sharedDialTimeout = 3 * time.Second

// openSharedStore подключается к redis для presence. Без адреса или при
// недоступном redis presence и блокировки остаются локальными.
func (a *app) openSharedStore(ctx context.Context) (storage.KVStore, func()) {
	rc := a.cfg.Client.Redis
	if rc.Addr == "" {
		return memory.New(), func() {}
	}

	dialCtx, cancel := context.WithTimeout(ctx, sharedDialTimeout)
	defer cancel()

	store, err := redisstore.Dial(dialCtx, rc.Addr, rc.Password, rc.DB, redisstore.Options{
		Namespace: fmt.Sprintf("%s:%s:", rc.Prefix, a.month),
		TTL:       a.cfg.Presence.LockTTL,
	})
	if err != nil {
		a.logger.Warn("Presence store unreachable, other users will not be visible",
			"addr", rc.Addr, "error", err)
		return memory.New(), func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			a.logger.Error("failed to close presence store", "error", err)
		}
	}
}

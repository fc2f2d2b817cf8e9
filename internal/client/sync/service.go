// Package sync implements the offline queue: a durable log of writes the
// server has not confirmed yet, batch resubmission with retry, and conflict
// surfacing. Conflicts are never resolved automatically.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/shiftgrid/internal/client/shifts"
	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
)

//go:generate moq -out submitter_mock.go . Submitter

// Submitter is the part of the sync layer the queue drives.
type Submitter interface {
	// SubmitPending отправляет пакет изменений; при ошибке возвращает частичный результат
	SubmitPending(ctx context.Context, changes []models.PendingChange) (*shifts.SubmitResult, error)

	// ForceSubmit перезаписывает серверное значение локальным
	ForceSubmit(ctx context.Context, change models.PendingChange, remoteVersion int64) error

	// AcceptRemote принимает серверное значение ячейки
	AcceptRemote(info models.ConflictInfo)
}

// ConflictHandler receives every detected conflict.
type ConflictHandler func(info models.ConflictInfo)

// RejectionHandler receives queued changes the server refused for good,
// after they were removed from the queue.
type RejectionHandler func(change models.PendingChange, cause error)

var (
	// ErrChangeNotFound is returned by ResolveConflict for an unknown id
	ErrChangeNotFound = errors.New("pending change not found")
	// ErrInvalidStrategy is returned by ResolveConflict for an unknown strategy
	ErrInvalidStrategy = errors.New("invalid conflict strategy")
)

// Config holds queue tuning.
type Config struct {
	RetryDelay time.Duration `mapstructure:"retry_delay"` // пауза между попытками в офлайне
	MaxRetries int           `mapstructure:"max_retries"` // после превышения изменение требует вмешательства
}

// DefaultConfig returns the default queue settings.
func DefaultConfig() Config {
	return Config{
		RetryDelay: 5 * time.Second,
		MaxRetries: 3,
	}
}

// SyncResult contains sync operation results
type SyncResult struct {
	Submitted  int // количество отправленных изменений
	Successful int // количество подтвержденных изменений
	Rejected   int // количество отклоненных сервером изменений
	Conflicts  int // количество обнаруженных конфликтов
}

// Queue is the offline pending-change queue.
type Queue struct {
	submitter  Submitter
	store      storage.KVStore
	clock      clock.Clock
	retry      clock.Timer
	logger     *slog.Logger
	onConflict ConflictHandler
	onReject   RejectionHandler
	conflicts  map[string]models.ConflictInfo
	changes    []models.PendingChange
	cfg        Config
	mu         stdsync.Mutex
	online     bool
	syncing    bool
	closed     bool
}

// NewQueue creates a queue persisting its log to store. The queue starts online.
func NewQueue(submitter Submitter, store storage.KVStore, clk clock.Clock, cfg Config, logger *slog.Logger) *Queue {
	if clk == nil {
		clk = clock.System()
	}
	defaults := DefaultConfig()
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	return &Queue{
		submitter: submitter,
		store:     store,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
		conflicts: make(map[string]models.ConflictInfo),
		online:    true,
	}
}

// OnConflict sets the handler that receives conflicts.
func (q *Queue) OnConflict(handler ConflictHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.onConflict = handler
}

// OnRejected sets the handler that receives rejected changes.
func (q *Queue) OnRejected(handler RejectionHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.onReject = handler
}

// Load restores the queue from the durable log.
func (q *Queue) Load(ctx context.Context) error {
	keys, err := q.store.Keys(ctx, storage.PrefixPending)
	if err != nil {
		return fmt.Errorf("failed to list pending changes: %w", err)
	}

	loaded := make([]models.PendingChange, 0, len(keys))
	for _, key := range keys {
		raw, err := q.store.Get(ctx, key)
		if err != nil {
			q.logger.Warn("Failed to read pending change", "key", key, "error", err)
			continue
		}
		var change models.PendingChange
		if err := json.Unmarshal([]byte(raw), &change); err != nil {
			q.logger.Warn("Corrupted pending change skipped", "key", key, "error", err)
			continue
		}
		// Информация о конфликте не сохраняется: изменение будет отправлено
		// заново и конфликт, если он остался, будет обнаружен повторно
		change.Conflicted = false
		loaded = append(loaded, change)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Timestamp.Before(loaded[j].Timestamp)
	})

	q.mu.Lock()
	known := make(map[string]bool, len(q.changes))
	for _, c := range q.changes {
		known[c.ID] = true
	}
	for _, c := range loaded {
		if !known[c.ID] {
			q.changes = append(q.changes, c)
		}
	}
	q.mu.Unlock()

	q.logger.Info("Pending changes loaded", "count", len(loaded))
	return nil
}

// AddPendingChange appends update to the queue and the durable log and
// returns the new change id. baseVersion is the version of the cell the
// edit was made on; it is sent as the expected version on submission.
// A sync attempt is scheduled when online.
func (q *Queue) AddPendingChange(ctx context.Context, update models.CellUpdate, baseVersion int64) (string, error) {
	change := models.PendingChange{
		ID:          uuid.New().String(),
		Update:      update,
		BaseVersion: baseVersion,
		Timestamp:   q.clock.Now(),
	}

	q.mu.Lock()
	q.changes = append(q.changes, change)
	online := q.online
	q.mu.Unlock()

	if err := q.persist(ctx, change); err != nil {
		// Изменение остается в памяти, но не переживет перезапуск
		q.logger.Warn("Failed to persist pending change", "change_id", change.ID, "error", err)
	}

	q.logger.Debug("Pending change added", "change_id", change.ID, "staff_id", update.StaffID, "date", update.Date)

	if online {
		q.trigger()
	}
	return change.ID, nil
}

// ReportConflict records a conflict detected outside the queue (a direct
// write rejected by the version precondition) and hands it to the handler.
func (q *Queue) ReportConflict(ctx context.Context, update models.CellUpdate, baseVersion int64, cause error) (string, error) {
	change := models.PendingChange{
		ID:          uuid.New().String(),
		Update:      update,
		BaseVersion: baseVersion,
		Timestamp:   q.clock.Now(),
		Conflicted:  true,
		LastError:   cause.Error(),
	}
	info := shifts.ConflictFromError(change.ID, update, cause)

	q.mu.Lock()
	q.changes = append(q.changes, change)
	q.conflicts[change.ID] = info
	handler := q.onConflict
	q.mu.Unlock()

	if err := q.persist(ctx, change); err != nil {
		q.logger.Warn("Failed to persist conflicting change", "change_id", change.ID, "error", err)
	}
	if handler != nil {
		handler(info)
	}
	return change.ID, nil
}

// Sync submits every queued change that is not waiting for conflict
// resolution. It is single-flight: a call made while another is in flight,
// while offline or with nothing to submit returns (nil, nil).
func (q *Queue) Sync(ctx context.Context) (*SyncResult, error) {
	q.mu.Lock()
	if q.syncing || !q.online || q.closed {
		q.mu.Unlock()
		return nil, nil
	}
	batch := make([]models.PendingChange, 0, len(q.changes))
	for _, c := range q.changes {
		if !c.Conflicted {
			batch = append(batch, c)
		}
	}
	if len(batch) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	q.syncing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.mu.Unlock()
	}()

	q.logger.Info("Starting synchronization", "pending", len(batch))

	submitResult, err := q.submitter.SubmitPending(ctx, batch)
	if submitResult == nil {
		submitResult = &shifts.SubmitResult{}
	}

	result := &SyncResult{
		Submitted:  len(batch),
		Successful: len(submitResult.Successful),
		Rejected:   len(submitResult.Rejected),
		Conflicts:  len(submitResult.Conflicts),
	}

	for _, id := range submitResult.Successful {
		q.remove(ctx, id)
	}
	for _, rej := range submitResult.Rejected {
		q.reject(ctx, batch, rej)
	}
	for _, info := range submitResult.Conflicts {
		q.markConflicted(ctx, info)
	}

	if err != nil {
		q.recordFailure(ctx, batch, submitResult, err)
		if errors.Is(err, models.ErrUnavailable) {
			q.SetOnline(false)
		} else {
			q.scheduleRetry()
		}
		return result, fmt.Errorf("sync request failed: %w", err)
	}

	q.logger.Info("Synchronization completed",
		"submitted", result.Submitted,
		"successful", result.Successful,
		"rejected", result.Rejected,
		"conflicts", result.Conflicts)

	return result, nil
}

// recordFailure увеличивает счетчик попыток у изменений, оставшихся без ответа
func (q *Queue) recordFailure(ctx context.Context, batch []models.PendingChange, res *shifts.SubmitResult, cause error) {
	handled := make(map[string]bool)
	for _, id := range res.Successful {
		handled[id] = true
	}
	for _, rej := range res.Rejected {
		handled[rej.ChangeID] = true
	}
	for _, info := range res.Conflicts {
		handled[info.ChangeID] = true
	}
	inBatch := make(map[string]bool, len(batch))
	for _, c := range batch {
		if !handled[c.ID] {
			inBatch[c.ID] = true
		}
	}

	var updated []models.PendingChange
	q.mu.Lock()
	for i := range q.changes {
		if !inBatch[q.changes[i].ID] {
			continue
		}
		q.changes[i].RetryCount++
		q.changes[i].LastError = cause.Error()
		if q.changes[i].RetryCount == q.cfg.MaxRetries+1 {
			q.logger.Warn("Pending change needs attention",
				"change_id", q.changes[i].ID,
				"retries", q.changes[i].RetryCount,
				"error", cause)
		}
		updated = append(updated, q.changes[i])
	}
	q.mu.Unlock()

	for _, c := range updated {
		if err := q.persist(ctx, c); err != nil {
			q.logger.Warn("Failed to persist retry state", "change_id", c.ID, "error", err)
		}
	}
}

// reject убирает отклоненное изменение из очереди и сообщает о нем обработчику
func (q *Queue) reject(ctx context.Context, batch []models.PendingChange, rej shifts.Rejection) {
	q.logger.Warn("Pending change rejected by server", "change_id", rej.ChangeID, "error", rej.Err)
	q.remove(ctx, rej.ChangeID)

	q.mu.Lock()
	handler := q.onReject
	q.mu.Unlock()
	if handler == nil {
		return
	}
	for _, c := range batch {
		if c.ID == rej.ChangeID {
			handler(c, rej.Err)
			return
		}
	}
}

func (q *Queue) markConflicted(ctx context.Context, info models.ConflictInfo) {
	var change models.PendingChange
	found := false

	q.mu.Lock()
	for i := range q.changes {
		if q.changes[i].ID == info.ChangeID {
			q.changes[i].Conflicted = true
			change = q.changes[i]
			found = true
			break
		}
	}
	if found {
		q.conflicts[info.ChangeID] = info
	}
	handler := q.onConflict
	q.mu.Unlock()

	if !found {
		return
	}
	if err := q.persist(ctx, change); err != nil {
		q.logger.Warn("Failed to persist conflict state", "change_id", change.ID, "error", err)
	}

	q.logger.Info("Conflict detected", "change_id", info.ChangeID, "remote_version", info.RemoteVersion)
	if handler != nil {
		handler(info)
	}
}

// ResolveConflict applies the chosen strategy to a conflicting change:
// local forces the local value through, remote accepts the server value
// and drops the change, manual keeps the change queued for the user.
func (q *Queue) ResolveConflict(ctx context.Context, changeID string, strategy models.ConflictStrategy) error {
	if !strategy.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	q.mu.Lock()
	change, ok := q.findLocked(changeID)
	info, hasInfo := q.conflicts[changeID]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrChangeNotFound, changeID)
	}
	if !hasInfo {
		info = models.ConflictInfo{ChangeID: changeID, LocalUpdate: change.Update}
	}

	switch strategy {
	case models.StrategyLocal:
		if err := q.submitter.ForceSubmit(ctx, change, info.RemoteVersion); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				// Сервер успел измениться еще раз: обновляем сведения о конфликте
				fresh := shifts.ConflictFromError(changeID, change.Update, err)
				q.mu.Lock()
				q.conflicts[changeID] = fresh
				q.mu.Unlock()
			}
			return fmt.Errorf("failed to force local change: %w", err)
		}
		q.remove(ctx, changeID)

	case models.StrategyRemote:
		info.Strategy = models.StrategyRemote
		q.submitter.AcceptRemote(info)
		q.remove(ctx, changeID)

	case models.StrategyManual:
		q.mu.Lock()
		info.Strategy = models.StrategyManual
		q.conflicts[changeID] = info
		for i := range q.changes {
			if q.changes[i].ID == changeID {
				q.changes[i].Conflicted = true
			}
		}
		q.mu.Unlock()
	}

	q.logger.Info("Conflict resolved", "change_id", changeID, "strategy", strategy)
	return nil
}

// SetOnline updates connectivity. Going offline arms the fixed-delay retry
// timer; going online triggers a sync attempt.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	switch {
	case online && !was:
		q.logger.Info("Connection restored")
		q.trigger()
	case !online && was:
		q.logger.Warn("Connection lost, switching to offline mode")
		q.scheduleRetry()
	case !online:
		q.scheduleRetry()
	}
}

// IsOnline reports the assumed connectivity.
func (q *Queue) IsOnline() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.online
}

// IsSyncing reports whether a sync is in flight.
func (q *Queue) IsSyncing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.syncing
}

// PendingChanges returns a copy of the queue in submission order.
func (q *Queue) PendingChanges() []models.PendingChange {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.PendingChange, len(q.changes))
	copy(out, q.changes)
	return out
}

// Len returns the number of queued changes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.changes)
}

// Conflicts returns the unresolved conflicts ordered by change timestamp.
func (q *Queue) Conflicts() []models.ConflictInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.ConflictInfo, 0, len(q.conflicts))
	for _, c := range q.changes {
		if info, ok := q.conflicts[c.ID]; ok {
			out = append(out, info)
		}
	}
	return out
}

// NeedsAttention returns the changes whose retry count exceeds MaxRetries.
func (q *Queue) NeedsAttention() []models.PendingChange {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []models.PendingChange
	for _, c := range q.changes {
		if c.RetryCount > q.cfg.MaxRetries {
			out = append(out, c)
		}
	}
	return out
}

// Close stops the retry timer. Queued changes stay in the durable log.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	if q.retry != nil {
		q.retry.Stop()
		q.retry = nil
	}
}

// triggerDelay собирает изменения, сделанные подряд, в один пакет
const triggerDelay = 50 * time.Millisecond

// trigger планирует попытку синхронизации вне текущего вызова
func (q *Queue) trigger() {
	q.clock.AfterFunc(triggerDelay, func() {
		if _, err := q.Sync(context.Background()); err != nil {
			q.logger.Warn("Background sync failed", "error", err)
		}
	})
}

// scheduleRetry взводит таймер повторной попытки, если он еще не взведен
func (q *Queue) scheduleRetry() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.retry != nil || q.closed {
		return
	}
	q.retry = q.clock.AfterFunc(q.cfg.RetryDelay, func() {
		q.mu.Lock()
		q.retry = nil
		if !q.online {
			// Считаем, что связь восстановилась; неудача снова переведет в офлайн
			q.online = true
			q.logger.Info("Retrying after offline period")
		}
		q.mu.Unlock()

		if _, err := q.Sync(context.Background()); err != nil {
			q.logger.Warn("Retry sync failed", "error", err)
		}
	})
}

func (q *Queue) findLocked(id string) (models.PendingChange, bool) {
	for _, c := range q.changes {
		if c.ID == id {
			return c, true
		}
	}
	return models.PendingChange{}, false
}

// remove удаляет изменение из очереди и из журнала
func (q *Queue) remove(ctx context.Context, id string) {
	q.mu.Lock()
	kept := q.changes[:0]
	for _, c := range q.changes {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	q.changes = kept
	delete(q.conflicts, id)
	q.mu.Unlock()

	if err := q.store.Remove(ctx, storage.PrefixPending+id); err != nil {
		q.logger.Warn("Failed to remove pending change from log", "change_id", id, "error", err)
	}
}

func (q *Queue) persist(ctx context.Context, change models.PendingChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal pending change: %w", err)
	}
	return q.store.Set(ctx, storage.PrefixPending+change.ID, string(data))
}

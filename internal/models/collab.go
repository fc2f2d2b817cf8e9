package models

import "time"

// CollaborativeUser представляет участника совместного редактирования.
// Запись считается устаревшей после 60 секунд без heartbeat.
type CollaborativeUser struct {
	LastActivity time.Time `json:"last_activity"` // время последнего heartbeat
	UserID       string    `json:"user_id"`       // идентификатор пользователя
	UserName     string    `json:"user_name"`     // отображаемое имя
	Color        string    `json:"color"`         // цвет курсора/подсветки
}

// EditLock представляет мягкую блокировку ячейки на время редактирования.
type EditLock struct {
	StartTime time.Time `json:"start_time"` // время начала редактирования
	UserID    string    `json:"user_id"`    // владелец блокировки
	UserName  string    `json:"user_name"`  // имя владельца
	StaffID   string    `json:"staff_id"`
	Date      string    `json:"date"`
}

// CellKey builds the lock key for a staff/date pair.
func CellKey(staffID, date string) string {
	return staffID + "|" + date
}

// ConflictStrategy is the disposition chosen for a conflicting pending change.
type ConflictStrategy string

const (
	StrategyLocal  ConflictStrategy = "local"  // принудительно отправить локальное значение
	StrategyRemote ConflictStrategy = "remote" // принять значение сервера
	StrategyManual ConflictStrategy = "manual" // оставить в очереди до решения пользователя
)

// IsValid reports whether s is a known strategy.
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case StrategyLocal, StrategyRemote, StrategyManual:
		return true
	}
	return false
}

// PendingChange представляет изменение, которое еще не подтверждено сервером.
type PendingChange struct {
	Timestamp   time.Time  `json:"timestamp"`            // время постановки в очередь
	ID          string     `json:"id"`                   // UUID изменения
	LastError   string     `json:"last_error,omitempty"` // последняя ошибка отправки
	Update      CellUpdate `json:"update"`               // само изменение
	RetryCount  int        `json:"retry_count"`          // количество неудачных попыток
	BaseVersion int64      `json:"base_version"`         // версия ячейки, на которой основано изменение
	Conflicted  bool       `json:"conflicted,omitempty"` // ожидает ручного разрешения конфликта
}

// ConflictInfo describes a pending change rejected by the version precondition.
// RemoteUpdate is nil when the server had no value for the cell.
type ConflictInfo struct {
	RemoteUpdate  *CellUpdate      `json:"remote_update,omitempty"`
	ChangeID      string           `json:"change_id"`
	Strategy      ConflictStrategy `json:"strategy"`
	LocalUpdate   CellUpdate       `json:"local_update"`
	RemoteVersion int64            `json:"remote_version"`
}

// HistoryEntry представляет одну запись истории для undo/redo.
type HistoryEntry struct {
	Timestamp   time.Time    `json:"timestamp"`
	ID          string       `json:"id"`
	Description string       `json:"description,omitempty"`
	Updates     []CellUpdate `json:"updates"`
}

// Severity is the importance of a rule violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// CellRef addresses a cell in the grid.
type CellRef struct {
	StaffID string `json:"staff_id"`
	Date    string `json:"date"`
}

// SuggestedAction is a corrective edit proposed by a rule.
type SuggestedAction struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Impact      string       `json:"impact"` // например "1 → 2"
	Updates     []CellUpdate `json:"updates"`
}

// RuleViolation is produced by a rule check. Violations are regenerated on
// every analysis pass and never mutated afterwards.
type RuleViolation struct {
	RuleID           string            `json:"rule_id"`
	Severity         Severity          `json:"severity"`
	Message          string            `json:"message"`
	AffectedCells    []CellRef         `json:"affected_cells"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
}

// BoundingBox is the minimal index-space rectangle enclosing a selection.
type BoundingBox struct {
	MinStaffIndex int `json:"min_staff_index"`
	MaxStaffIndex int `json:"max_staff_index"`
	MinDateIndex  int `json:"min_date_index"`
	MaxDateIndex  int `json:"max_date_index"`
}

// ClipboardCell is one captured cell with its original index position.
type ClipboardCell struct {
	State      ShiftState `json:"state"`
	StaffIndex int        `json:"staff_index"`
	DateIndex  int        `json:"date_index"`
}

// ClipboardSnapshot is the result of a copy.
type ClipboardSnapshot struct {
	Cells       []ClipboardCell `json:"cells"`
	BoundingBox BoundingBox     `json:"bounding_box"`
}

package models

import (
	"sort"
	"time"
)

// ShiftState представляет состояние ячейки графика смен.
type ShiftState string

const (
	StateWork         ShiftState = "work"         // рабочий день
	StateFixedOff     ShiftState = "fixedOff"     // фиксированный выходной
	StateRequestedOff ShiftState = "requestedOff" // выходной по заявке сотрудника
	StateAuto         ShiftState = "auto"         // назначается автоматически
	StateEmpty        ShiftState = "empty"        // не заполнено
)

// ShiftStates lists every valid state in display order.
var ShiftStates = []ShiftState{StateWork, StateFixedOff, StateRequestedOff, StateAuto, StateEmpty}

// IsValid reports whether s is one of the known states.
func (s ShiftState) IsValid() bool {
	for _, known := range ShiftStates {
		if s == known {
			return true
		}
	}
	return false
}

// ShiftCell представляет одну ячейку графика (сотрудник × дата).
type ShiftCell struct {
	LastChangedAt time.Time  `json:"last_changed_at,omitempty"` // время последнего изменения
	State         ShiftState `json:"state"`                     // текущее состояние
	LastChangedBy string     `json:"last_changed_by,omitempty"` // кто последним менял ячейку
	Version       int64      `json:"version,omitempty"`         // версия записи сотрудника, известная клиенту
	IsLocked      bool       `json:"is_locked"`                 // ячейка закреплена и не принимает изменений состояния
}

// ShiftDataMap maps staffID -> date key (YYYY-MM-DD) -> cell.
type ShiftDataMap map[string]map[string]ShiftCell

// Get returns the cell for staffID/date. Missing cells are reported as empty.
func (m ShiftDataMap) Get(staffID, date string) (ShiftCell, bool) {
	row, ok := m[staffID]
	if !ok {
		return ShiftCell{State: StateEmpty}, false
	}
	cell, ok := row[date]
	if !ok {
		return ShiftCell{State: StateEmpty}, false
	}
	return cell, true
}

// State returns the resolved state of a cell, StateEmpty when absent.
func (m ShiftDataMap) State(staffID, date string) ShiftState {
	cell, _ := m.Get(staffID, date)
	if cell.State == "" {
		return StateEmpty
	}
	return cell.State
}

// Set stores the cell, creating the staff row when needed.
func (m ShiftDataMap) Set(staffID, date string, cell ShiftCell) {
	row, ok := m[staffID]
	if !ok {
		row = make(map[string]ShiftCell)
		m[staffID] = row
	}
	row[date] = cell
}

// StaffIDs returns the staff ids present in the map, sorted.
func (m ShiftDataMap) StaffIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone создает глубокую копию карты.
func (m ShiftDataMap) Clone() ShiftDataMap {
	out := make(ShiftDataMap, len(m))
	for staffID, row := range m {
		copied := make(map[string]ShiftCell, len(row))
		for date, cell := range row {
			copied[date] = cell
		}
		out[staffID] = copied
	}
	return out
}

// CellUpdate describes a single requested change to a cell.
//
// An empty State means the update does not touch the state and only toggles
// the lock via Lock. Previous holds the state observed before the change and
// is what Inverse restores.
type CellUpdate struct {
	Lock      *bool      `json:"lock,omitempty"`       // переключение закрепления ячейки
	StaffID   string     `json:"staff_id"`             // идентификатор сотрудника
	Date      string     `json:"date"`                 // дата в формате YYYY-MM-DD
	State     ShiftState `json:"state,omitempty"`      // новое состояние
	Previous  ShiftState `json:"previous,omitempty"`   // состояние до изменения
	WasLocked bool       `json:"was_locked,omitempty"` // была ли ячейка закреплена до изменения
}

// ChangesState reports whether the update writes a state.
func (u CellUpdate) ChangesState() bool {
	return u.State != ""
}

// Month returns the YYYY-MM part of the update date.
func (u CellUpdate) Month() string {
	return MonthOf(u.Date)
}

// Inverse returns the update that undoes u.
func (u CellUpdate) Inverse() CellUpdate {
	inv := CellUpdate{
		StaffID:   u.StaffID,
		Date:      u.Date,
		WasLocked: u.WasLocked,
	}
	if u.ChangesState() {
		inv.State = u.Previous
		if inv.State == "" {
			inv.State = StateEmpty
		}
		inv.Previous = u.State
	}
	if u.Lock != nil {
		restored := u.WasLocked
		inv.Lock = &restored
		inv.WasLocked = *u.Lock
	}
	return inv
}

// MonthOf extracts YYYY-MM from a YYYY-MM-DD date key.
func MonthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// ShiftEntry is the persisted form of a cell inside a record.
type ShiftEntry struct {
	State    ShiftState `json:"state"`
	IsLocked bool       `json:"is_locked"`
}

// ShiftRecord представляет запись графика одного сотрудника за месяц.
// Version монотонно растет и является единственным арбитром принятия записи.
type ShiftRecord struct {
	CreatedAt time.Time             `json:"created_at"` // время создания
	UpdatedAt time.Time             `json:"updated_at"` // время последнего обновления
	Entries   map[string]ShiftEntry `json:"entries"`    // дата -> состояние
	ID        string                `json:"id"`         // UUID записи
	StaffID   string                `json:"staff_id"`   // идентификатор сотрудника
	Month     string                `json:"month"`      // месяц в формате YYYY-MM
	UpdatedBy string                `json:"updated_by"` // кто последним изменил запись
	Version   int64                 `json:"version"`    // версия записи
}

// Clone создает глубокую копию записи.
func (r *ShiftRecord) Clone() *ShiftRecord {
	entries := make(map[string]ShiftEntry, len(r.Entries))
	for date, entry := range r.Entries {
		entries[date] = entry
	}
	clone := *r
	clone.Entries = entries
	return &clone
}

package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/iudanet/shiftgrid/internal/models"
)

// StaffIDPattern определяет допустимый формат идентификатора сотрудника
// Латинские буквы, цифры, дефис и нижнее подчеркивание, 1-64 символа
var StaffIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	// DateLayout формат ключа даты в графике
	DateLayout = "2006-01-02"
	// MonthLayout формат ключа месяца
	MonthLayout = "2006-01"
)

// ValidateStaffID проверяет идентификатор сотрудника
func ValidateStaffID(staffID string) error {
	if staffID == "" {
		return fmt.Errorf("staff id cannot be empty")
	}

	if !StaffIDPattern.MatchString(staffID) {
		return fmt.Errorf("staff id %q can only contain letters, numbers, '-' and '_' (max 64)", staffID)
	}

	return nil
}

// ValidateDate проверяет ключ даты YYYY-MM-DD
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return nil
}

// ValidateMonth проверяет ключ месяца YYYY-MM
func ValidateMonth(month string) error {
	if _, err := time.Parse(MonthLayout, month); err != nil {
		return fmt.Errorf("invalid month %q: expected YYYY-MM", month)
	}
	return nil
}

// ValidateState проверяет, что состояние ячейки известно
func ValidateState(state models.ShiftState) error {
	if !state.IsValid() {
		return fmt.Errorf("unknown shift state %q", state)
	}
	return nil
}

// ValidateUpdate проверяет запрос на изменение ячейки
func ValidateUpdate(u models.CellUpdate) error {
	if err := ValidateStaffID(u.StaffID); err != nil {
		return err
	}
	if err := ValidateDate(u.Date); err != nil {
		return err
	}
	if !u.ChangesState() && u.Lock == nil {
		return fmt.Errorf("update for %s/%s changes nothing", u.StaffID, u.Date)
	}
	if u.ChangesState() {
		return ValidateState(u.State)
	}
	return nil
}

// ValidateEntryDates проверяет, что все даты записи принадлежат месяцу
func ValidateEntryDates(month string, entries map[string]models.ShiftEntry) error {
	for date, entry := range entries {
		if err := ValidateDate(date); err != nil {
			return err
		}
		if models.MonthOf(date) != month {
			return fmt.Errorf("date %s is outside month %s", date, month)
		}
		if err := ValidateState(entry.State); err != nil {
			return err
		}
	}
	return nil
}

// MonthDates returns every date key of the month in calendar order.
func MonthDates(month string) ([]string, error) {
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: expected YYYY-MM", month)
	}

	var dates []string
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

// Package dates содержит функции работы с календарными датами броней.
//
// Дата везде — это полночь UTC. Диапазоны дат полуоткрытые: начальная дата
// включается, конечная — нет, поэтому бронь 2025-04-01..2025-04-03 занимает
// два дня. Это правило применяется одинаково к проверке свободных мест,
// расчёту цены, резервированию и возврату мест.
package dates

import (
	"fmt"
	"time"
)

// Layout задаёт формат обмена датами на границе API (ISO-8601, без времени).
const Layout = "2006-01-02"

// Parse разбирает дату формата YYYY-MM-DD и нормализует её к полуночи UTC.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Normalize(t), nil
}

// Format возвращает дату в формате YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Normalize отбрасывает время и часовой пояс, оставляя календарный день в UTC.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Each вызывает fn для каждого дня диапазона [start, end).
// Если fn возвращает ошибку, обход прерывается и ошибка возвращается вызывающему.
func Each(start, end time.Time, fn func(d time.Time) error) error {
	for d := Normalize(start); d.Before(Normalize(end)); d = d.AddDate(0, 0, 1) {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// Count возвращает число дней в диапазоне [start, end).
func Count(start, end time.Time) int {
	n := 0
	_ = Each(start, end, func(time.Time) error {
		n++
		return nil
	})
	return n
}

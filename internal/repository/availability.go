package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amalkov/spotbook-system/internal/dates"
	"github.com/amalkov/spotbook-system/internal/model"
)

// GetOrCreateDayTx возвращает запись ёмкости дня, создавая её при первом
// обращении. Количество мест берётся из настройки конкретной даты, а при её
// отсутствии — из default_total_spots. Строка блокируется на время транзакции,
// поэтому конкурирующие брони одной даты сериализуются на уровне БД.
//
// Вставка идёт через ON CONFLICT DO NOTHING: ошибка уникального индекса
// перевела бы всю транзакцию в аборт, и повторное чтение внутри неё было бы
// невозможно. Проигравший гонку вставки получает ноль строк и просто
// перечитывает чужую запись под блокировкой.
func (r *PostgresRepository) GetOrCreateDayTx(ctx context.Context, tx pgx.Tx, date time.Time) (*model.DailyAvailability, error) {
	day, err := selectDayForUpdate(ctx, tx, date)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("select day: %w", err)
	}

	totalSpots, err := totalSpotsForDate(ctx, tx, date)
	if err != nil {
		return nil, err
	}

	day = &model.DailyAvailability{
		Date:           date,
		TotalSpots:     totalSpots,
		AvailableSpots: totalSpots,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO daily_availability (date, total_spots, available_spots)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (date) DO NOTHING
		 RETURNING id, updated_at`,
		date, totalSpots,
	).Scan(&day.ID, &day.UpdatedAt)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert day: %w", err)
	}

	// Дату успела вставить параллельная транзакция.
	day, err = selectDayForUpdate(ctx, tx, date)
	if err != nil {
		return nil, fmt.Errorf("reread day after conflict: %w", err)
	}
	return day, nil
}

func selectDayForUpdate(ctx context.Context, tx pgx.Tx, date time.Time) (*model.DailyAvailability, error) {
	var day model.DailyAvailability
	err := tx.QueryRow(ctx,
		`SELECT id, date, total_spots, available_spots, updated_at
		 FROM daily_availability
		 WHERE date = $1
		 FOR UPDATE`,
		date,
	).Scan(&day.ID, &day.Date, &day.TotalSpots, &day.AvailableSpots, &day.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func totalSpotsForDate(ctx context.Context, tx pgx.Tx, date time.Time) (int, error) {
	value, err := getSettingTx(ctx, tx, model.SettingSpecialTotalSpotsKey(date))
	if errors.Is(err, ErrSettingNotFound) {
		value, err = getSettingTx(ctx, tx, model.SettingDefaultTotalSpots)
	}
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return 0, ErrSpotsNotConfigured
		}
		return 0, err
	}

	totalSpots, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse total spots %q: %w", value, err)
	}

	return totalSpots, nil
}

// ReserveSpotTx уменьшает число свободных мест даты на единицу.
// При нуле свободных мест строка не меняется и возвращается ErrNoSpotsAvailable.
func (r *PostgresRepository) ReserveSpotTx(ctx context.Context, tx pgx.Tx, date time.Time) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE daily_availability
		 SET available_spots = available_spots - 1, updated_at = now()
		 WHERE date = $1 AND available_spots > 0`,
		date,
	)
	if err != nil {
		return fmt.Errorf("reserve spot: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNoSpotsAvailable
	}
	return nil
}

// ReleaseSpotTx возвращает одно место даты. Значение не превышает total_spots:
// если ёмкость дня уменьшили после создания брони, возврат просто упирается в
// потолок, а не считается ошибкой.
func (r *PostgresRepository) ReleaseSpotTx(ctx context.Context, tx pgx.Tx, date time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE daily_availability
		 SET available_spots = LEAST(available_spots + 1, total_spots), updated_at = now()
		 WHERE date = $1`,
		date,
	)
	if err != nil {
		return fmt.Errorf("release spot: %w", err)
	}
	return nil
}

// GetDays возвращает записи ёмкости дней диапазона [from, to) без блокировок.
// Дни, к которым ещё никто не обращался, в результате отсутствуют.
func (r *PostgresRepository) GetDays(ctx context.Context, from, to time.Time) ([]model.DailyAvailability, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, date, total_spots, available_spots, updated_at
		 FROM daily_availability
		 WHERE date >= $1 AND date < $2
		 ORDER BY date`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select days: %w", err)
	}
	defer rows.Close()

	days := make([]model.DailyAvailability, 0, dates.Count(from, to))
	for rows.Next() {
		var day model.DailyAvailability
		if err := rows.Scan(&day.ID, &day.Date, &day.TotalSpots, &day.AvailableSpots, &day.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return days, nil
}

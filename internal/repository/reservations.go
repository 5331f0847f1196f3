package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amalkov/spotbook-system/internal/model"
)

// InsertReservationTx сохраняет новую бронь внутри транзакции и заполняет
// идентификатор и метки времени из вставленной строки.
func (r *PostgresRepository) InsertReservationTx(ctx context.Context, tx pgx.Tx, res *model.Reservation) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO reservations (user_id, start_date, end_date, total_price_cents, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		res.UserID, res.StartDate, res.EndDate, res.TotalPriceCents, string(res.Status),
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetReservationByID возвращает бронь по идентификатору.
func (r *PostgresRepository) GetReservationByID(ctx context.Context, id int64) (*model.Reservation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, start_date, end_date, total_price_cents, status, created_at, updated_at
		 FROM reservations
		 WHERE id = $1`,
		id,
	)

	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	return res, nil
}

// GetReservationsByUser возвращает брони пользователя, новые первыми.
func (r *PostgresRepository) GetReservationsByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, start_date, end_date, total_price_cents, status, created_at, updated_at
		 FROM reservations
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// GetAllReservations возвращает все брони, новые первыми.
func (r *PostgresRepository) GetAllReservations(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, start_date, end_date, total_price_cents, status, created_at, updated_at
		 FROM reservations
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// MarkReservationCancelledTx переводит бронь в статус cancelled внутри транзакции.
// Переход выполняется только из статуса active: условие в UPDATE гарантирует,
// что из двух конкурирующих отмен ровно одна вернёт места, а вторая получит
// ErrReservationNotActive.
func (r *PostgresRepository) MarkReservationCancelledTx(ctx context.Context, tx pgx.Tx, id int64) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx,
		`UPDATE reservations
		 SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING updated_at`,
		id, string(model.ReservationStatusCancelled), string(model.ReservationStatusActive),
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrReservationNotActive
		}
		return time.Time{}, fmt.Errorf("mark reservation cancelled: %w", err)
	}
	return updatedAt, nil
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var (
		res    model.Reservation
		status string
	)
	err := row.Scan(
		&res.ID, &res.UserID, &res.StartDate, &res.EndDate,
		&res.TotalPriceCents, &status, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	return &res, nil
}

func collectReservations(rows pgx.Rows) ([]model.Reservation, error) {
	var reservations []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reservations, nil
}

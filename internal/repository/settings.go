package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetSetting возвращает значение настройки по имени.
func (r *PostgresRepository) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE name = $1`,
		name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrSettingNotFound, name)
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func getSettingTx(ctx context.Context, tx pgx.Tx, name string) (string, error) {
	var value string
	err := tx.QueryRow(ctx,
		`SELECT value FROM settings WHERE name = $1`,
		name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrSettingNotFound, name)
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting записывает значение настройки, создавая её при необходимости.
func (r *PostgresRepository) SetSetting(ctx context.Context, name, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// DeleteSetting удаляет настройку. Отсутствие настройки ошибкой не считается.
func (r *PostgresRepository) DeleteSetting(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM settings WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}

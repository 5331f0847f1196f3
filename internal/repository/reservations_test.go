package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestMarkReservationCancelledTx(t *testing.T) {
	now := time.Now()

	t.Run("active reservation is cancelled", func(t *testing.T) {
		tx := &scriptTx{rows: []scriptRow{
			{vals: []any{now}},
		}}

		updatedAt, err := (&PostgresRepository{}).MarkReservationCancelledTx(context.Background(), tx, 7)
		if err != nil {
			t.Fatalf("MarkReservationCancelledTx error: %v", err)
		}
		if !updatedAt.Equal(now) {
			t.Fatalf("updatedAt = %v, want %v", updatedAt, now)
		}
	})

	t.Run("already cancelled reservation is not updated", func(t *testing.T) {
		// Условный UPDATE не затронул строку: бронь уже не active.
		tx := &scriptTx{rows: []scriptRow{
			{err: pgx.ErrNoRows},
		}}

		_, err := (&PostgresRepository{}).MarkReservationCancelledTx(context.Background(), tx, 7)
		if !errors.Is(err, ErrReservationNotActive) {
			t.Fatalf("err = %v, want ErrReservationNotActive", err)
		}
	})
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// scriptRow отдаёт заранее подготовленные значения либо ошибку.
type scriptRow struct {
	err  error
	vals []any
}

func (r scriptRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *int:
			*p = r.vals[i].(int)
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

// scriptTx — транзакция со сценарием ответов на последовательные QueryRow.
type scriptTx struct {
	rows []scriptRow
}

func (t *scriptTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(t.rows) == 0 {
		return scriptRow{err: pgx.ErrNoRows}
	}
	row := t.rows[0]
	t.rows = t.rows[1:]
	return row
}

func (t *scriptTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *scriptTx) Commit(ctx context.Context) error          { return nil }
func (t *scriptTx) Rollback(ctx context.Context) error        { return nil }
func (t *scriptTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *scriptTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *scriptTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *scriptTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *scriptTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *scriptTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *scriptTx) Conn() *pgx.Conn { return nil }

func TestGetOrCreateDayTx(t *testing.T) {
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	t.Run("existing day is returned under lock", func(t *testing.T) {
		tx := &scriptTx{rows: []scriptRow{
			{vals: []any{int64(3), date, 10, 4, now}},
		}}

		day, err := (&PostgresRepository{}).GetOrCreateDayTx(context.Background(), tx, date)
		if err != nil {
			t.Fatalf("GetOrCreateDayTx error: %v", err)
		}
		if day.ID != 3 || day.AvailableSpots != 4 {
			t.Fatalf("unexpected day: %+v", day)
		}
	})

	t.Run("first touch creates the day", func(t *testing.T) {
		tx := &scriptTx{rows: []scriptRow{
			{err: pgx.ErrNoRows},        // дня ещё нет
			{err: pgx.ErrNoRows},        // особой настройки даты нет
			{vals: []any{"10"}},         // default_total_spots
			{vals: []any{int64(1), now}}, // вставка вернула строку
		}}

		day, err := (&PostgresRepository{}).GetOrCreateDayTx(context.Background(), tx, date)
		if err != nil {
			t.Fatalf("GetOrCreateDayTx error: %v", err)
		}
		if day.ID != 1 || day.TotalSpots != 10 || day.AvailableSpots != 10 {
			t.Fatalf("unexpected day: %+v", day)
		}
	})

	t.Run("lost insert race rereads the winner's row", func(t *testing.T) {
		// Параллельная транзакция вставила дату первой: вставка через
		// ON CONFLICT DO NOTHING не возвращает строку и не ломает транзакцию,
		// перечитывается чужая запись.
		tx := &scriptTx{rows: []scriptRow{
			{err: pgx.ErrNoRows},             // дня ещё нет
			{err: pgx.ErrNoRows},             // особой настройки даты нет
			{vals: []any{"10"}},              // default_total_spots
			{err: pgx.ErrNoRows},             // вставка проиграла гонку
			{vals: []any{int64(5), date, 10, 7, now}}, // чужая строка
		}}

		day, err := (&PostgresRepository{}).GetOrCreateDayTx(context.Background(), tx, date)
		if err != nil {
			t.Fatalf("GetOrCreateDayTx error: %v", err)
		}
		if day.ID != 5 || day.AvailableSpots != 7 {
			t.Fatalf("unexpected day: %+v", day)
		}
	})

	t.Run("spots not configured", func(t *testing.T) {
		tx := &scriptTx{rows: []scriptRow{
			{err: pgx.ErrNoRows}, // дня ещё нет
			{err: pgx.ErrNoRows}, // особой настройки даты нет
			{err: pgx.ErrNoRows}, // default_total_spots не задан
		}}

		_, err := (&PostgresRepository{}).GetOrCreateDayTx(context.Background(), tx, date)
		if !errors.Is(err, ErrSpotsNotConfigured) {
			t.Fatalf("err = %v, want ErrSpotsNotConfigured", err)
		}
	})
}

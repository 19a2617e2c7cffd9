package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// tx реализует billing.Tx поверх *sql.Tx.
type tx struct {
	tx *sql.Tx
}

// InsertEvent записывает событие. Конкурентная вставка того же ID ждёт первую
// транзакцию и получает ON CONFLICT DO NOTHING.
func (t *tx) InsertEvent(ctx context.Context, ev models.ProcessedEvent) (bool, error) {
	const op = "storage.InsertEvent"
	res, err := t.tx.ExecContext(ctx, `INSERT INTO processed_events (event_id, type, payload, received_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.Type, string(ev.Payload), ev.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// GetEventForUpdate блокирует запись журнала до конца транзакции.
func (t *tx) GetEventForUpdate(ctx context.Context, eventID string) (*models.ProcessedEvent, error) {
	const op = "storage.GetEventForUpdate"
	row := t.tx.QueryRowContext(ctx, `SELECT event_id, type, payload, processed, error, received_at, processed_at
			  FROM processed_events
			  WHERE event_id = $1
			  FOR UPDATE`, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ev, nil
}

// MarkEvent фиксирует итог применения.
func (t *tx) MarkEvent(ctx context.Context, eventID string, processed bool, reason string) error {
	const op = "storage.MarkEvent"
	_, err := t.tx.ExecContext(ctx, `UPDATE processed_events
			  SET processed = $2,
			      error = $3,
			      processed_at = CASE WHEN $2 THEN NOW() ELSE NULL END
			  WHERE event_id = $1`, eventID, processed, reason)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Savepoint откатывает только работу fn, оставляя запись журнала в транзакции.
func (t *tx) Savepoint(ctx context.Context, fn func() error) error {
	const op = "storage.Savepoint"
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT state_write"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT state_write"); rbErr != nil {
			return fmt.Errorf("%s: %w", op, errors.Join(err, rbErr))
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT state_write"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListEvents возвращает журнал, самые новые первыми.
func (s *Storage) ListEvents(ctx context.Context, unprocessedOnly bool, limit, offset int) ([]*models.ProcessedEvent, error) {
	const op = "storage.ListEvents"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT event_id, type, payload, processed, error, received_at, processed_at
			  FROM processed_events
			  WHERE NOT $1 OR NOT processed
			  ORDER BY received_at DESC, event_id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, unprocessedOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []*models.ProcessedEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountUnprocessed считает события с processed=false.
func (s *Storage) CountUnprocessed(ctx context.Context) (int, error) {
	const op = "storage.CountUnprocessed"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_events WHERE NOT processed`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.ProcessedEvent, error) {
	var (
		ev          models.ProcessedEvent
		payload     []byte
		processedAt sql.NullTime
	)
	if err := row.Scan(&ev.EventID, &ev.Type, &payload, &ev.Processed, &ev.Error, &ev.ReceivedAt, &processedAt); err != nil {
		return nil, err
	}
	ev.Payload = payload
	if processedAt.Valid {
		ev.ProcessedAt = &processedAt.Time
	}
	return &ev, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

const stateColumns = `principal_id, customer_ref, subscription_ref, status, current_period_start,
			      current_period_end, cancel_at_period_end, trial_end, last_event_at, updated_at`

// FindStateForUpdate блокирует запись подписки до конца транзакции.
// Строки может ещё не быть, поэтому ссылку сначала берёт advisory-блокировка:
// два события для новой подписки применяются по очереди.
func (t *tx) FindStateForUpdate(ctx context.Context, subscriptionRef string) (*models.SubscriptionState, error) {
	const op = "storage.FindStateForUpdate"
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, subscriptionRef); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	row := t.tx.QueryRowContext(ctx, `SELECT `+stateColumns+`
			  FROM subscription_states
			  WHERE subscription_ref = $1
			  FOR UPDATE`, subscriptionRef)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// FindPrincipalByCustomer ищет владельца по ссылке на клиента провайдера.
func (t *tx) FindPrincipalByCustomer(ctx context.Context, customerRef string) (string, error) {
	const op = "storage.FindPrincipalByCustomer"
	var principalID string
	err := t.tx.QueryRowContext(ctx, `SELECT principal_id
			  FROM subscription_states
			  WHERE customer_ref = $1 AND customer_ref <> ''
			  ORDER BY updated_at DESC
			  LIMIT 1`, customerRef).Scan(&principalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return principalID, nil
}

// UpsertState вставляет или обновляет запись по ссылке на подписку.
func (t *tx) UpsertState(ctx context.Context, st models.SubscriptionState) error {
	const op = "storage.UpsertState"
	_, err := t.tx.ExecContext(ctx, `INSERT INTO subscription_states (`+stateColumns+`)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT (subscription_ref) DO UPDATE SET
			      principal_id = EXCLUDED.principal_id,
			      customer_ref = EXCLUDED.customer_ref,
			      status = EXCLUDED.status,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      trial_end = EXCLUDED.trial_end,
			      last_event_at = EXCLUDED.last_event_at,
			      updated_at = EXCLUDED.updated_at`,
		st.PrincipalID, st.CustomerRef, st.SubscriptionRef, string(st.Status),
		st.CurrentPeriodStart, st.CurrentPeriodEnd, st.CancelAtPeriodEnd, st.TrialEnd,
		st.LastEventAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListSubscriptionStates возвращает записи подписок субъекта, самые свежие первыми.
// Пустой список, если записей нет.
func (s *Storage) ListSubscriptionStates(ctx context.Context, principalID string) ([]*models.SubscriptionState, error) {
	const op = "storage.ListSubscriptionStates"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+stateColumns+`
			  FROM subscription_states
			  WHERE principal_id = $1
			  ORDER BY updated_at DESC`, principalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []*models.SubscriptionState{}
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanState(row scanner) (*models.SubscriptionState, error) {
	var (
		st                                     models.SubscriptionState
		status                                 string
		periodStart, periodEnd, trialEnd, last sql.NullTime
	)
	if err := row.Scan(&st.PrincipalID, &st.CustomerRef, &st.SubscriptionRef, &status,
		&periodStart, &periodEnd, &st.CancelAtPeriodEnd, &trialEnd, &last, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Status = models.SubscriptionStatus(status)
	st.CurrentPeriodStart = nullTime(periodStart)
	st.CurrentPeriodEnd = nullTime(periodEnd)
	st.TrialEnd = nullTime(trialEnd)
	st.LastEventAt = nullTime(last)
	return &st, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// CreateLike сохраняет лайк. Повторный лайк возвращает существующую строку.
// Несуществующий курс даёт models.ErrNotFound.
func (s *Storage) CreateLike(ctx context.Context, userID, courseID string) (*models.Like, error) {
	const op = "storage.CreateLike"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO likes (user_id, course_id)
			  VALUES ($1, $2)
			  ON CONFLICT (user_id, course_id) DO UPDATE SET user_id = EXCLUDED.user_id
			  RETURNING user_id, course_id, created_at`
	var l models.Like
	err := s.DB.QueryRowContext(ctx, query, userID, courseID).Scan(&l.UserID, &l.CourseID, &l.CreatedAt)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) || isPgError(err, pgInvalidText) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &l, nil
}

// ListLikes возвращает лайки с необязательным фильтром по владельцу.
func (s *Storage) ListLikes(ctx context.Context, filter models.LikeFilter, limit, offset int) ([]*models.Like, error) {
	const op = "storage.ListLikes"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, course_id, created_at
			  FROM likes
			  WHERE $1::text IS NULL OR user_id::text = $1
			  ORDER BY created_at DESC, course_id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, filter.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []*models.Like{}
	for rows.Next() {
		var l models.Like
		if err := rows.Scan(&l.UserID, &l.CourseID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// RemoveLike удаляет лайк и возвращает число удалённых строк.
func (s *Storage) RemoveLike(ctx context.Context, userID, courseID string) (int, error) {
	const op = "storage.RemoveLike"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM likes WHERE user_id::text = $1 AND course_id::text = $2`, userID, courseID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

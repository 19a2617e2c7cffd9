package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

const profileColumns = `id, auth_principal_id, username, full_name, avatar_url, created_at, updated_at`

// CreateProfile сохраняет новый профиль. Повтор по субъекту или занятый username
// возвращают models.ErrAlreadyExists.
func (s *Storage) CreateProfile(ctx context.Context, principalID string, req models.DummyProfile) (*models.Profile, error) {
	const op = "storage.CreateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO profiles (auth_principal_id, username, full_name, avatar_url)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + profileColumns
	p, err := scanProfile(s.DB.QueryRowContext(ctx, query, principalID, req.Username, req.FullName, req.AvatarURL))
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetProfile возвращает профиль по ID.
func (s *Storage) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanProfile(s.DB.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id::text = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetProfileByPrincipal возвращает профиль субъекта.
func (s *Storage) GetProfileByPrincipal(ctx context.Context, principalID string) (*models.Profile, error) {
	const op = "storage.GetProfileByPrincipal"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanProfile(s.DB.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE auth_principal_id::text = $1`, principalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// UpdateProfile обновляет изменяемые поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, id string, req models.DummyProfile) (*models.Profile, error) {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE profiles
			  SET username = $2, full_name = $3, avatar_url = $4, updated_at = NOW()
			  WHERE id::text = $1
			  RETURNING ` + profileColumns
	p, err := scanProfile(s.DB.QueryRowContext(ctx, query, id, req.Username, req.FullName, req.AvatarURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanProfile(row scanner) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.AuthPrincipalID, &p.Username, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Package profile управляет профилями пользователей: саморегистрация и чтение/изменение
// только собственной строки.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// ProfileRepository определяет методы для работы с профилями в хранилище.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, principalID string, req models.DummyProfile) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByPrincipal(ctx context.Context, principalID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, req models.DummyProfile) (*models.Profile, error)
}

// ProfileService реализует бизнес-логику профилей.
type ProfileService struct {
	repo      ProfileRepository
	evaluator *access.Evaluator
	log       *slog.Logger
}

// NewProfileService создает новый экземпляр ProfileService.
func NewProfileService(repo ProfileRepository, evaluator *access.Evaluator, log *slog.Logger) *ProfileService {
	return &ProfileService{
		repo:      repo,
		evaluator: evaluator,
		log:       log,
	}
}

// Register создаёт профиль субъекта. Повторный вызов возвращает уже созданный профиль
// и created=false. Занятый username - models.ErrAlreadyExists.
func (s *ProfileService) Register(ctx context.Context, principal models.Principal, req models.DummyProfile) (*models.Profile, bool, error) {
	const op = "profile.Register"

	if !s.evaluator.Allowed(access.Request{Principal: principal, Table: access.TableProfiles, Op: access.OpInsert, OwnerID: principal.ID}) {
		return nil, false, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	existing, err := s.repo.GetProfileByPrincipal(ctx, principal.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.repo.CreateProfile(ctx, principal.ID, req)
	if errors.Is(err, models.ErrAlreadyExists) {
		// Параллельная регистрация того же субъекта успела раньше.
		if existing, getErr := s.repo.GetProfileByPrincipal(ctx, principal.ID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("profile registered", slog.String("profile_id", p.ID), sl.Principal(principal))
	return p, true, nil
}

// Me возвращает профиль вызывающего.
func (s *ProfileService) Me(ctx context.Context, principal models.Principal) (*models.Profile, error) {
	const op = "profile.Me"
	if !principal.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	p, err := s.repo.GetProfileByPrincipal(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.checked(op, principal, access.OpSelect, p)
}

// Read возвращает профиль по ID. Чужой профиль неотличим от отсутствующего.
func (s *ProfileService) Read(ctx context.Context, principal models.Principal, id string) (*models.Profile, error) {
	const op = "profile.Read"
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.checked(op, principal, access.OpSelect, p)
}

// Update изменяет собственный профиль.
func (s *ProfileService) Update(ctx context.Context, principal models.Principal, id string, req models.DummyProfile) (*models.Profile, error) {
	const op = "profile.Update"
	current, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.checked(op, principal, access.OpUpdate, current); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdateProfile(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("profile updated", slog.String("profile_id", id), sl.Principal(principal))
	return p, nil
}

// ProfileID возвращает ID профиля субъекта или пустую строку, если профиля нет.
func (s *ProfileService) ProfileID(ctx context.Context, principal models.Principal) (string, error) {
	if !principal.Valid() {
		return "", nil
	}
	p, err := s.repo.GetProfileByPrincipal(ctx, principal.ID)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("profile.ProfileID: %w", err)
	}
	return p.ID, nil
}

func (s *ProfileService) checked(op string, principal models.Principal, operation access.Operation, p *models.Profile) (*models.Profile, error) {
	req := access.Request{Principal: principal, Table: access.TableProfiles, Op: operation, OwnerID: p.AuthPrincipalID}
	if !s.evaluator.Allowed(req) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return p, nil
}
